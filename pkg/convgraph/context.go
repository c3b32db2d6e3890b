package convgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
)

// Context provides execution context to nodes and routers.
// It extends context.Context with the turn's identity and the capabilities
// configured for the invocation.
//
// Context is immutable. The executor derives a context per node with the
// node id set and the logger enriched.
type Context interface {
	context.Context

	// Logger returns a logger enriched with run, conversation, node and
	// turn attributes. Never returns nil.
	Logger() *slog.Logger

	// ConversationID returns the conversation being advanced, or "" for
	// a non-persistent Run.
	ConversationID() string

	// RunID returns the unique identifier for this turn's execution.
	RunID() string

	// NodeID returns the node being executed.
	NodeID() string

	// Turn returns the turn number being produced (1 for the first turn).
	// Side-effecting nodes use it with the conversation id as an
	// idempotency key.
	Turn() int

	// Capabilities returns the capability handles for this invocation.
	Capabilities() capability.Set
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger         *slog.Logger
	base           *slog.Logger
	conversationID string
	runID          string
	nodeID         string
	turn           int
	caps           capability.Set
}

func (c *executionContext) Logger() *slog.Logger         { return c.logger }
func (c *executionContext) ConversationID() string       { return c.conversationID }
func (c *executionContext) RunID() string                { return c.runID }
func (c *executionContext) NodeID() string               { return c.nodeID }
func (c *executionContext) Turn() int                    { return c.turn }
func (c *executionContext) Capabilities() capability.Set { return c.caps }

// ContextOption configures a Context created with NewContext.
type ContextOption func(*executionContext)

// WithContextLogger sets the base logger.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.base = logger
		}
	}
}

// WithContextConversation sets the conversation id and turn.
func WithContextConversation(conversationID string, turn int) ContextOption {
	return func(c *executionContext) {
		c.conversationID = conversationID
		c.turn = turn
	}
}

// WithContextRunID sets the run identifier.
// If not set, a UUID is generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// WithContextCapabilities sets the capability handles.
func WithContextCapabilities(caps capability.Set) ContextOption {
	return func(c *executionContext) {
		c.caps = caps
	}
}

// WithContextNode sets the node id.
func WithContextNode(nodeID string) ContextOption {
	return func(c *executionContext) {
		c.nodeID = nodeID
	}
}

// NewContext creates a Context outside of graph execution, mainly for
// testing nodes in isolation.
//
// Example:
//
//	ctx := convgraph.NewContext(context.Background(),
//	    convgraph.WithContextConversation("chat-1", 1),
//	    convgraph.WithContextCapabilities(caps))
//	update, err := decisionNode(ctx, state)
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		base:    slog.Default(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	ec.logger = ec.enrich()
	return ec
}

func (c *executionContext) enrich() *slog.Logger {
	l := c.base.With("run_id", c.runID, "turn", c.turn)
	if c.conversationID != "" {
		l = l.With("conversation_id", c.conversationID)
	}
	if c.nodeID != "" {
		l = l.With("node_id", c.nodeID)
	}
	return l
}

// withNode returns a derived context for one node execution.
func (c *executionContext) withNode(parent context.Context, nodeID string) *executionContext {
	derived := *c
	derived.Context = parent
	derived.nodeID = nodeID
	derived.logger = derived.enrich()
	return &derived
}
