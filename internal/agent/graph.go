// Package agent assembles the T-shirt design assistant as a conversation
// graph.
//
//	__start__ -> choice -> intent -> decision | question | confirm | support | agent
//	decision, question, support, tools -> agent
//	confirm -> __end__ | agent
//	agent -> tools | __end__
package agent

import (
	"log/slog"

	"github.com/vintoniuk/anadeabot/internal/catalog"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
)

// Node names.
const (
	NodeChoice   = "choice"
	NodeIntent   = "intent"
	NodeDecision = "decision"
	NodeQuestion = "question"
	NodeSupport  = "support"
	NodeConfirm  = "confirm"
	NodeAgent    = "agent"
	NodeTools    = "tools"
)

// GraphName identifies the assistant in logs and traces.
const GraphName = "anadeabot"

// DefaultFAQLimit is how many FAQ entries the question node retrieves.
const DefaultFAQLimit = 3

// Graph is the compiled assistant.
type Graph = convgraph.CompiledGraph[conversation.State, conversation.Update]

type config struct {
	nodes  nodes
	dedup  bool
	caps   capability.Set
	logger *slog.Logger
}

// Option configures New.
type Option func(*config)

// WithPrompts replaces the default prompts.
func WithPrompts(p Prompts) Option {
	return func(c *config) { c.nodes.prompts = p }
}

// WithEntities sets where orders and support requests are recorded.
// Without it those side effects are skipped.
func WithEntities(e Entities) Option {
	return func(c *config) { c.nodes.entities = e }
}

// WithTools replaces the catalog option tools.
func WithTools(t *catalog.Tools) Option {
	return func(c *config) { c.nodes.tools = t }
}

// WithFAQLimit sets how many FAQ entries are retrieved per question.
func WithFAQLimit(k int) Option {
	return func(c *config) {
		if k > 0 {
			c.nodes.faqLimit = k
		}
	}
}

// WithDedupMessages makes messages with a known ID replace the stored one.
func WithDedupMessages(enabled bool) Option {
	return func(c *config) { c.dedup = enabled }
}

// WithCapabilities sets the capabilities used when an invocation does not
// supply its own.
func WithCapabilities(caps capability.Set) Option {
	return func(c *config) { c.caps = caps }
}

// WithLogger sets the logger used at compile time.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New compiles the assistant graph over store. A nil store gives a graph
// that remembers nothing between turns.
func New(store checkpoint.Store, opts ...Option) (*Graph, error) {
	cfg := config{
		nodes: nodes{
			prompts:  DefaultPrompts(),
			tools:    catalog.NewTools(),
			faqLimit: DefaultFAQLimit,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := &cfg.nodes

	g := convgraph.NewGraph[conversation.State, conversation.Update](conversation.Schema{DedupMessages: cfg.dedup})

	g.AddNode(NodeChoice, n.choice,
		convgraph.WithKind(convgraph.KindClassifier),
		convgraph.Writes(conversation.FieldDesign))
	g.AddNode(NodeIntent, n.intent,
		convgraph.WithKind(convgraph.KindClassifier),
		convgraph.Writes(conversation.FieldIntent))
	g.AddNode(NodeDecision, n.decision,
		convgraph.Writes(conversation.FieldMessages))
	g.AddNode(NodeQuestion, n.question,
		convgraph.Writes(conversation.FieldFacts))
	g.AddNode(NodeSupport, n.support,
		convgraph.Writes(conversation.FieldMessages))
	g.AddNode(NodeConfirm, n.confirm,
		convgraph.Writes(conversation.FieldConfirmed, conversation.FieldDesign, conversation.FieldMessages))
	g.AddNode(NodeAgent, n.agent,
		convgraph.WithKind(convgraph.KindGenerator),
		convgraph.Writes(conversation.FieldMessages))
	g.AddNode(NodeTools, n.callTools,
		convgraph.Writes(conversation.FieldMessages))

	g.AddEdge(convgraph.START, NodeChoice)
	g.AddEdge(NodeChoice, NodeIntent)
	g.AddConditionalEdge(NodeIntent, routeIntent,
		NodeDecision, NodeQuestion, NodeConfirm, NodeSupport, NodeAgent)
	g.AddEdge(NodeDecision, NodeAgent)
	g.AddEdge(NodeQuestion, NodeAgent)
	g.AddEdge(NodeSupport, NodeAgent)
	g.AddConditionalEdge(NodeConfirm, routeConfirm, convgraph.END, NodeAgent)
	g.AddConditionalEdge(NodeAgent, routeAgent, NodeTools, convgraph.END)
	g.AddEdge(NodeTools, NodeAgent)

	return g.Compile(store,
		convgraph.WithName(GraphName),
		convgraph.WithDefaultCapabilities(cfg.caps),
		convgraph.WithCompileLogger(cfg.logger),
	)
}
