package convgraph

import "sort"

// Reserved node identifiers.
const (
	// START is the virtual source of the caller's partial update.
	// AddEdge(START, id) is equivalent to SetEntry(id).
	START = "__start__"

	// END is the terminal node identifier.
	// Use this as an edge target to indicate the turn is complete.
	END = "__end__"
)

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and the current state, and return a
// partial update. The engine merges the update into the state using the
// graph's Schema; nodes never mutate state directly.
//
// Example:
//
//	func greet(ctx convgraph.Context, s State) (Update, error) {
//	    return Update{Messages: []llm.Message{llm.Assistant("Hi!")}}, nil
//	}
type NodeFunc[S, U any] func(ctx Context, state S) (U, error)

// RouterFunc picks the next node for a conditional edge.
// It receives the state after the source node's update has been merged and
// must return one of the labels declared when the edge was added.
// Routers are pure: they read state and never call capabilities.
type RouterFunc[S any] func(ctx Context, state S) string

// Kind describes what a node does. It is informational except for
// KindTerminal, which compile-time validation requires to edge into END.
type Kind int

const (
	// KindTransform is a plain node (the default).
	KindTransform Kind = iota
	// KindClassifier calls a classifier capability.
	KindClassifier
	// KindGenerator calls a generator capability.
	KindGenerator
	// KindTerminal must have a fixed edge to END.
	KindTerminal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransform:
		return "transform"
	case KindClassifier:
		return "classifier"
	case KindGenerator:
		return "generator"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// NodeOption configures a node added with AddNode.
type NodeOption func(*nodeMeta)

// Writes declares the state fields a node may write. An update naming any
// other field fails with MalformedUpdateError. Calling Writes more than once
// accumulates fields.
func Writes(fields ...string) NodeOption {
	return func(m *nodeMeta) {
		for _, f := range fields {
			m.writes[f] = true
		}
	}
}

// WithKind sets the node kind.
func WithKind(k Kind) NodeOption {
	return func(m *nodeMeta) {
		m.kind = k
	}
}

type nodeMeta struct {
	kind   Kind
	writes map[string]bool
}

func (m nodeMeta) fields() []string {
	out := make([]string, 0, len(m.writes))
	for f := range m.writes {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

type node[S, U any] struct {
	id   string
	fn   NodeFunc[S, U]
	meta nodeMeta
}

// conditional is a router plus the labels it may return.
type conditional[S any] struct {
	router  RouterFunc[S]
	allowed []string
}

func (c *conditional[S]) allows(label string) bool {
	for _, a := range c.allowed {
		if a == label {
			return true
		}
	}
	return false
}
