package convgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for conversation graphs.
// Use NewGraph to create a graph, then chain AddNode, AddEdge,
// AddConditionalEdge and SetEntry calls to define the flow.
//
// Builder methods never panic. Defects are collected and reported together
// by Compile as a GraphConfigurationError.
//
// Graph is NOT thread-safe during building. Use a single goroutine to
// construct the graph, then call Compile to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := convgraph.NewGraph[State, Update](schema).
//	    AddNode("classify", classify, convgraph.Writes("intent")).
//	    AddNode("answer", answer, convgraph.Writes("messages")).
//	    AddEdge(convgraph.START, "classify").
//	    AddConditionalEdge("classify", route, "answer", convgraph.END).
//	    AddEdge("answer", convgraph.END)
//
//	compiled, err := graph.Compile(checkpoint.NewMemoryStore())
type Graph[S, U any] struct {
	mu          sync.RWMutex
	schema      Schema[S, U]
	nodes       map[string]*node[S, U]
	order       []string
	edges       map[string][]string
	conditional map[string]*conditional[S]
	entry       string
	entryRouter *conditional[S]
	entries     int
	errs        []error
}

// NewGraph creates a graph builder whose state merges through schema.
func NewGraph[S, U any](schema Schema[S, U]) *Graph[S, U] {
	g := &Graph[S, U]{
		schema:      schema,
		nodes:       make(map[string]*node[S, U]),
		edges:       make(map[string][]string),
		conditional: make(map[string]*conditional[S]),
	}
	if schema == nil {
		g.errs = append(g.errs, ErrNilSchema)
	}
	return g
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// The id must be non-empty, contain no whitespace and not be one of the
// reserved identifiers START or END (case-insensitive). Ids must be unique.
func (g *Graph[S, U]) AddNode(id string, fn NodeFunc[S, U], opts ...NodeOption) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := validateNodeID(id); err != nil {
		g.errs = append(g.errs, err)
		return g
	}
	if fn == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: node %q has nil function", ErrInvalidNode, id))
		return g
	}
	if _, exists := g.nodes[id]; exists {
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
		return g
	}

	meta := nodeMeta{writes: make(map[string]bool)}
	for _, opt := range opts {
		opt(&meta)
	}
	g.nodes[id] = &node[S, U]{id: id, fn: fn, meta: meta}
	g.order = append(g.order, id)
	return g
}

// AddEdge adds a fixed edge from one node to another.
// The target can be a node ID or END. An edge from START sets the entry.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile time, so edges can be added in any
// order relative to their nodes.
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	if from == START {
		return g.SetEntry(to)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a conditional edge whose router picks the next
// node at runtime. allowed lists every label the router may return; any
// other label fails the step with a RoutingError. A conditional edge from
// START sets a conditional entry.
// Returns the graph for method chaining.
func (g *Graph[S, U]) AddConditionalEdge(from string, router RouterFunc[S], allowed ...string) *Graph[S, U] {
	if from == START {
		return g.SetConditionalEntry(router, allowed...)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := newConditional(from, router, allowed)
	if err != nil {
		g.errs = append(g.errs, err)
		return g
	}
	if _, exists := g.conditional[from]; exists {
		g.errs = append(g.errs, fmt.Errorf("%w: %s has more than one conditional edge", ErrAmbiguousEdge, from))
		return g
	}
	g.conditional[from] = c
	return g
}

// SetEntry designates the entry node.
// Exactly one entry, fixed or conditional, must be set before Compile.
// Returns the graph for method chaining.
func (g *Graph[S, U]) SetEntry(id string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries++
	g.entry = id
	return g
}

// SetConditionalEntry routes the first step of every turn through router.
// The router sees the state after the caller's partial update is merged.
// Returns the graph for method chaining.
func (g *Graph[S, U]) SetConditionalEntry(router RouterFunc[S], allowed ...string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries++
	c, err := newConditional(START, router, allowed)
	if err != nil {
		g.errs = append(g.errs, err)
		return g
	}
	g.entryRouter = c
	return g
}

func newConditional[S any](from string, router RouterFunc[S], allowed []string) (*conditional[S], error) {
	if router == nil {
		return nil, fmt.Errorf("%w: conditional edge from %s has nil router", ErrInvalidNode, from)
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: conditional edge from %s", ErrEmptyAllowList, from)
	}
	labels := make([]string, 0, len(allowed))
	seen := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		if !seen[a] {
			seen[a] = true
			labels = append(labels, a)
		}
	}
	return &conditional[S]{router: router, allowed: labels}, nil
}

func validateNodeID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: node ID cannot be empty", ErrInvalidNode)
	}
	lower := strings.ToLower(id)
	if lower == "end" || lower == END || lower == START {
		return fmt.Errorf("%w: node ID %q is reserved", ErrInvalidNode, id)
	}
	if strings.ContainsAny(id, " \t\n\r") {
		return fmt.Errorf("%w: node ID %q contains whitespace", ErrInvalidNode, id)
	}
	return nil
}
