package convgraph

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
)

// Compile validates the graph and creates an executable CompiledGraph bound
// to store. A nil store yields a non-persistent graph: every Invoke starts
// from the zero state and nothing is saved.
//
// All defects are reported together in a GraphConfigurationError:
//   - a missing, repeated or unknown entry point
//   - invalid or duplicate nodes
//   - edges referencing unknown nodes
//   - nodes with no outgoing edge, or with more than one
//   - empty allow-lists
//   - terminal nodes without a fixed edge to END
//   - reachable nodes from which END cannot be reached
//
// Nodes not reachable from the entry are logged as warnings and listed by
// Unreachable, but do not fail compilation.
func (g *Graph[S, U]) Compile(store checkpoint.Store, opts ...CompileOption) (*CompiledGraph[S, U], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cfg := compileConfig{name: "convgraph", logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	errs := append([]error(nil), g.errs...)
	errs = append(errs, g.validateEntry()...)
	errs = append(errs, g.validateNodes()...)
	errs = append(errs, g.validateEdges()...)

	reachable := g.reachable()
	errs = append(errs, g.validatePaths(reachable)...)

	if len(errs) > 0 {
		return nil, &GraphConfigurationError{Errs: errs}
	}

	var unreachable []string
	for _, id := range g.order {
		if !reachable[id] {
			unreachable = append(unreachable, id)
			cfg.logger.Warn("node is unreachable from entry", "node_id", id)
		}
	}

	return g.build(store, cfg, unreachable), nil
}

func (g *Graph[S, U]) validateEntry() []error {
	switch {
	case g.entries == 0:
		return []error{ErrNoEntryPoint}
	case g.entries > 1:
		return []error{fmt.Errorf("%w: entry set %d times", ErrMultipleEntryPoints, g.entries)}
	}

	if g.entryRouter != nil {
		var errs []error
		for _, label := range g.entryRouter.allowed {
			if label != END && g.nodes[label] == nil {
				errs = append(errs, fmt.Errorf("%w: conditional entry target %q", ErrNodeNotFound, label))
			}
		}
		return errs
	}
	if g.entry != "" && g.nodes[g.entry] == nil {
		return []error{fmt.Errorf("%w: %s", ErrEntryNotFound, g.entry)}
	}
	return nil
}

func (g *Graph[S, U]) validateNodes() []error {
	var known map[string]bool
	if lister, ok := g.schema.(FieldLister); ok {
		known = make(map[string]bool)
		for _, f := range lister.FieldNames() {
			known[f] = true
		}
	}

	var errs []error
	for _, id := range g.order {
		n := g.nodes[id]
		_, hasConditional := g.conditional[id]
		targets := g.edges[id]

		if len(targets) == 0 && !hasConditional {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
		}
		if n.meta.kind == KindTerminal && (len(targets) != 1 || targets[0] != END || hasConditional) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrTerminalNode, id))
		}
		if known != nil {
			for _, f := range n.meta.fields() {
				if !known[f] {
					errs = append(errs, fmt.Errorf("%w: node %s writes unknown field %q", ErrInvalidNode, id, f))
				}
			}
		}
	}
	return errs
}

func (g *Graph[S, U]) validateEdges() []error {
	var errs []error

	for _, from := range sortedKeys(g.edges) {
		targets := g.edges[from]
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("%w: edge source %q does not exist", ErrNodeNotFound, from))
		}
		if len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: %s has %d fixed edges", ErrAmbiguousEdge, from, len(targets)))
		}
		if _, ok := g.conditional[from]; ok {
			errs = append(errs, fmt.Errorf("%w: %s has both fixed and conditional edges", ErrAmbiguousEdge, from))
		}
		for _, to := range targets {
			if to != END && g.nodes[to] == nil {
				errs = append(errs, fmt.Errorf("%w: edge target %q does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for _, from := range sortedKeys(g.conditional) {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %q does not exist", ErrNodeNotFound, from))
		}
		for _, label := range g.conditional[from].allowed {
			if label != END && g.nodes[label] == nil {
				errs = append(errs, fmt.Errorf("%w: %s allows unknown target %q", ErrNodeNotFound, from, label))
			}
		}
	}
	return errs
}

// successors returns every possible next hop of id, following fixed edges
// and allow-lists.
func (g *Graph[S, U]) successors(id string) []string {
	if c, ok := g.conditional[id]; ok {
		return c.allowed
	}
	return g.edges[id]
}

func (g *Graph[S, U]) entryTargets() []string {
	if g.entryRouter != nil {
		return g.entryRouter.allowed
	}
	if g.entry != "" {
		return []string{g.entry}
	}
	return nil
}

// reachable returns the set of nodes reachable from the entry.
func (g *Graph[S, U]) reachable() map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), g.entryTargets()...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == END || seen[current] || g.nodes[current] == nil {
			continue
		}
		seen[current] = true
		queue = append(queue, g.successors(current)...)
	}
	return seen
}

// validatePaths reports reachable nodes that can never reach END.
func (g *Graph[S, U]) validatePaths(reachable map[string]bool) []error {
	canEnd := map[string]bool{END: true}
	for changed := true; changed; {
		changed = false
		for _, id := range g.order {
			if canEnd[id] {
				continue
			}
			for _, next := range g.successors(id) {
				if canEnd[next] {
					canEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	var errs []error
	for _, id := range g.order {
		if reachable[id] && !canEnd[id] && len(g.successors(id)) > 0 {
			errs = append(errs, fmt.Errorf("%w: from %s", ErrNoPathToEnd, id))
		}
	}
	return errs
}

// build creates the immutable CompiledGraph from the builder state.
func (g *Graph[S, U]) build(store checkpoint.Store, cfg compileConfig, unreachable []string) *CompiledGraph[S, U] {
	nodes := make(map[string]*node[S, U], len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n
	}

	edges := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = targets[0]
	}

	conds := make(map[string]*conditional[S], len(g.conditional))
	for from, c := range g.conditional {
		conds[from] = c
	}

	return &CompiledGraph[S, U]{
		name:        cfg.name,
		schema:      g.schema,
		nodes:       nodes,
		order:       append([]string(nil), g.order...),
		edges:       edges,
		conditional: conds,
		entry:       g.entry,
		entryRouter: g.entryRouter,
		store:       store,
		defaults:    cfg.defaults,
		unreachable: unreachable,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
