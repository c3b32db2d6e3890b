package convgraph

import (
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
)

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile on a Graph builder.
//
// CompiledGraph is safe for concurrent use by multiple turns of distinct
// conversations. Turns of the same conversation must be serialized by the
// caller (see checkpoint.Locker); the store rejects a stale save with
// checkpoint.ErrConflict.
type CompiledGraph[S, U any] struct {
	name        string
	schema      Schema[S, U]
	nodes       map[string]*node[S, U]
	order       []string
	edges       map[string]string
	conditional map[string]*conditional[S]
	entry       string
	entryRouter *conditional[S]
	store       checkpoint.Store
	defaults    capability.Set
	unreachable []string
}

// Name returns the graph name used in spans.
func (cg *CompiledGraph[S, U]) Name() string {
	return cg.name
}

// EntryPoint returns the fixed entry node ID, or "" for a conditional entry.
func (cg *CompiledGraph[S, U]) EntryPoint() string {
	return cg.entry
}

// NodeIDs returns all node identifiers in the order they were added.
func (cg *CompiledGraph[S, U]) NodeIDs() []string {
	return append([]string(nil), cg.order...)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S, U]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the possible next hops of a node: its fixed edge
// target, or the allow-list of its conditional edge.
// Returns nil for END or unknown nodes.
func (cg *CompiledGraph[S, U]) Successors(id string) []string {
	if c, ok := cg.conditional[id]; ok {
		return append([]string(nil), c.allowed...)
	}
	if to, ok := cg.edges[id]; ok {
		return []string{to}
	}
	return nil
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph[S, U]) IsConditional(id string) bool {
	_, ok := cg.conditional[id]
	return ok
}

// Kind returns the declared kind of a node.
func (cg *CompiledGraph[S, U]) Kind(id string) Kind {
	if n, ok := cg.nodes[id]; ok {
		return n.meta.kind
	}
	return KindTransform
}

// Writes returns the fields a node may write, sorted.
func (cg *CompiledGraph[S, U]) Writes(id string) []string {
	if n, ok := cg.nodes[id]; ok {
		return n.meta.fields()
	}
	return nil
}

// Unreachable returns the nodes that cannot be reached from the entry.
func (cg *CompiledGraph[S, U]) Unreachable() []string {
	return append([]string(nil), cg.unreachable...)
}

// Store returns the checkpoint store, or nil for a non-persistent graph.
func (cg *CompiledGraph[S, U]) Store() checkpoint.Store {
	return cg.store
}
