package convgraph

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddNode_InvalidIDs verifies bad ids are collected, not panicked on.
func TestAddNode_InvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"END upper", "END"},
		{"end marker", END},
		{"start marker", START},
		{"space", "has space"},
		{"tab", "has\ttab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph().
				AddNode(tt.id, incNode).
				AddNode("ok", incNode, Writes("count")).
				AddEdge("ok", END).
				SetEntry("ok")

			_, err := g.Compile(nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidNode)
		})
	}
}

// TestAddNode_NilFunction verifies a nil node function is a configuration error.
func TestAddNode_NilFunction(t *testing.T) {
	g := newTestGraph().AddNode("a", nil).SetEntry("a")

	_, err := g.Compile(nil)
	assert.ErrorIs(t, err, ErrInvalidNode)
}

// TestAddNode_Duplicate verifies duplicate names are reported.
func TestAddNode_Duplicate(t *testing.T) {
	g := newTestGraph().
		AddNode("a", incNode, Writes("count")).
		AddNode("a", incNode, Writes("count")).
		AddEdge("a", END).
		SetEntry("a")

	_, err := g.Compile(nil)
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

// TestNewGraph_NilSchema verifies a nil schema cannot compile.
func TestNewGraph_NilSchema(t *testing.T) {
	g := NewGraph[testState, testUpdate](nil).
		AddNode("a", incNode).
		AddEdge("a", END).
		SetEntry("a")

	_, err := g.Compile(nil)
	assert.ErrorIs(t, err, ErrNilSchema)
}

// TestAddEdge_FromStartSetsEntry verifies START edges are entry declarations.
func TestAddEdge_FromStartSetsEntry(t *testing.T) {
	compiled, err := newTestGraph().
		AddNode("a", incNode, Writes("count")).
		AddEdge(START, "a").
		AddEdge("a", END).
		Compile(nil)
	require.NoError(t, err)

	assert.Equal(t, "a", compiled.EntryPoint())
}

// TestCompile_Errors verifies every structural defect maps to its sentinel.
func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Graph[testState, testUpdate]
		want  error
	}{
		{
			name: "no entry",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddEdge("a", END)
			},
			want: ErrNoEntryPoint,
		},
		{
			name: "two entries",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddEdge("a", END).
					SetEntry("a").SetConditionalEntry(routeByLabel, "a")
			},
			want: ErrMultipleEntryPoints,
		},
		{
			name: "unknown entry",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddEdge("a", END).SetEntry("missing")
			},
			want: ErrEntryNotFound,
		},
		{
			name: "unknown edge target",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddEdge("a", "missing").SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "unknown edge source",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddEdge("a", END).AddEdge("ghost", END).SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "unknown allow-list target",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).
					AddConditionalEdge("a", routeByLabel, END, "missing").SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "two fixed edges",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddNode("b", incNode).
					AddEdge("a", "b").AddEdge("a", END).AddEdge("b", END).SetEntry("a")
			},
			want: ErrAmbiguousEdge,
		},
		{
			name: "fixed and conditional",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).
					AddEdge("a", END).AddConditionalEdge("a", routeByLabel, END).SetEntry("a")
			},
			want: ErrAmbiguousEdge,
		},
		{
			name: "no outgoing edge",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddNode("b", incNode).
					AddEdge("a", "b").SetEntry("a")
			},
			want: ErrNoOutgoingEdge,
		},
		{
			name: "empty allow-list",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).
					AddConditionalEdge("a", routeByLabel).SetEntry("a")
			},
			want: ErrEmptyAllowList,
		},
		{
			name: "terminal without END",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().
					AddNode("a", incNode, WithKind(KindTerminal)).AddNode("b", incNode).
					AddEdge("a", "b").AddEdge("b", END).SetEntry("a")
			},
			want: ErrTerminalNode,
		},
		{
			name: "cycle without exit",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode).AddNode("b", incNode).
					AddEdge("a", "b").AddEdge("b", "a").SetEntry("a")
			},
			want: ErrNoPathToEnd,
		},
		{
			name: "unknown written field",
			build: func() *Graph[testState, testUpdate] {
				return newTestGraph().AddNode("a", incNode, Writes("nope")).AddEdge("a", END).SetEntry("a")
			},
			want: ErrInvalidNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.build().Compile(nil)
			assert.Nil(t, compiled)
			require.Error(t, err)

			var cfgErr *GraphConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestCompile_ReportsAllDefects verifies defects are joined rather than
// stopping at the first.
func TestCompile_ReportsAllDefects(t *testing.T) {
	_, err := newTestGraph().
		AddNode("", incNode).
		AddNode("a", incNode).
		AddEdge("a", "missing").
		Compile(nil)

	var cfgErr *GraphConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.GreaterOrEqual(t, len(cfgErr.Errs), 3)
	assert.ErrorIs(t, err, ErrInvalidNode)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Contains(t, err.Error(), "graph configuration:")
}

// TestCompile_UnreachableIsWarning verifies orphan nodes compile with a warning.
func TestCompile_UnreachableIsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	compiled, err := newTestGraph().
		AddNode("a", incNode, Writes("count")).
		AddNode("orphan", incNode, Writes("count")).
		AddEdge("a", END).
		AddEdge("orphan", END).
		SetEntry("a").
		Compile(nil, WithCompileLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []string{"orphan"}, compiled.Unreachable())
	assert.Contains(t, buf.String(), "unreachable")
	assert.Contains(t, buf.String(), "node_id=orphan")
}

// TestCompile_ConditionalReachability verifies allow-lists drive reachability.
func TestCompile_ConditionalReachability(t *testing.T) {
	compiled, err := newTestGraph().
		AddNode("a", incNode).
		AddNode("b", incNode).
		AddNode("c", incNode).
		AddConditionalEdge("a", routeByLabel, "b", END).
		AddEdge("b", END).
		AddEdge("c", END).
		SetEntry("a").
		Compile(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"c"}, compiled.Unreachable())
}

// TestCompiledGraph_Introspection verifies the read-only accessors.
func TestCompiledGraph_Introspection(t *testing.T) {
	compiled, err := newTestGraph().
		AddNode("classify", labelNode("x"), Writes("label"), WithKind(KindClassifier)).
		AddNode("x", incNode, Writes("count", "log")).
		AddNode("done", logNode("done"), Writes("log"), WithKind(KindTerminal)).
		AddEdge(START, "classify").
		AddConditionalEdge("classify", routeByLabel, "x", "done", "x").
		AddEdge("x", "done").
		AddEdge("done", END).
		Compile(nil, WithName("shop"))
	require.NoError(t, err)

	assert.Equal(t, "shop", compiled.Name())
	assert.Equal(t, []string{"classify", "x", "done"}, compiled.NodeIDs())
	assert.True(t, compiled.HasNode("x"))
	assert.False(t, compiled.HasNode(END))
	assert.True(t, compiled.IsConditional("classify"))
	assert.False(t, compiled.IsConditional("x"))
	assert.Equal(t, []string{"x", "done"}, compiled.Successors("classify"))
	assert.Equal(t, []string{"done"}, compiled.Successors("x"))
	assert.Nil(t, compiled.Successors(END))
	assert.Equal(t, KindClassifier, compiled.Kind("classify"))
	assert.Equal(t, KindTerminal, compiled.Kind("done"))
	assert.Equal(t, []string{"count", "log"}, compiled.Writes("x"))
	assert.Nil(t, compiled.Store())
	assert.Empty(t, compiled.Unreachable())
}

// TestKind_String verifies kind names.
func TestKind_String(t *testing.T) {
	assert.Equal(t, "transform", KindTransform.String())
	assert.Equal(t, "classifier", KindClassifier.String())
	assert.Equal(t, "generator", KindGenerator.String())
	assert.Equal(t, "terminal", KindTerminal.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

// TestGraphConfigurationError_Unwrap verifies errors.Is sees every defect.
func TestGraphConfigurationError_Unwrap(t *testing.T) {
	err := &GraphConfigurationError{Errs: []error{ErrNoEntryPoint, ErrDuplicateNode}}
	assert.True(t, errors.Is(err, ErrNoEntryPoint))
	assert.True(t, errors.Is(err, ErrDuplicateNode))
	assert.False(t, errors.Is(err, ErrNoPathToEnd))
}
