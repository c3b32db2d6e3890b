package benchmarks

import (
	"fmt"
	"testing"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

type (
	graph    = convgraph.Graph[conversation.State, conversation.Update]
	compiled = convgraph.CompiledGraph[conversation.State, conversation.Update]
)

var schema = conversation.Schema{}

// noopNode writes nothing to measure framework overhead.
func noopNode(convgraph.Context, conversation.State) (conversation.Update, error) {
	return conversation.Update{}, nil
}

// replyNode appends one assistant message.
func replyNode(convgraph.Context, conversation.State) (conversation.Update, error) {
	return conversation.Say(llm.Assistant("ok")), nil
}

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		convgraph.NewGraph[conversation.State, conversation.Update](schema)
	}
}

// BenchmarkAddNode_10 measures adding 10 nodes.
func BenchmarkAddNode_10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := convgraph.NewGraph[conversation.State, conversation.Update](schema)
		for j := 0; j < 10; j++ {
			g.AddNode(nodeID(j), noopNode)
		}
	}
}

// BenchmarkCompile_Linear runs Compile over linear graphs of growing size.
func BenchmarkCompile_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			g := buildLinearGraph(n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = g.Compile(nil)
			}
		})
	}
}

// BenchmarkCompile_Branching compiles a graph with conditional edges.
func BenchmarkCompile_Branching(b *testing.B) {
	g := buildBranchingGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.Compile(nil)
	}
}

// BenchmarkSchemaMerge measures merging a message into a long history.
func BenchmarkSchemaMerge(b *testing.B) {
	state := longConversation(200)
	update := conversation.Say(llm.User("one more"))
	for _, dedup := range []bool{false, true} {
		b.Run(fmt.Sprintf("dedup=%t", dedup), func(b *testing.B) {
			s := conversation.Schema{DedupMessages: dedup}
			for i := 0; i < b.N; i++ {
				s.Merge(state, update)
			}
		})
	}
}

func nodeID(n int) string {
	return fmt.Sprintf("n%d", n)
}

func mustCompile(b *testing.B, g *graph, store checkpoint.Store) *compiled {
	b.Helper()
	cg, err := g.Compile(store)
	if err != nil {
		b.Fatal(err)
	}
	return cg
}

func buildLinearGraph(n int) *graph {
	g := convgraph.NewGraph[conversation.State, conversation.Update](schema)
	for i := 0; i < n; i++ {
		g.AddNode(nodeID(i), noopNode)
	}
	for i := 0; i < n-1; i++ {
		g.AddEdge(nodeID(i), nodeID(i+1))
	}
	return g.AddEdge(nodeID(n-1), convgraph.END).SetEntry(nodeID(0))
}

// buildBranchingGraph routes on the last user message the way the design
// graph routes on intent.
func buildBranchingGraph() *graph {
	router := func(_ convgraph.Context, s conversation.State) string {
		if len(s.Messages)%2 == 0 {
			return "even"
		}
		return "odd"
	}
	return convgraph.NewGraph[conversation.State, conversation.Update](schema).
		AddNode("classify", noopNode).
		AddNode("even", replyNode, convgraph.Writes(conversation.FieldMessages)).
		AddNode("odd", replyNode, convgraph.Writes(conversation.FieldMessages)).
		AddConditionalEdge("classify", router, "even", "odd").
		AddEdge("even", convgraph.END).
		AddEdge("odd", convgraph.END).
		SetEntry("classify")
}

// buildLoopGraph revisits one node until it has replied n times.
func buildLoopGraph(n int) *graph {
	router := func(_ convgraph.Context, s conversation.State) string {
		if len(s.Messages) >= n {
			return convgraph.END
		}
		return "reply"
	}
	return convgraph.NewGraph[conversation.State, conversation.Update](schema).
		AddNode("reply", replyNode, convgraph.Writes(conversation.FieldMessages)).
		AddConditionalEdge("reply", router, "reply", convgraph.END).
		SetEntry("reply")
}

func longConversation(n int) conversation.State {
	var s conversation.State
	for i := 0; i < n; i++ {
		m := llm.User(fmt.Sprintf("message %d", i))
		if i%2 == 1 {
			m = llm.Assistant(fmt.Sprintf("reply %d", i))
		}
		m.ID = fmt.Sprint(i)
		s.Messages = append(s.Messages, m)
	}
	s.Design = conversation.Design{Size: "M", Color: "blue", Style: "V-Neck"}
	return s
}
