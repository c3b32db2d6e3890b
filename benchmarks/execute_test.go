package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// BenchmarkRun_Linear runs linear graphs of growing size.
func BenchmarkRun_Linear(b *testing.B) {
	ctx := context.Background()
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			cg := mustCompile(b, buildLinearGraph(n), nil)
			opt := convgraph.WithStepBudget(n + 1)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = cg.Run(ctx, conversation.State{}, opt)
			}
		})
	}
}

// BenchmarkRun_Branching runs a graph with a conditional edge.
func BenchmarkRun_Branching(b *testing.B) {
	ctx := context.Background()
	cg := mustCompile(b, buildBranchingGraph(), nil)
	states := []conversation.State{{}, conversation.Schema{}.Merge(conversation.State{}, conversation.Say(llm.User("hi")))}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cg.Run(ctx, states[i%2])
	}
}

// BenchmarkRun_Loop revisits one node until the history is long enough.
func BenchmarkRun_Loop(b *testing.B) {
	ctx := context.Background()
	for _, n := range []int{3, 10} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			cg := mustCompile(b, buildLoopGraph(n), nil)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = cg.Run(ctx, conversation.State{})
			}
		})
	}
}

// BenchmarkRun_Visited measures the cost of recording the visited path.
func BenchmarkRun_Visited(b *testing.B) {
	ctx := context.Background()
	cg := mustCompile(b, buildLinearGraph(10), nil)
	var visited []string
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cg.Run(ctx, conversation.State{}, convgraph.WithVisited(&visited))
	}
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		convgraph.NewContext(bg, convgraph.WithContextConversation("chat-1", i))
	}
}
