package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// Sample pairs the expected and predicted design after one turn.
type Sample struct {
	Conversation int
	Turn         int
	UserMessage  string
	Expected     conversation.Design
	Predicted    conversation.Design
}

// Match reports whether every attribute agrees.
func (s Sample) Match() bool {
	return s.Expected == s.Predicted
}

// Runner replays datasets. Every conversation gets its own in-memory
// checkpoint store, so runs never touch shared state.
type Runner struct {
	caps        capability.Set
	prompts     agent.Prompts
	graphOpts   []agent.Option
	runOpts     []convgraph.RunOption
	concurrency int
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPrompts sets the prompts used by the graph and the opening turn.
func WithPrompts(p agent.Prompts) RunnerOption {
	return func(r *Runner) { r.prompts = p }
}

// WithGraphOptions adds options to every compiled graph.
func WithGraphOptions(opts ...agent.Option) RunnerOption {
	return func(r *Runner) { r.graphOpts = append(r.graphOpts, opts...) }
}

// WithRunOptions adds options to every turn.
func WithRunOptions(opts ...convgraph.RunOption) RunnerOption {
	return func(r *Runner) { r.runOpts = append(r.runOpts, opts...) }
}

// WithConcurrency bounds how many conversations run at once.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner using caps for every turn.
func NewRunner(caps capability.Set, opts ...RunnerOption) *Runner {
	r := &Runner{
		caps:        caps,
		prompts:     agent.DefaultPrompts(),
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays every conversation and returns the samples in dataset order.
func (r *Runner) Run(ctx context.Context, ds Dataset) (*Report, error) {
	perConversation := make([][]Sample, len(ds.Conversations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range ds.Conversations {
		g.Go(func() error {
			samples, err := r.replay(ctx, i, c)
			if err != nil {
				return fmt.Errorf("conversation %d: %w", i, err)
			}
			perConversation[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var samples []Sample
	for _, s := range perConversation {
		samples = append(samples, s...)
	}
	return NewReport(samples), nil
}

func (r *Runner) replay(ctx context.Context, index int, c Conversation) ([]Sample, error) {
	graphOpts := append([]agent.Option{agent.WithPrompts(r.prompts)}, r.graphOpts...)
	graph, err := agent.New(checkpoint.NewMemoryStore(), graphOpts...)
	if err != nil {
		return nil, err
	}

	runOpts := append([]convgraph.RunOption{convgraph.WithCapabilities(r.caps)}, r.runOpts...)
	id := "eval-" + strconv.Itoa(index)
	if c.Name != "" {
		id = "eval-" + c.Name
	}

	opening := conversation.Say(llm.System(string(r.prompts.System)), llm.System(string(r.prompts.Greeting)))
	if _, err := graph.Invoke(ctx, id, opening, runOpts...); err != nil {
		return nil, fmt.Errorf("opening turn: %w", err)
	}

	var samples []Sample
	for j, t := range c.Turns {
		state, err := graph.Invoke(ctx, id, conversation.Say(llm.User(t.UserMessage)), runOpts...)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", j, err)
		}
		if t.ExpectedState == nil {
			continue
		}
		s := Sample{
			Conversation: index,
			Turn:         j,
			UserMessage:  t.UserMessage,
			Expected:     t.ExpectedState.Design,
			Predicted:    state.Design,
		}
		if !s.Match() {
			r.logger.Debug("design mismatch",
				"conversation", index,
				"turn", j,
				"expected", s.Expected,
				"predicted", s.Predicted,
			)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
