package convgraph

import (
	"log/slog"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/observability"
)

// DefaultStepBudget is the number of node executions allowed per turn.
const DefaultStepBudget = 25

// runConfig holds configuration for one turn.
type runConfig struct {
	stepBudget int
	caps       capability.Set
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	runID      string
	visited    *[]string
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		stepBudget: DefaultStepBudget,
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
}

// RunOption configures one Run or Invoke call.
type RunOption func(*runConfig)

// WithStepBudget sets the maximum number of node executions per turn.
// Default: 25
//
// A turn that exceeds it fails with StepBudgetExceededError and, under
// Invoke, is not checkpointed.
func WithStepBudget(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.stepBudget = n
		}
	}
}

// WithCapabilities sets the capabilities for this call. Members left nil
// fall back to the graph's defaults (see WithDefaultCapabilities).
func WithCapabilities(caps capability.Set) RunOption {
	return func(c *runConfig) {
		c.caps = caps
	}
}

// WithLogger sets the logger. Nodes receive it enriched through
// Context.Logger.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets a custom metrics recorder.
func WithMetricsRecorder(r observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithTracing enables OpenTelemetry spans for the turn and each node.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithRunID sets the run identifier used in logs and spans.
// If not set, a UUID is generated.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithVisited records the ids of executed nodes, in order, into dst.
// dst is reset at the start of the turn.
func WithVisited(dst *[]string) RunOption {
	return func(c *runConfig) {
		c.visited = dst
	}
}

// compileConfig holds configuration fixed at compile time.
type compileConfig struct {
	name     string
	defaults capability.Set
	logger   *slog.Logger
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithName names the graph in spans.
func WithName(name string) CompileOption {
	return func(c *compileConfig) {
		c.name = name
	}
}

// WithDefaultCapabilities sets the capabilities used when an invocation
// does not override them.
func WithDefaultCapabilities(caps capability.Set) CompileOption {
	return func(c *compileConfig) {
		c.defaults = caps
	}
}

// WithCompileLogger sets the logger for compile-time warnings.
func WithCompileLogger(logger *slog.Logger) CompileOption {
	return func(c *compileConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
