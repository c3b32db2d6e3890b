package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Turn outcomes reported to RecordTurn.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeBudget    = "step_budget"
	OutcomeCancelled = "cancelled"
)

// MetricsRecorder records conversation engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordTurn records a finished turn.
	RecordTurn(ctx context.Context, outcome string, duration time.Duration, steps int)

	// RecordCheckpoint records a checkpoint load or save.
	RecordCheckpoint(ctx context.Context, op string, sizeBytes int64, err error)
}

type otelMetrics struct {
	nodeExecutions   metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	nodeErrors       metric.Int64Counter
	turns            metric.Int64Counter
	turnLatency      metric.Float64Histogram
	turnSteps        metric.Int64Histogram
	checkpointSize   metric.Int64Histogram
	checkpointErrors metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily creates the shared instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("convgraph")
	var m otelMetrics
	var err error

	if m.nodeExecutions, err = meter.Int64Counter("convgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("convgraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("convgraph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}
	if m.turns, err = meter.Int64Counter("convgraph.turn.count",
		metric.WithDescription("Number of conversation turns by outcome"),
	); err != nil {
		return nil, err
	}
	if m.turnLatency, err = meter.Float64Histogram("convgraph.turn.latency_ms",
		metric.WithDescription("Turn latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.turnSteps, err = meter.Int64Histogram("convgraph.turn.steps",
		metric.WithDescription("Node executions per turn"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("convgraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.checkpointErrors, err = meter.Int64Counter("convgraph.checkpoint.errors",
		metric.WithDescription("Number of failed checkpoint operations"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordTurn records a finished turn.
func (m *otelMetrics) RecordTurn(ctx context.Context, outcome string, duration time.Duration, steps int) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.turns.Add(ctx, 1, attrs)
	m.turnLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.turnSteps.Record(ctx, int64(steps), attrs)
}

// RecordCheckpoint records a checkpoint operation.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, op string, sizeBytes int64, err error) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	if err != nil {
		m.checkpointErrors.Add(ctx, 1, attrs)
		return
	}
	if sizeBytes > 0 {
		m.checkpointSize.Record(ctx, sizeBytes, attrs)
	}
}
