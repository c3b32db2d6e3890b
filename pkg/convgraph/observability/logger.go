// Package observability provides structured logging, metrics and tracing
// for conversation turns.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// The log helpers accept a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds conversation context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "chat-42", "run-123", 7)
//	enriched.Info("doing work") // includes conversation_id, run_id, turn
func EnrichLogger(logger *slog.Logger, conversationID, runID string, turn int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("conversation_id", conversationID),
		slog.String("run_id", runID),
		slog.Int("turn", turn),
	)
}

// LogTurnStart logs the start of a turn.
func LogTurnStart(logger *slog.Logger, entry string) {
	if logger == nil {
		return
	}
	logger.Info("turn starting", slog.String("entry", entry))
}

// LogTurnComplete logs successful turn completion.
func LogTurnComplete(logger *slog.Logger, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("turn completed",
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps", steps),
	)
}

// LogTurnError logs a failed turn.
func LogTurnError(logger *slog.Logger, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("turn failed",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string, step int) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64, fields []string) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
		slog.Any("fields", fields),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogRoute logs a routing decision.
func LogRoute(logger *slog.Logger, from, to string) {
	if logger == nil {
		return
	}
	logger.Debug("route",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogCheckpoint logs a saved checkpoint.
func LogCheckpoint(logger *slog.Logger, turn int, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.Int("turn", turn),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint failure.
func LogCheckpointError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Error("checkpoint failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
