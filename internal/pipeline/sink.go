package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"perfhud/internal/stats"
)

// Sink consumes per-frame reports.
// Params: context and one report.
// Returns: error if sink cannot process the report.
type Sink interface {
	Consume(ctx context.Context, report *stats.Report) error
}

// LogSink writes reports into debug logs.
// Params: logger used for output.
// Returns: debug sink instance.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a debug sink.
// Params: logger instance.
// Returns: report sink implementation.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Consume logs one report as compact JSON.
// Params: ctx for level check; report to log.
// Returns: marshal error when the report cannot be encoded.
func (s *LogSink) Consume(ctx context.Context, report *stats.Report) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if report == nil || !s.logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	s.logger.Debug(
		"frame report",
		slog.Uint64("frame", report.Frame),
		slog.String("payload", string(payload)),
	)

	return nil
}

// MultiSink dispatches one report to multiple sink implementations.
// Params: sink list.
// Returns: composite sink.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds composite sink from sink list.
// Params: sinks target list (nil entries are skipped).
// Returns: multi sink implementation.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		out = append(out, sink)
	}
	return &MultiSink{sinks: out}
}

// Consume forwards report to each child sink.
// Params: ctx consume context; report payload.
// Returns: first error from downstream sinks, if any.
func (s *MultiSink) Consume(ctx context.Context, report *stats.Report) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Consume(ctx, report); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
