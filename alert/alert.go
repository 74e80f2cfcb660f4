// Package alert delivers operator notifications for terminal failures.
//
// The contract is fire-and-forget: an [Alert] carries a short human-
// readable summary plus enough identifiers (job, pipeline, correlation)
// to locate the failure in logs. Failure of the alert call itself must
// never fail a job; callers log sink errors and move on.
package alert

import (
	"context"
	"fmt"
	"log/slog"
)

// Alert is one operator notification.
type Alert struct {
	// Summary is a short human-readable description of the failure.
	Summary string `json:"summary"`

	JobURN        string `json:"job_urn,omitempty"`
	PipelineURN   string `json:"pipeline_urn,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	// Details carries optional structured context, e.g. the recorded
	// exception details.
	Details map[string]any `json:"details,omitempty"`
}

// Sink delivers alerts to an external notification channel.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(ctx context.Context, a Alert) error

func (f SinkFunc) Send(ctx context.Context, a Alert) error { return f(ctx, a) }

// NopSink discards alerts.
type NopSink struct{}

func (NopSink) Send(context.Context, Alert) error { return nil }

// LogSink writes alerts to a structured logger. The default sink when
// no external channel is configured, so terminal failures always land
// somewhere an operator can find.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, a Alert) error {
	s.logger.ErrorContext(ctx, "operator alert",
		slog.String("summary", a.Summary),
		slog.String("job_urn", a.JobURN),
		slog.String("pipeline_urn", a.PipelineURN),
		slog.String("correlation_id", a.CorrelationID),
	)
	return nil
}

// Fanout sends each alert to every sink, collecting nothing: per the
// contract, individual sink failures are logged by the caller's
// wrapper and never propagated past the first Send that errors.
type Fanout []Sink

// Send implements Sink. It tries every sink and returns the last
// error, so one dead channel does not silence the others.
func (f Fanout) Send(ctx context.Context, a Alert) error {
	var last error
	for _, s := range f {
		if err := s.Send(ctx, a); err != nil {
			last = fmt.Errorf("alert: fanout: %w", err)
		}
	}
	return last
}
