package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/cascade/hook"
	"github.com/xraph/cascade/pipeline"
)

// Compile-time interface checks.
var (
	_ hook.Extension             = (*Extension)(nil)
	_ hook.PipelineStatusChanged = (*Extension)(nil)
)

// Extension sends an operator alert when a pipeline reaches FAILED.
// Job-level alerts are the execution wrapper's responsibility; this
// extension covers the aggregate view an operator actually watches.
type Extension struct {
	sink   Sink
	logger *slog.Logger
}

// NewExtension creates a pipeline-failure alert extension.
func NewExtension(sink Sink, logger *slog.Logger) *Extension {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extension{sink: sink, logger: logger}
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "pipeline-alert" }

// OnPipelineStatusChanged implements hook.PipelineStatusChanged.
func (e *Extension) OnPipelineStatusChanged(ctx context.Context, p *pipeline.Pipeline) error {
	if p.Status != pipeline.StatusFailed {
		return nil
	}
	a := Alert{
		Summary:       fmt.Sprintf("pipeline %q failed", p.Name),
		PipelineURN:   p.URN,
		CorrelationID: p.CorrelationID,
	}
	if err := e.sink.Send(ctx, a); err != nil {
		// Never propagated: a dead alert channel must not affect the
		// pipeline.
		e.logger.WarnContext(ctx, "alert sink error",
			slog.String("pipeline_urn", p.URN),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
