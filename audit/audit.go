package audit

import "context"

// Audit event actions. Each constant corresponds to one lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobQueued             = "job.queued"
	ActionJobStarted            = "job.started"
	ActionJobSucceeded          = "job.succeeded"
	ActionJobFailed             = "job.failed"
	ActionJobRetrying           = "job.retrying"
	ActionJobSkipped            = "job.skipped"
	ActionPipelineStatusChanged = "pipeline.status_changed"
	ActionCronFired             = "cron.fired"
)

// Resource kinds appearing in the Resource field.
const (
	ResourceJob      = "job"
	ResourcePipeline = "pipeline"
	ResourceCron     = "cron"
)

// Severity levels assigned by the extension.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes assigned by the extension.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one audit trail record. Backends persist it as-is; the
// extension never mutates an event after handing it to the Recorder.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`

	// CorrelationID threads audit records back to the external
	// request that caused them.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Recorder is the interface audit backends implement. Implementations
// own durability; a returned error is logged and dropped so a slow or
// failing audit backend never stalls orchestration.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// RecorderFunc adapts a plain function to a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
