// Package audit is a Cascade extension that bridges lifecycle events
// to an audit trail backend.
//
// Every job, pipeline, and cron lifecycle hook emits a structured
// audit event through the [Recorder] interface. The extension assigns
// severity levels (info for normal operations, warning for retries and
// skips, critical for terminal failures) and metadata such as the job
// function, retry counts, and correlation ID.
//
// Wire it through the engine:
//
//	eng, err := engine.Build(orch,
//	    engine.WithExtension(audit.New(audit.RecorderFunc(persist))),
//	)
//
// Restrict to the actions the backend cares about:
//
//	audit.New(recorder,
//	    audit.WithActions(audit.ActionJobFailed, audit.ActionPipelineStatusChanged),
//	)
package audit
