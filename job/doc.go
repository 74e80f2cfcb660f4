// Package job defines the job record, its status state machine, typed
// definitions, the store contract, and the per-execution Manager.
//
// # Job Record
//
// A [Job] is one durable unit of work. It embeds [cascade.Entity] for
// timestamps, carries opaque Params and Metadata maps, and progresses
// through a monotonic state machine:
//
//	PENDING → QUEUED → RUNNING → SUCCEEDED
//	PENDING → QUEUED → RUNNING → QUEUED → ... → FAILED
//	PENDING → SKIPPED
//
// SKIPPED is reachable only from PENDING: it marks a job that never
// ran because a required prerequisite did not succeed. A job whose
// PipelineID is nil is independent and never triggers automatic
// enqueues of other jobs.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. Params are JSON round-tripped
// between the stored record and the handler's input type:
//
//	var MapVariants = job.NewDefinition("map_variants",
//	    func(ctx context.Context, m *job.Manager, in MapInput) (*job.Result, error) {
//	        if err := m.UpdateProgress(ctx, 0, int64(len(in.Records)), "mapping"); err != nil {
//	            return nil, err
//	        }
//	        out, err := mapAll(ctx, in)
//	        if err != nil {
//	            return nil, err // retried up to MaxRetries
//	        }
//	        return job.OK(map[string]any{"mapped_count": out.N}), nil
//	    },
//	    job.WithMaxRetries(5),
//	)
//
// Returning [Fail] signals an expected business failure ("nothing to
// do"); it is terminal and skips retries. Returning an error signals a
// transient fault and consumes the retry budget.
//
// # Registry
//
// [Registry] maps dispatch function names to type-erased
// [HandlerFunc] values. Register definitions at startup via the
// package-level [Register]:
//
//	job.Register(registry, MapVariants)
//
// The engine package provides higher-level Register and CreateJob
// wrappers.
package job
