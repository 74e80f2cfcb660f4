// Package engine wires all Cascade subsystems together and provides
// the primary application-level API for registering and submitting
// work.
//
// The engine package exists to break a fundamental import cycle: the
// root cascade package defines Entity (imported by job, pipeline, cron)
// and therefore cannot import those packages back. Engine sits above
// all subsystem packages and below the application layer.
//
// # Building an Engine
//
//	o, err := cascade.New(
//	    cascade.WithStore(store),
//	    cascade.WithQueue(q),
//	    cascade.WithConcurrency(20),
//	)
//
//	eng, err := engine.Build(o,
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithBackoff(backoff.Exponential(time.Second, time.Minute)),
//	    engine.WithAlertSink(alert.NewSlackSink(webhookURL)),
//	)
//
// # Registering Work
//
//	engine.Register(eng, job.NewDefinition("create_variants", CreateVariants))
//	eng.RegisterCron(ctx, "nightly-refresh", "0 3 * * *", "refresh_stats", nil)
//
// # Submitting Work
//
//	// A single independent job.
//	j, err := engine.Submit(ctx, eng, "create_variants", Input{ScoreSet: urn})
//
//	// A dependency graph.
//	g, err := eng.RunPipeline(ctx, pipeline.Spec{
//	    Name: "score-set-ingest",
//	    Jobs: []pipeline.JobSpec{
//	        {Key: "validate", Function: "validate_upload"},
//	        {Key: "variants", Function: "create_variants", DependsOn: []string{"validate"}},
//	    },
//	})
package engine
