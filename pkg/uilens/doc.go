/*
Package uilens turns a target URL into a structured design-system
artifact: screenshots, identified UI components, extracted design tokens,
and per-component fidelity scores.

# Overview

uilens runs a checkpointed, multi-stage pipeline:

	pending -> screenshot -> vision -> extraction -> (comparison) -> complete

Every stage's output is persisted before the next stage starts, so an
interrupted run can be inspected or resumed. A stage failure marks the
checkpoint failed with the captured error and stops the run; the failure
is reported on the RunResult rather than returned as an error, so callers
always get the full step-by-step account of what happened.

# Basic Usage

Build a Pipeline from a checkpoint store and the stage collaborators,
then run it against a URL:

	store, err := checkpoint.NewSQLiteStore("runs.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	mgr := capture.NewManager(capture.ManagerConfig{})
	if _, err := mgr.Start(); err != nil {
	    log.Fatal(err)
	}
	defer mgr.Close()

	client, err := llm.NewGemini(os.Getenv("GEMINI_API_KEY"))
	if err != nil {
	    log.Fatal(err)
	}

	pipeline, err := uilens.New(
	    store,
	    capture.NewCapturer(mgr, nil),
	    vision.NewIdentifier(client),
	    myTokenExtractor,
	)
	if err != nil {
	    log.Fatal(err)
	}

	result, err := pipeline.Run(ctx, "https://example.com")
	if err != nil {
	    log.Fatal(err) // persistence failure or bad arguments
	}
	if result.Err != nil {
	    log.Printf("run failed at a stage: %v", result.Err)
	}

# Events

Subscribe handlers to observe stage completion. Events fire synchronously
after the stage's persistence write:

	pipeline.Subscribe(func(ev uilens.Event) {
	    fmt.Printf("%s %s progress=%d\n", ev.Type, ev.CheckpointID, ev.Progress)
	})

# Resume

Resume re-runs the pipeline for an existing checkpoint using its
recorded URL. The default is a full re-derivation of every stage;
WithReuseCompleted keeps outputs already on the checkpoint:

	result, err := pipeline.Resume(ctx, id, uilens.WithReuseCompleted())

# Storage Backends

Two interchangeable checkpoint stores pass the same contract tests:
checkpoint.NewFSStore (directory per run, JSON metadata plus sibling
image files) and checkpoint.NewSQLiteStore (metadata rows plus a
content-addressable blob table). Pick one at construction time and
inject it; the pipeline never inspects which backend it is talking to.
*/
package uilens
