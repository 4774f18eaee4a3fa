package uilens

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/uilens/pkg/uilens/capture"
	"github.com/randalmurphal/uilens/pkg/uilens/checkpoint"
	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/randalmurphal/uilens/pkg/uilens/observability"
	"github.com/randalmurphal/uilens/pkg/uilens/vision"
)

// Stage identifies one ordered step of the pipeline.
type Stage string

const (
	StageScreenshot Stage = "screenshot"
	StageVision     Stage = "vision"
	StageExtraction Stage = "extraction"
	StageComparison Stage = "comparison"
)

// Progress milestones per stage. Skipped stages leave progress untouched;
// completion always lands on 100.
const (
	progressScreenshot = 25
	progressVision     = 50
	progressExtraction = 75
	progressComparison = 90
	progressComplete   = 100
)

// Capturer produces viewport and full-page screenshots of a URL.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) (*capture.Screenshots, error)
}

// Identifier turns a screenshot into candidate UI components.
type Identifier interface {
	Identify(ctx context.Context, screenshotPNG []byte) ([]vision.ComponentIdentification, error)
}

// TokenExtractor derives design tokens from a page. It is an external
// collaborator; the pipeline treats its output as an opaque key-value map.
type TokenExtractor interface {
	Extract(ctx context.Context, url string, viewportPNG []byte) (map[string]string, error)
}

// ComparisonSource supplies (componentID, original, generated) image
// triples to score for a checkpoint. Typically backed by a component
// regeneration service.
type ComparisonSource interface {
	Pairs(ctx context.Context, cp *checkpoint.Checkpoint) ([]compare.BatchItem, error)
}

// StepStatus describes how one stage finished inside a run.
type StepStatus string

const (
	// StepCompleted means the stage executed and its result was persisted.
	StepCompleted StepStatus = "completed"
	// StepSkipped means configuration excluded the stage from this run.
	StepSkipped StepStatus = "skipped"
	// StepReused means Resume kept the stage's previously persisted output.
	StepReused StepStatus = "reused"
	// StepFailed means the stage errored and halted the run.
	StepFailed StepStatus = "failed"
)

// StepRecord describes one stage's outcome within a RunResult.
type StepRecord struct {
	Stage      Stage
	Status     StepStatus
	DurationMs float64
	Error      string
}

// RunResult describes a finished run. Stage failures are captured here
// rather than returned as an error from Run.
type RunResult struct {
	CheckpointID string
	URL          string
	Status       checkpoint.Status
	Progress     int
	Steps        []StepRecord
	Summary      *compare.Summary

	// Err is the stage failure that halted the run, if any.
	Err error
}

// Pipeline runs the URL-to-design-system extraction state machine:
// pending, screenshot, vision, extraction, optional comparison, complete,
// with failed reachable from any stage. The checkpoint is persisted after
// every stage, and each stage emits exactly one event after its
// persistence write.
type Pipeline struct {
	store       checkpoint.Store
	capturer    Capturer
	identifier  Identifier
	extractor   TokenExtractor
	comparisons ComparisonSource
	engine      *compare.Engine
	captureReq  capture.Request

	mu       sync.RWMutex
	handlers []Handler

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	tracing bool
}

// New creates a Pipeline. The store, capturer, identifier, and extractor
// are required; everything else has working defaults.
func New(store checkpoint.Store, capturer Capturer, identifier Identifier, extractor TokenExtractor, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if capturer == nil {
		return nil, ErrNilCapturer
	}
	if identifier == nil {
		return nil, ErrNilIdentifier
	}
	if extractor == nil {
		return nil, ErrNilExtractor
	}

	p := &Pipeline{
		store:      store,
		capturer:   capturer,
		identifier: identifier,
		extractor:  extractor,
		engine:     compare.NewEngine(compare.Options{}),
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run creates and persists a fresh checkpoint for url, then executes the
// stages in order. Stage failures mark the checkpoint failed and are
// recorded on the returned RunResult; only persistence failures and
// invalid arguments are returned as errors.
func (p *Pipeline) Run(ctx context.Context, url string, opts ...RunOption) (*RunResult, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	// A fresh checkpoint has no completed stages to reuse.
	cfg.reuseCompleted = false

	cp := checkpoint.New(url)
	if err := p.store.Save(ctx, cp); err != nil {
		return nil, &PersistError{Op: "save", Err: err}
	}
	p.emit(Event{Type: EventStart, CheckpointID: cp.ID, URL: cp.URL})

	return p.execute(ctx, cp, &cfg)
}

// Resume loads an existing checkpoint and re-runs the pipeline against
// its recorded URL. By default every stage is re-derived from scratch;
// WithReuseCompleted keeps stage outputs already present on the loaded
// checkpoint and skips those stages.
func (p *Pipeline) Resume(ctx context.Context, id string, opts ...RunOption) (*RunResult, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := p.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}

	cp.Error = ""
	if cfg.reuseCompleted {
		// Retained payloads keep the checkpoint at the last contiguous
		// completed stage, so screenshots never sit on a pending record.
		cp.Status, cp.Progress = resumeBaseline(cp)
	} else {
		cp.Status = checkpoint.StatusPending
		cp.Progress = 0
		cp.Screenshots = nil
		cp.IdentifiedComponents = nil
		cp.ExtractedTokens = nil
		cp.Comparisons = nil
	}

	if err := p.store.Save(ctx, cp); err != nil {
		return nil, &PersistError{Op: "save", Err: err}
	}
	p.emit(Event{Type: EventStart, CheckpointID: cp.ID, URL: cp.URL})

	return p.execute(ctx, cp, &cfg)
}

// resumeBaseline maps a checkpoint's retained payloads onto the furthest
// stage whose predecessors are all present. Stops at the first gap so a
// later payload left over from a skip-flag run cannot inflate progress.
func resumeBaseline(cp *checkpoint.Checkpoint) (checkpoint.Status, int) {
	if cp.Screenshots == nil {
		return checkpoint.StatusPending, 0
	}
	if cp.IdentifiedComponents == nil {
		return checkpoint.StatusScreenshot, progressScreenshot
	}
	if cp.ExtractedTokens == nil {
		return checkpoint.StatusVision, progressVision
	}
	if cp.Comparisons == nil {
		return checkpoint.StatusExtraction, progressExtraction
	}
	return checkpoint.StatusComparison, progressComparison
}

// stageDef binds a stage to its skip/reuse predicates and its work.
type stageDef struct {
	stage Stage
	event EventType
	// skip excludes the stage from this run entirely.
	skip bool
	// done reports whether the loaded checkpoint already carries this
	// stage's output (only consulted when reuse is requested).
	done bool
	// run executes the stage and returns the checkpoint merge to persist.
	run func(ctx context.Context, cp *checkpoint.Checkpoint) (checkpoint.Partial, error)
}

func (p *Pipeline) execute(ctx context.Context, cp *checkpoint.Checkpoint, cfg *runConfig) (result *RunResult, err error) {
	result = &RunResult{
		CheckpointID: cp.ID,
		URL:          cp.URL,
		Status:       cp.Status,
		Progress:     cp.Progress,
	}

	start := time.Now()
	observability.LogRunStart(p.logger, cp.ID, cp.URL)

	execCtx := ctx
	var runSpan trace.Span
	if p.tracing {
		execCtx, runSpan = p.spans.StartRunSpan(ctx, cp.URL, cp.ID)
		defer func() {
			spanErr := err
			if spanErr == nil {
				spanErr = result.Err
			}
			p.spans.EndSpanWithError(runSpan, spanErr)
		}()
	}

	stages := p.stageDefs(cp, cfg)

	for _, def := range stages {
		if cfg.reuseCompleted && def.done {
			result.Steps = append(result.Steps, StepRecord{Stage: def.stage, Status: StepReused})
			continue
		}
		if def.skip {
			result.Steps = append(result.Steps, StepRecord{Stage: def.stage, Status: StepSkipped})
			continue
		}

		updated, stageErr := p.runStage(execCtx, ctx, def, cp, result)
		if stageErr != nil {
			// Persistence failures propagate; stage failures were already
			// folded into the result.
			if _, ok := stageErr.(*PersistError); ok {
				return result, stageErr
			}
			p.finishRun(ctx, result, start, stageErr)
			return result, nil
		}
		cp = updated
		result.Status = cp.Status
		result.Progress = cp.Progress
	}

	final, uerr := p.store.Update(ctx, cp.ID, checkpoint.Partial{
		Status:   checkpoint.StatusPtr(checkpoint.StatusComplete),
		Progress: checkpoint.ProgressPtr(progressComplete),
	})
	if uerr != nil {
		return result, &PersistError{Op: "update", Err: uerr}
	}
	result.Status = final.Status
	result.Progress = final.Progress
	if len(final.Comparisons) > 0 {
		summary := compare.Summarize(final.Comparisons)
		result.Summary = &summary
	}

	p.emit(Event{Type: EventComplete, CheckpointID: cp.ID, URL: cp.URL, Progress: final.Progress})
	p.finishRun(ctx, result, start, nil)

	return result, nil
}

// runStage executes one stage with logging, metrics, and tracing, then
// persists its result and emits the stage event. A *PersistError return
// means the store write failed; any other error is the stage's own
// failure, already marked on the checkpoint and recorded on the result.
func (p *Pipeline) runStage(execCtx, ctx context.Context, def stageDef, cp *checkpoint.Checkpoint, result *RunResult) (*checkpoint.Checkpoint, error) {
	stageName := string(def.stage)
	observability.LogStageStart(p.logger, stageName)

	stageCtx := execCtx
	var stageSpan trace.Span
	if p.tracing {
		stageCtx, stageSpan = p.spans.StartStageSpan(execCtx, stageName)
	}

	stageStart := time.Now()
	partial, stageErr := def.run(stageCtx, cp)
	stageDuration := time.Since(stageStart)
	durationMs := float64(stageDuration.Milliseconds())

	p.metrics.RecordStageExecution(stageCtx, stageName, stageDuration, stageErr)
	if p.tracing {
		p.spans.EndSpanWithError(stageSpan, stageErr)
	}

	if stageErr != nil {
		observability.LogStageError(p.logger, stageName, stageErr)

		wrapped := &StageError{Stage: def.stage, CheckpointID: cp.ID, Err: stageErr}
		if _, uerr := p.store.Update(ctx, cp.ID, checkpoint.Partial{
			Status: checkpoint.StatusPtr(checkpoint.StatusFailed),
			Error:  checkpoint.ErrString(stageErr.Error()),
		}); uerr != nil {
			return nil, &PersistError{Stage: def.stage, Op: "update", Err: uerr}
		}
		p.emit(Event{Type: EventError, CheckpointID: cp.ID, URL: cp.URL, Err: wrapped})

		result.Steps = append(result.Steps, StepRecord{
			Stage:      def.stage,
			Status:     StepFailed,
			DurationMs: durationMs,
			Error:      stageErr.Error(),
		})
		result.Status = checkpoint.StatusFailed
		result.Err = wrapped
		return nil, wrapped
	}

	updated, uerr := p.store.Update(ctx, cp.ID, partial)
	if uerr != nil {
		return nil, &PersistError{Stage: def.stage, Op: "update", Err: uerr}
	}

	observability.LogStageComplete(p.logger, stageName, durationMs)
	p.metrics.RecordCheckpoint(ctx, stageName, checkpointSize(updated))
	p.emit(Event{Type: def.event, CheckpointID: cp.ID, URL: cp.URL, Progress: updated.Progress})

	result.Steps = append(result.Steps, StepRecord{
		Stage:      def.stage,
		Status:     StepCompleted,
		DurationMs: durationMs,
	})
	return updated, nil
}

// finishRun records run-level metrics and logs once the outcome is known.
func (p *Pipeline) finishRun(ctx context.Context, result *RunResult, start time.Time, stageErr error) {
	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())
	p.metrics.RecordPipelineRun(ctx, stageErr == nil, duration)

	if stageErr != nil {
		lastStage := ""
		if se, ok := stageErr.(*StageError); ok {
			lastStage = string(se.Stage)
		}
		observability.LogRunError(p.logger, result.CheckpointID, stageErr, durationMs, lastStage)
		return
	}

	executed := 0
	for _, s := range result.Steps {
		if s.Status == StepCompleted {
			executed++
		}
	}
	observability.LogRunComplete(p.logger, result.CheckpointID, durationMs, executed)
}

// stageDefs builds the ordered stage list for one run.
func (p *Pipeline) stageDefs(cp *checkpoint.Checkpoint, cfg *runConfig) []stageDef {
	stages := []stageDef{
		{
			stage: StageScreenshot,
			event: EventScreenshot,
			skip:  cfg.dryRun,
			done:  cp.Screenshots != nil,
			run:   p.screenshotStage,
		},
		{
			stage: StageVision,
			event: EventVision,
			skip:  cfg.dryRun || cfg.skipVision,
			done:  cp.IdentifiedComponents != nil,
			run:   p.visionStage,
		},
		{
			stage: StageExtraction,
			event: EventExtraction,
			skip:  cfg.dryRun || cfg.skipExtraction,
			done:  cp.ExtractedTokens != nil,
			run:   p.extractionStage,
		},
	}

	if p.comparisons != nil {
		stages = append(stages, stageDef{
			stage: StageComparison,
			event: EventComparison,
			skip:  cfg.dryRun || cfg.skipComparison,
			done:  cp.Comparisons != nil,
			run:   p.comparisonStage,
		})
	}
	return stages
}

func (p *Pipeline) screenshotStage(ctx context.Context, cp *checkpoint.Checkpoint) (checkpoint.Partial, error) {
	req := p.captureReq
	req.URL = cp.URL

	shots, err := p.capturer.Capture(ctx, req)
	if err != nil {
		return checkpoint.Partial{}, err
	}

	return checkpoint.Partial{
		Status:   checkpoint.StatusPtr(checkpoint.StatusScreenshot),
		Progress: checkpoint.ProgressPtr(progressScreenshot),
		Screenshots: &checkpoint.Screenshots{
			Viewport: shots.Viewport,
			FullPage: shots.FullPage,
		},
	}, nil
}

func (p *Pipeline) visionStage(ctx context.Context, cp *checkpoint.Checkpoint) (checkpoint.Partial, error) {
	if cp.Screenshots == nil || len(cp.Screenshots.Viewport) == 0 {
		return checkpoint.Partial{}, fmt.Errorf("no viewport screenshot available")
	}

	comps, err := p.identifier.Identify(ctx, cp.Screenshots.Viewport)
	if err != nil {
		return checkpoint.Partial{}, err
	}
	if comps == nil {
		comps = []vision.ComponentIdentification{}
	}

	return checkpoint.Partial{
		Status:               checkpoint.StatusPtr(checkpoint.StatusVision),
		Progress:             checkpoint.ProgressPtr(progressVision),
		IdentifiedComponents: comps,
	}, nil
}

func (p *Pipeline) extractionStage(ctx context.Context, cp *checkpoint.Checkpoint) (checkpoint.Partial, error) {
	var viewport []byte
	if cp.Screenshots != nil {
		viewport = cp.Screenshots.Viewport
	}

	tokens, err := p.extractor.Extract(ctx, cp.URL, viewport)
	if err != nil {
		return checkpoint.Partial{}, err
	}
	if tokens == nil {
		tokens = map[string]string{}
	}

	return checkpoint.Partial{
		Status:          checkpoint.StatusPtr(checkpoint.StatusExtraction),
		Progress:        checkpoint.ProgressPtr(progressExtraction),
		ExtractedTokens: tokens,
	}, nil
}

func (p *Pipeline) comparisonStage(ctx context.Context, cp *checkpoint.Checkpoint) (checkpoint.Partial, error) {
	items, err := p.comparisons.Pairs(ctx, cp)
	if err != nil {
		return checkpoint.Partial{}, err
	}

	results, err := p.engine.CompareBatch(ctx, items)
	if err != nil {
		return checkpoint.Partial{}, err
	}
	if results == nil {
		results = []compare.ComponentResult{}
	}

	for _, r := range results {
		p.metrics.RecordComparison(ctx, r.Passed, r.CombinedScore)
	}

	return checkpoint.Partial{
		Status:      checkpoint.StatusPtr(checkpoint.StatusComparison),
		Progress:    checkpoint.ProgressPtr(progressComparison),
		Comparisons: results,
	}, nil
}

// checkpointSize approximates the persisted footprint of a checkpoint:
// blob bytes plus a rough floor for the metadata document.
func checkpointSize(cp *checkpoint.Checkpoint) int64 {
	var size int64 = 256
	if cp.Screenshots != nil {
		size += int64(len(cp.Screenshots.Viewport) + len(cp.Screenshots.FullPage))
	}
	for _, c := range cp.Comparisons {
		size += int64(len(c.DiffImage))
	}
	return size
}
