package uilens

import (
	"log/slog"

	"github.com/randalmurphal/uilens/pkg/uilens/capture"
	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/randalmurphal/uilens/pkg/uilens/observability"
)

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithLogger sets the structured logger for pipeline and stage logs.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTracing enables OTel spans around the run and each stage.
func WithTracing(spans observability.SpanManager) Option {
	return func(p *Pipeline) {
		if spans != nil {
			p.spans = spans
			p.tracing = true
		}
	}
}

// WithEngine sets the comparison engine used by the comparison stage.
// Default: compare.NewEngine(compare.Options{}).
func WithEngine(e *compare.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithComparisonSource enables the optional comparison stage. The source
// supplies (componentID, original, generated) triples for a checkpoint;
// without one the pipeline goes straight from extraction to complete.
func WithComparisonSource(src ComparisonSource) Option {
	return func(p *Pipeline) {
		p.comparisons = src
	}
}

// WithCaptureRequest sets the base capture request applied to every run.
// The URL field is overwritten per run.
func WithCaptureRequest(req capture.Request) Option {
	return func(p *Pipeline) {
		p.captureReq = req
	}
}

// runConfig holds per-run execution flags.
type runConfig struct {
	dryRun         bool
	skipVision     bool
	skipExtraction bool
	skipComparison bool
	reuseCompleted bool
}

// RunOption configures a single Run or Resume invocation.
type RunOption func(*runConfig)

// WithDryRun skips every stage. The checkpoint still walks to complete
// with progress 100, which makes dry runs useful for store smoke tests.
func WithDryRun() RunOption {
	return func(c *runConfig) {
		c.dryRun = true
	}
}

// WithSkipVision skips the vision identification stage.
func WithSkipVision() RunOption {
	return func(c *runConfig) {
		c.skipVision = true
	}
}

// WithSkipExtraction skips the token extraction stage.
func WithSkipExtraction() RunOption {
	return func(c *runConfig) {
		c.skipExtraction = true
	}
}

// WithSkipComparison skips the comparison stage even when a
// ComparisonSource is configured.
func WithSkipComparison() RunOption {
	return func(c *runConfig) {
		c.skipComparison = true
	}
}

// WithReuseCompleted makes Resume skip stages whose output is already
// present on the loaded checkpoint instead of re-deriving everything.
// Ignored by Run, which always starts from an empty checkpoint.
func WithReuseCompleted() RunOption {
	return func(c *runConfig) {
		c.reuseCompleted = true
	}
}
