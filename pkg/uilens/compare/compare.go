// Package compare scores how closely a generated component rendering
// matches its original screenshot.
//
// Two metrics are combined: a structural score from counting differing
// pixels on a common canvas, and a color score from per-channel histogram
// intersection. The weighted combination is gated against a pass threshold.
// Batches run concurrently but always report results in input order.
package compare

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Default scoring parameters.
const (
	DefaultDiffThreshold = 10
	DefaultBuckets       = 256
	DefaultSSIMWeight    = 0.6
	DefaultColorWeight   = 0.4
	DefaultPassThreshold = 0.95
)

// Options configures the comparison engine.
type Options struct {
	// DiffThreshold is the per-channel delta (0-255) above which a pixel
	// counts as differing. Default: 10.
	DiffThreshold int

	// Buckets is the histogram bucket count per channel. Default: 256.
	Buckets int

	// IncludeTransparent counts fully transparent pixels in histograms.
	// Default: false (excluded).
	IncludeTransparent bool

	// SSIMWeight and ColorWeight weight the combined score.
	// Defaults: 0.6 and 0.4. They are not required to sum to 1.
	SSIMWeight  float64
	ColorWeight float64

	// PassThreshold gates Passed. Never clamped: a threshold above 1
	// makes every comparison fail. Default: 0.95.
	PassThreshold float64

	// GenerateDiff produces a highlighted diff image on each comparison.
	GenerateDiff bool
}

// withDefaults fills zero-value fields. A caller who explicitly wants a
// zero weight must set the other weight too; all-zero weights are treated
// as unset.
func (o Options) withDefaults() Options {
	if o.DiffThreshold <= 0 {
		o.DiffThreshold = DefaultDiffThreshold
	}
	if o.Buckets <= 0 {
		o.Buckets = DefaultBuckets
	}
	if o.SSIMWeight == 0 && o.ColorWeight == 0 {
		o.SSIMWeight = DefaultSSIMWeight
		o.ColorWeight = DefaultColorWeight
	}
	if o.PassThreshold == 0 {
		o.PassThreshold = DefaultPassThreshold
	}
	return o
}

// Result is the outcome of one comparison.
type Result struct {
	SSIMScore     float64 `json:"ssimScore"`
	ColorScore    float64 `json:"colorScore"`
	CombinedScore float64 `json:"combinedScore"`
	Passed        bool    `json:"passed"`

	// DiffImage is a PNG with differing pixels highlighted.
	// Present only when Options.GenerateDiff is set.
	DiffImage []byte `json:"-"`
}

// Engine runs image comparisons with a fixed option set.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine. Zero-value option fields take defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the effective option set.
func (e *Engine) Options() Options {
	return e.opts
}

// Compare scores two PNG-encoded images. Size mismatches are absorbed by
// the common canvas, not treated as errors; only undecodable input fails.
func (e *Engine) Compare(originalPNG, generatedPNG []byte) (Result, error) {
	original, err := decodePNG(originalPNG)
	if err != nil {
		return Result{}, fmt.Errorf("decode original: %w", err)
	}
	generated, err := decodePNG(generatedPNG)
	if err != nil {
		return Result{}, fmt.Errorf("decode generated: %w", err)
	}
	return e.CompareImages(original, generated)
}

// CompareImages scores two decoded images.
func (e *Engine) CompareImages(original, generated image.Image) (Result, error) {
	structural, diff := structuralScore(original, generated, e.opts.DiffThreshold, e.opts.GenerateDiff)
	color := colorScore(original, generated, e.opts.Buckets, e.opts.IncludeTransparent)

	combined := structural*e.opts.SSIMWeight + color*e.opts.ColorWeight

	result := Result{
		SSIMScore:     structural,
		ColorScore:    color,
		CombinedScore: combined,
		Passed:        combined >= e.opts.PassThreshold,
	}

	if diff != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, diff); err != nil {
			return Result{}, fmt.Errorf("encode diff image: %w", err)
		}
		result.DiffImage = buf.Bytes()
	}

	return result, nil
}

func decodePNG(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}
