// Package checkpoint provides the durable record of an extraction run and
// its persistence backends.
//
// A Checkpoint accumulates every stage's output as the pipeline advances:
// screenshots, identified components, extracted tokens, and comparison
// scores. Two interchangeable Store backends persist it — a filesystem
// store (directory per id, JSON metadata plus sibling image files) and a
// SQLite store (metadata document plus a separate blob store). Both must
// pass the same contract test suite.
package checkpoint

import (
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/randalmurphal/uilens/pkg/uilens/vision"
)

// Status is the pipeline stage a checkpoint has reached.
type Status string

// Checkpoint statuses, in pipeline order. StatusFailed is absorbing:
// the pipeline never advances a failed checkpoint, but it stays loadable.
const (
	StatusPending    Status = "pending"
	StatusScreenshot Status = "screenshot"
	StatusVision     Status = "vision"
	StatusExtraction Status = "extraction"
	StatusComparison Status = "comparison"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Screenshots holds the captured page images. Stored as binary blobs
// alongside (not inside) the metadata document.
type Screenshots struct {
	Viewport []byte `json:"-"`
	FullPage []byte `json:"-"`
}

// Checkpoint is the durable record of one extraction run.
type Checkpoint struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Screenshots          *Screenshots                     `json:"-"`
	IdentifiedComponents []vision.ComponentIdentification `json:"identifiedComponents,omitempty"`
	ExtractedTokens      map[string]string                `json:"extractedTokens,omitempty"`
	Comparisons          []compare.ComponentResult        `json:"comparisons,omitempty"`
	Error                string                           `json:"error,omitempty"`
}

// New creates a fresh pending checkpoint for a run against url.
func New(url string) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    StatusPending,
		Progress:  0,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Partial is a field-wise merge for Store.Update. Nil pointer fields and
// nil slices/maps are left untouched on the stored record.
type Partial struct {
	Status               *Status
	Progress             *int
	Screenshots          *Screenshots
	IdentifiedComponents []vision.ComponentIdentification
	ExtractedTokens      map[string]string
	Comparisons          []compare.ComponentResult
	Error                *string
}

// apply merges p into c and refreshes UpdatedAt.
func (c *Checkpoint) apply(p Partial) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Progress != nil {
		c.Progress = *p.Progress
	}
	if p.Screenshots != nil {
		c.Screenshots = p.Screenshots
	}
	if p.IdentifiedComponents != nil {
		c.IdentifiedComponents = p.IdentifiedComponents
	}
	if p.ExtractedTokens != nil {
		c.ExtractedTokens = p.ExtractedTokens
	}
	if p.Comparisons != nil {
		c.Comparisons = p.Comparisons
	}
	if p.Error != nil {
		c.Error = *p.Error
	}
	c.UpdatedAt = time.Now().UTC()
}

// StatusPtr, ProgressPtr and ErrString are small helpers for building
// Partial values inline.
func StatusPtr(s Status) *Status   { return &s }
func ProgressPtr(p int) *int       { return &p }
func ErrString(msg string) *string { return &msg }

// blobRefs records where a checkpoint's binary blobs live. For the
// filesystem backend the refs are relative filenames; for the database
// backend they are blob-store ids.
type blobRefs struct {
	Viewport string            `json:"viewport,omitempty"`
	FullPage string            `json:"fullPage,omitempty"`
	Diffs    map[string]string `json:"diffs,omitempty"`
}

// document is the persisted metadata form: the checkpoint's scalar and
// JSON-like fields plus references to separately stored blobs.
type document struct {
	Checkpoint
	Blobs blobRefs `json:"blobs,omitempty"`
}

// clone returns a deep-enough copy so callers can't mutate stored state.
func (c *Checkpoint) clone() *Checkpoint {
	out := *c
	if c.Screenshots != nil {
		shots := &Screenshots{
			Viewport: append([]byte(nil), c.Screenshots.Viewport...),
			FullPage: append([]byte(nil), c.Screenshots.FullPage...),
		}
		out.Screenshots = shots
	}
	if c.IdentifiedComponents != nil {
		out.IdentifiedComponents = append([]vision.ComponentIdentification(nil), c.IdentifiedComponents...)
	}
	if c.ExtractedTokens != nil {
		out.ExtractedTokens = make(map[string]string, len(c.ExtractedTokens))
		for k, v := range c.ExtractedTokens {
			out.ExtractedTokens[k] = v
		}
	}
	if c.Comparisons != nil {
		out.Comparisons = make([]compare.ComponentResult, len(c.Comparisons))
		for i, cmp := range c.Comparisons {
			cmp.DiffImage = append([]byte(nil), cmp.DiffImage...)
			out.Comparisons[i] = cmp
		}
	}
	return &out
}
