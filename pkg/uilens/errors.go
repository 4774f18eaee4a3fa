package uilens

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline construction and resume.
var (
	// ErrNilStore indicates New was called without a checkpoint store.
	ErrNilStore = errors.New("checkpoint store cannot be nil")

	// ErrNilCapturer indicates New was called without a screenshot capturer.
	ErrNilCapturer = errors.New("capturer cannot be nil")

	// ErrNilIdentifier indicates New was called without a component identifier.
	ErrNilIdentifier = errors.New("identifier cannot be nil")

	// ErrNilExtractor indicates New was called without a token extractor.
	ErrNilExtractor = errors.New("token extractor cannot be nil")

	// ErrEmptyURL indicates Run was called with an empty URL.
	ErrEmptyURL = errors.New("url cannot be empty")

	// ErrCheckpointNotFound indicates Resume was called with an unknown id.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// StageError wraps a stage failure with pipeline context. It is recorded
// on the RunResult, not returned from Run: stage failures mark the
// checkpoint failed rather than propagating to the caller.
type StageError struct {
	// Stage is the stage that failed.
	Stage Stage
	// CheckpointID is the run whose stage failed.
	CheckpointID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (checkpoint %s): %v", e.Stage, e.CheckpointID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PersistError wraps a checkpoint write failure during a run. Unlike
// stage failures, persistence failures propagate out of Run because the
// store contract is load-bearing for every later stage.
type PersistError struct {
	// Stage is the stage whose result could not be persisted.
	Stage Stage
	// Op is the store operation that failed ("save", "update").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s after stage %s: %v", e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PersistError) Unwrap() error {
	return e.Err
}
