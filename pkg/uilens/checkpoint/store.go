package checkpoint

import (
	"context"
	"errors"
)

// Store persists checkpoints. Implementations must be safe for concurrent
// use, and must write blobs durably before the metadata that references
// them so a concurrent Load never observes a dangling blob reference.
type Store interface {
	// Save stores a checkpoint, overwriting any existing record with the
	// same id. Idempotent upsert.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load returns the fully rehydrated checkpoint (blobs reattached),
	// or (nil, nil) if the id is unknown. A missing id is not an error.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// Update merges partial fields into an existing record and refreshes
	// UpdatedAt. Returns ErrNotFound if the id does not exist; it never
	// creates a record. Updating Screenshots supersedes previously stored
	// screenshot blobs.
	Update(ctx context.Context, id string, p Partial) (*Checkpoint, error)

	// List returns all known checkpoint ids.
	List(ctx context.Context) ([]string, error)

	// Delete removes the metadata and all associated blobs.
	// Deleting an unknown id is a no-op, not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates an Update against an unknown checkpoint id.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
