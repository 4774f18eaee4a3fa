package checkpoint

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// BlobStore stores binary payloads (images) separately from checkpoint
// metadata. Blobs carry small attached metadata for retention tooling.
type BlobStore interface {
	// Upload stores data and returns its blob id. Uploading identical
	// content for the same checkpoint is idempotent and returns the same
	// id. Ids must be scoped to the owning checkpoint: deleting one
	// checkpoint's blobs must never remove content another checkpoint
	// still references.
	Upload(ctx context.Context, data []byte, meta BlobMeta) (string, error)

	// Download returns the blob's content, or ErrBlobNotFound.
	Download(ctx context.Context, id string) ([]byte, error)

	// Delete removes a blob. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error
}

// BlobMeta describes a blob's origin.
type BlobMeta struct {
	CheckpointID string
	Kind         string // "viewport", "fullpage", "diff"
	ContentType  string
}

// ErrBlobNotFound indicates a Download for an unknown blob id.
var ErrBlobNotFound = errors.New("blob not found")

// SQLiteBlobStore stores blobs in a SQLite table. Blob ids combine the
// owning checkpoint id with the SHA-256 hex digest of the content, so
// identical bytes saved by two checkpoints occupy separate rows and a
// delete or screenshot supersede on one checkpoint cannot orphan the
// other's references.
type SQLiteBlobStore struct {
	db *sql.DB
}

// NewSQLiteBlobStore creates the blobs table if needed.
func NewSQLiteBlobStore(db *sql.DB) (*SQLiteBlobStore, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blobs (
			id TEXT PRIMARY KEY,
			checkpoint_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content_type TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create blobs table: %w", err)
	}
	return &SQLiteBlobStore{db: db}, nil
}

// Upload implements BlobStore. The row is keyed by checkpoint id plus
// content digest; re-uploading the same bytes for the same checkpoint
// upserts in place.
func (s *SQLiteBlobStore) Upload(ctx context.Context, data []byte, meta BlobMeta) (string, error) {
	sum := sha256.Sum256(data)
	id := meta.CheckpointID + "/" + hex.EncodeToString(sum[:])

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, checkpoint_id, kind, content_type, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			checkpoint_id = excluded.checkpoint_id,
			kind = excluded.kind
	`, id, meta.CheckpointID, meta.Kind, meta.ContentType, data,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	return id, nil
}

// Download implements BlobStore.
func (s *SQLiteBlobStore) Download(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("download blob: %w", err)
	}
	return data, nil
}

// Delete implements BlobStore.
func (s *SQLiteBlobStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
