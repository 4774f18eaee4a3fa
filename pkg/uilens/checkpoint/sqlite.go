package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists checkpoint metadata in SQLite with blobs in a
// separate BlobStore, referenced by blob id from the metadata document.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	blobs  BlobStore
	mu     sync.RWMutex
	closed bool
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBlobStore overrides the default SQLite-backed blob store, e.g. to
// point at an external object store.
func WithBlobStore(bs BlobStore) SQLiteOption {
	return func(s *SQLiteStore) { s.blobs = bs }
}

// NewSQLiteStore opens (or creates) the store at path. Use ":memory:"
// for testing. The connection is owned by the store; the process entry
// point decides when to Close it.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			document TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	store := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(store)
	}

	if store.blobs == nil {
		blobs, err := NewSQLiteBlobStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		store.blobs = blobs
	}

	return store, nil
}

// Save implements Store. Blobs are uploaded before the metadata row that
// references them is written.
func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.writeLocked(ctx, cp)
	return err
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	cp, _, err := s.readLocked(ctx, id)
	return cp, err
}

// Update implements Store. Superseded screenshot blobs are deleted after
// the new metadata is durably written.
func (s *SQLiteStore) Update(ctx context.Context, id string, p Partial) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	cp, oldRefs, err := s.readLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	supersedesScreenshots := p.Screenshots != nil

	cp.apply(p)
	newRefs, err := s.writeLocked(ctx, cp)
	if err != nil {
		return nil, err
	}

	// Old screenshot blobs are eligible for removal once replaced.
	if supersedesScreenshots {
		for _, old := range []string{oldRefs.Viewport, oldRefs.FullPage} {
			if old == "" || old == newRefs.Viewport || old == newRefs.FullPage {
				continue
			}
			if err := s.blobs.Delete(ctx, old); err != nil {
				return nil, err
			}
		}
	}

	return cp.clone(), nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM checkpoints ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan checkpoint id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return ids, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, refs, err := s.readLocked(ctx, id)
	if err != nil {
		return err
	}

	for _, blobID := range refs.all() {
		if err := s.blobs.Delete(ctx, blobID); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// writeLocked uploads blobs, then upserts the metadata row. Returns the
// new blob refs.
func (s *SQLiteStore) writeLocked(ctx context.Context, cp *Checkpoint) (blobRefs, error) {
	doc := document{Checkpoint: *cp.clone()}

	if cp.Screenshots != nil {
		var err error
		if len(cp.Screenshots.Viewport) > 0 {
			doc.Blobs.Viewport, err = s.blobs.Upload(ctx, cp.Screenshots.Viewport, BlobMeta{
				CheckpointID: cp.ID, Kind: "viewport", ContentType: "image/png",
			})
			if err != nil {
				return blobRefs{}, err
			}
		}
		if len(cp.Screenshots.FullPage) > 0 {
			doc.Blobs.FullPage, err = s.blobs.Upload(ctx, cp.Screenshots.FullPage, BlobMeta{
				CheckpointID: cp.ID, Kind: "fullpage", ContentType: "image/png",
			})
			if err != nil {
				return blobRefs{}, err
			}
		}
	}
	for _, cmp := range cp.Comparisons {
		if len(cmp.DiffImage) == 0 {
			continue
		}
		id, err := s.blobs.Upload(ctx, cmp.DiffImage, BlobMeta{
			CheckpointID: cp.ID, Kind: "diff", ContentType: "image/png",
		})
		if err != nil {
			return blobRefs{}, err
		}
		if doc.Blobs.Diffs == nil {
			doc.Blobs.Diffs = make(map[string]string)
		}
		doc.Blobs.Diffs[cmp.ComponentID] = id
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return blobRefs{}, fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, url, status, progress, updated_at, document)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			status = excluded.status,
			progress = excluded.progress,
			updated_at = excluded.updated_at,
			document = excluded.document
	`, cp.ID, cp.URL, string(cp.Status), cp.Progress,
		cp.UpdatedAt.UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return blobRefs{}, fmt.Errorf("save checkpoint: %w", err)
	}

	return doc.Blobs, nil
}

// readLocked loads a checkpoint and its blob refs, downloading and
// reattaching all referenced blobs. Missing id yields (nil, empty, nil).
func (s *SQLiteStore) readLocked(ctx context.Context, id string) (*Checkpoint, blobRefs, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM checkpoints WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, blobRefs{}, nil
	}
	if err != nil {
		return nil, blobRefs{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, blobRefs{}, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	cp := doc.Checkpoint

	if doc.Blobs.Viewport != "" || doc.Blobs.FullPage != "" {
		shots := &Screenshots{}
		if doc.Blobs.Viewport != "" {
			if shots.Viewport, err = s.blobs.Download(ctx, doc.Blobs.Viewport); err != nil {
				return nil, blobRefs{}, err
			}
		}
		if doc.Blobs.FullPage != "" {
			if shots.FullPage, err = s.blobs.Download(ctx, doc.Blobs.FullPage); err != nil {
				return nil, blobRefs{}, err
			}
		}
		cp.Screenshots = shots
	}
	for i, cmp := range cp.Comparisons {
		blobID, ok := doc.Blobs.Diffs[cmp.ComponentID]
		if !ok {
			continue
		}
		diff, err := s.blobs.Download(ctx, blobID)
		if err != nil {
			return nil, blobRefs{}, err
		}
		cp.Comparisons[i].DiffImage = diff
	}

	return &cp, doc.Blobs, nil
}

// all returns every blob id referenced by the refs.
func (r blobRefs) all() []string {
	var ids []string
	if r.Viewport != "" {
		ids = append(ids, r.Viewport)
	}
	if r.FullPage != "" {
		ids = append(ids, r.FullPage)
	}
	for _, id := range r.Diffs {
		ids = append(ids, id)
	}
	return ids
}
