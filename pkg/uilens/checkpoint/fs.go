package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Blob filenames inside a checkpoint directory.
const (
	metadataFile = "checkpoint.json"
	viewportFile = "viewport.png"
	fullPageFile = "fullpage.png"
)

// FSStore persists checkpoints on the local filesystem: one directory per
// id, holding a JSON metadata file and sibling image files referenced by
// relative name.
type FSStore struct {
	root   string
	mu     sync.RWMutex
	closed bool
}

// NewFSStore creates a filesystem store rooted at dir, creating it if
// necessary.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FSStore{root: dir}, nil
}

// Save implements Store. Blob files are written before the metadata file,
// and the metadata file is replaced atomically via rename.
func (s *FSStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeLocked(cp)
}

// Load implements Store.
func (s *FSStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.readLocked(id)
}

// Update implements Store.
func (s *FSStore) Update(ctx context.Context, id string, p Partial) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cp, err := s.readLocked(id)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	cp.apply(p)
	if err := s.writeLocked(cp); err != nil {
		return nil, err
	}
	return cp.clone(), nil
}

// List implements Store.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Only directories holding a metadata file count as checkpoints.
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), metadataFile)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}

// Delete implements Store.
func (s *FSStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.dir(id)); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return nil
}

// Close implements Store.
func (s *FSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FSStore) dir(id string) string {
	return filepath.Join(s.root, sanitizeName(id))
}

func (s *FSStore) writeLocked(cp *Checkpoint) error {
	dir := s.dir(cp.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	doc := document{Checkpoint: *cp.clone()}

	// Blobs first, so the metadata never references a missing file.
	if cp.Screenshots != nil {
		if len(cp.Screenshots.Viewport) > 0 {
			if err := writeFileSync(filepath.Join(dir, viewportFile), cp.Screenshots.Viewport); err != nil {
				return err
			}
			doc.Blobs.Viewport = viewportFile
		}
		if len(cp.Screenshots.FullPage) > 0 {
			if err := writeFileSync(filepath.Join(dir, fullPageFile), cp.Screenshots.FullPage); err != nil {
				return err
			}
			doc.Blobs.FullPage = fullPageFile
		}
	}
	for _, cmp := range cp.Comparisons {
		if len(cmp.DiffImage) == 0 {
			continue
		}
		name := "diff_" + sanitizeName(cmp.ComponentID) + ".png"
		if err := writeFileSync(filepath.Join(dir, name), cmp.DiffImage); err != nil {
			return err
		}
		if doc.Blobs.Diffs == nil {
			doc.Blobs.Diffs = make(map[string]string)
		}
		doc.Blobs.Diffs[cmp.ComponentID] = name
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	// Atomic metadata replace.
	tmp := filepath.Join(dir, metadataFile+".tmp")
	if err := writeFileSync(tmp, data); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dir, metadataFile)); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

func (s *FSStore) readLocked(id string) (*Checkpoint, error) {
	dir := s.dir(id)
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	cp := doc.Checkpoint

	// Reattach blobs by relative filename.
	if doc.Blobs.Viewport != "" || doc.Blobs.FullPage != "" {
		shots := &Screenshots{}
		if doc.Blobs.Viewport != "" {
			if shots.Viewport, err = os.ReadFile(filepath.Join(dir, doc.Blobs.Viewport)); err != nil {
				return nil, fmt.Errorf("read viewport blob: %w", err)
			}
		}
		if doc.Blobs.FullPage != "" {
			if shots.FullPage, err = os.ReadFile(filepath.Join(dir, doc.Blobs.FullPage)); err != nil {
				return nil, fmt.Errorf("read full-page blob: %w", err)
			}
		}
		cp.Screenshots = shots
	}
	for i, cmp := range cp.Comparisons {
		name, ok := doc.Blobs.Diffs[cmp.ComponentID]
		if !ok {
			continue
		}
		diff, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read diff blob %s: %w", name, err)
		}
		cp.Comparisons[i].DiffImage = diff
	}

	return &cp, nil
}

// writeFileSync writes data and fsyncs before closing, so a blob is
// durable before the metadata referencing it is written.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// sanitizeName keeps ids and component ids filesystem-safe.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
