package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/uilens/pkg/uilens/checkpoint"
	"github.com/randalmurphal/uilens/pkg/uilens/vision"
)

// seededCheckpoint builds a checkpoint carrying realistic payloads: two
// screenshot blobs, a component list, and a token map.
func seededCheckpoint() *checkpoint.Checkpoint {
	cp := checkpoint.New("https://example.com")
	cp.Status = checkpoint.StatusExtraction
	cp.Progress = 75
	cp.Screenshots = &checkpoint.Screenshots{
		Viewport: renderPNG(1280, 800, 16, blue, white),
		FullPage: renderPNG(1280, 2400, 16, blue, white),
	}
	cp.IdentifiedComponents = make([]vision.ComponentIdentification, 12)
	for i := range cp.IdentifiedComponents {
		cp.IdentifiedComponents[i] = vision.ComponentIdentification{
			Type:        "button",
			Name:        fmt.Sprintf("component-%d", i),
			BoundingBox: vision.BoundingBox{X: float64(i * 10), Y: 20, Width: 120, Height: 40},
			Confidence:  0.9,
		}
	}
	cp.ExtractedTokens = map[string]string{
		"color.text":       "rgb(33, 33, 33)",
		"color.background": "rgb(255, 255, 255)",
		"font.family":      "Inter, sans-serif",
		"font.size":        "16px",
	}
	return cp
}

// BenchmarkFSStore_Save measures a full save including both image blobs.
func BenchmarkFSStore_Save(b *testing.B) {
	store, err := checkpoint.NewFSStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	cp := seededCheckpoint()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.Save(ctx, cp); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFSStore_Load measures rehydrating a checkpoint with blobs.
func BenchmarkFSStore_Load(b *testing.B) {
	store, err := checkpoint.NewFSStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	cp := seededCheckpoint()
	if err := store.Save(ctx, cp); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Load(ctx, cp.ID); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSQLiteStore_Save measures a full save into an in-memory database.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	cp := seededCheckpoint()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.Save(ctx, cp); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSQLiteStore_Load measures rehydrating from the blob store.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	cp := seededCheckpoint()
	if err := store.Save(ctx, cp); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Load(ctx, cp.ID); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkStore_Update measures the partial-merge write path.
func BenchmarkStore_Update(b *testing.B) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	cp := seededCheckpoint()
	if err := store.Save(ctx, cp); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := store.Update(ctx, cp.ID, checkpoint.Partial{
			Progress: checkpoint.ProgressPtr(i % 100),
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
