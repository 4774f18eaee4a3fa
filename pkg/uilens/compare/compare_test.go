package compare_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidPNG encodes a w x h image filled with c.
func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	red   = color.RGBA{R: 200, A: 255}
	blue  = color.RGBA{B: 200, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestCompare_IdenticalImages(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})
	img := solidPNG(t, 20, 20, red)

	result, err := engine.Compare(img, img)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.SSIMScore)
	assert.Equal(t, 1.0, result.ColorScore)
	assert.Equal(t, 1.0, result.CombinedScore)
	assert.True(t, result.Passed)
}

func TestCompare_FullyTransparentSelfComparison(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})
	// All pixels transparent, so nothing is counted into the histograms.
	img := solidPNG(t, 10, 10, color.RGBA{})

	result, err := engine.Compare(img, img)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.SSIMScore)
	assert.Equal(t, 1.0, result.ColorScore, "empty color content on both sides is identical color content")
	assert.Equal(t, 1.0, result.CombinedScore)
	assert.True(t, result.Passed)
}

func TestCompare_TransparentAgainstOpaque(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})

	result, err := engine.Compare(solidPNG(t, 10, 10, color.RGBA{}), solidPNG(t, 10, 10, red))
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.ColorScore, "one-sided empty histogram stays dissimilar")
}

func TestCompare_IdenticalImages_AnyThresholdUpToOne(t *testing.T) {
	for _, threshold := range []float64{0.5, 0.95, 1.0} {
		engine := compare.NewEngine(compare.Options{PassThreshold: threshold})
		img := solidPNG(t, 8, 8, blue)

		result, err := engine.Compare(img, img)
		require.NoError(t, err)
		assert.True(t, result.Passed, "threshold %v", threshold)
	}
}

func TestCompare_ThresholdNeverClamped(t *testing.T) {
	engine := compare.NewEngine(compare.Options{PassThreshold: 1.1})
	img := solidPNG(t, 8, 8, red)

	result, err := engine.Compare(img, img)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.CombinedScore)
	assert.False(t, result.Passed)
}

func TestCompare_CompletelyDifferentImages(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})

	result, err := engine.Compare(solidPNG(t, 10, 10, red), solidPNG(t, 10, 10, blue))
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.SSIMScore)
	assert.Less(t, result.ColorScore, 1.0)
	assert.False(t, result.Passed)
}

func TestCompare_SizeMismatchAbsorbed(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})

	// A white 10x10 against a white 20x10: the extra canvas area is padded
	// white, so the images still match perfectly.
	result, err := engine.Compare(solidPNG(t, 10, 10, white), solidPNG(t, 20, 10, white))
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.SSIMScore)
}

func TestCompare_SizeMismatchCountsUncoveredArea(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})

	// Red 10x10 vs red 20x10: the right half of the canvas is white-padded
	// for the small image and red for the large one, so half differs.
	result, err := engine.Compare(solidPNG(t, 10, 10, red), solidPNG(t, 20, 10, red))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.SSIMScore, 1e-9)
}

func TestCompare_DiffImage(t *testing.T) {
	engine := compare.NewEngine(compare.Options{GenerateDiff: true})

	result, err := engine.Compare(solidPNG(t, 5, 5, red), solidPNG(t, 5, 5, blue))
	require.NoError(t, err)
	require.NotEmpty(t, result.DiffImage)

	diff, err := png.Decode(bytes.NewReader(result.DiffImage))
	require.NoError(t, err)
	assert.Equal(t, 5, diff.Bounds().Dx())
	assert.Equal(t, 5, diff.Bounds().Dy())

	// Every pixel differs, so every pixel is highlighted.
	r, _, _, a := diff.At(2, 2).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), a)
}

func TestCompare_NoDiffImageByDefault(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})

	result, err := engine.Compare(solidPNG(t, 5, 5, red), solidPNG(t, 5, 5, red))
	require.NoError(t, err)
	assert.Nil(t, result.DiffImage)
}

func TestCompare_InvalidPNG(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})

	_, err := engine.Compare([]byte("not a png"), solidPNG(t, 5, 5, red))
	assert.Error(t, err)
}

func TestCompare_CustomWeights(t *testing.T) {
	engine := compare.NewEngine(compare.Options{SSIMWeight: 1.0, ColorWeight: 1.0, PassThreshold: 1.5})
	img := solidPNG(t, 4, 4, red)

	// Weights are not required to sum to 1.
	result, err := engine.Compare(img, img)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.CombinedScore)
	assert.True(t, result.Passed)
}

func TestChannelHistograms_SumToOne(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}

	for _, buckets := range []int{16, 64, 256} {
		h := compare.ChannelHistograms(img, buckets, false)

		assert.Len(t, h.R, buckets)
		assert.Len(t, h.G, buckets)
		assert.Len(t, h.B, buckets)

		for _, channel := range [][]float64{h.R, h.G, h.B} {
			sum := 0.0
			for _, v := range channel {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestChannelHistograms_TransparentExcluded(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{}) // fully transparent

	h := compare.ChannelHistograms(img, 256, false)

	// Only the opaque red pixel counts.
	assert.Equal(t, 1.0, h.R[255])

	included := compare.ChannelHistograms(img, 256, true)
	assert.Equal(t, 0.5, included.R[255])
	assert.Equal(t, 0.5, included.R[0])
}

func TestIntersection_Identical(t *testing.T) {
	a := []float64{0.25, 0.25, 0.5}
	assert.InDelta(t, 1.0, compare.Intersection(a, a), 1e-9)
}

func TestIntersection_Disjoint(t *testing.T) {
	assert.Equal(t, 0.0, compare.Intersection([]float64{1, 0}, []float64{0, 1}))
}

func TestCompareBatch_PreservesInputOrder(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})
	img := solidPNG(t, 10, 10, red)

	items := []compare.BatchItem{
		{ComponentID: "a", Original: img, Generated: img},
		{ComponentID: "b", Original: img, Generated: img},
		{ComponentID: "c", Original: img, Generated: img},
	}

	// Run repeatedly so goroutine scheduling gets a chance to reorder.
	for i := 0; i < 20; i++ {
		results, err := engine.CompareBatch(context.Background(), items)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].ComponentID)
		assert.Equal(t, "b", results[1].ComponentID)
		assert.Equal(t, "c", results[2].ComponentID)
	}
}

func TestCompareBatch_IdenticalImagesHighThreshold(t *testing.T) {
	engine := compare.NewEngine(compare.Options{PassThreshold: 1.1})
	img := solidPNG(t, 6, 6, blue)

	results, err := engine.CompareBatch(context.Background(), []compare.BatchItem{
		{ComponentID: "x", Original: img, Generated: img},
		{ComponentID: "y", Original: img, Generated: img},
	})
	require.NoError(t, err)

	for _, r := range results {
		assert.Equal(t, 1.0, r.CombinedScore)
		assert.False(t, r.Passed)
	}
}

func TestCompareBatch_ItemError(t *testing.T) {
	engine := compare.NewEngine(compare.Options{})
	good := solidPNG(t, 4, 4, red)

	results, err := engine.CompareBatch(context.Background(), []compare.BatchItem{
		{ComponentID: "ok", Original: good, Generated: good},
		{ComponentID: "bad", Original: []byte("junk"), Generated: good},
	})

	require.Error(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "bad", results[1].ComponentID)
}

func TestSummarize(t *testing.T) {
	results := []compare.ComponentResult{
		{ComponentID: "a", Result: compare.Result{CombinedScore: 1.0, Passed: true}},
		{ComponentID: "b", Result: compare.Result{CombinedScore: 0.5, Passed: false}},
	}

	s := compare.Summarize(results)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 0.75, s.AverageScore, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := compare.Summarize(nil)
	assert.Equal(t, compare.Summary{}, s)
	assert.False(t, s.AverageScore != s.AverageScore, "AverageScore must not be NaN")
}
