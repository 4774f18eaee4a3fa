package compare

import (
	"image"
	"image/color"
)

// white is the padding color for canvas area not covered by an input image.
var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// highlight marks differing pixels in the diff image.
var highlight = color.RGBA{R: 255, A: 255}

// structuralScore normalizes both images onto a canvas sized to the
// maximum of their dimensions, padding uncovered area with opaque white,
// and counts pixels whose channel delta exceeds the threshold.
// Returns 1 - differing/total, plus a diff image when requested.
func structuralScore(a, b image.Image, threshold int, genDiff bool) (float64, *image.RGBA) {
	width := max(a.Bounds().Dx(), b.Bounds().Dx())
	height := max(a.Bounds().Dy(), b.Bounds().Dy())
	if width == 0 || height == 0 {
		return 1, nil
	}

	var diff *image.RGBA
	if genDiff {
		diff = image.NewRGBA(image.Rect(0, 0, width, height))
	}

	differing := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pa := pixelAt(a, x, y)
			pb := pixelAt(b, x, y)

			if diff != nil {
				diff.SetRGBA(x, y, pa)
			}

			if channelDelta(pa.R, pb.R) > threshold ||
				channelDelta(pa.G, pb.G) > threshold ||
				channelDelta(pa.B, pb.B) > threshold ||
				channelDelta(pa.A, pb.A) > threshold {
				differing++
				if diff != nil {
					diff.SetRGBA(x, y, highlight)
				}
			}
		}
	}

	total := width * height
	return 1 - float64(differing)/float64(total), diff
}

// pixelAt reads a pixel as 8-bit RGBA, returning opaque white outside
// the image bounds.
func pixelAt(img image.Image, x, y int) color.RGBA {
	bounds := img.Bounds()
	if x >= bounds.Dx() || y >= bounds.Dy() {
		return white
	}
	r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
	return color.RGBA{
		R: uint8(r >> 8),
		G: uint8(g >> 8),
		B: uint8(b >> 8),
		A: uint8(a >> 8),
	}
}

func channelDelta(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
