package capture

import (
	"image"
	"image/draw"
)

// SliceCount returns how many viewport-height slices a full-page capture
// needs: ceil(min(totalHeight, maxHeight) / viewportHeight). Zero when
// there is nothing to capture.
func SliceCount(totalHeight, maxHeight, viewportHeight int) int {
	if totalHeight <= 0 || viewportHeight <= 0 {
		return 0
	}
	h := totalHeight
	if maxHeight > 0 && h > maxHeight {
		h = maxHeight
	}
	return (h + viewportHeight - 1) / viewportHeight
}

// Stitch composites slices top-to-bottom onto a canvas of the given
// height. The last slice is bottom-aligned because the browser clamps the
// final scroll position, so its top overlaps the previous slice.
func Stitch(slices []image.Image, height int) image.Image {
	if len(slices) == 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	width := slices[0].Bounds().Dx()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	y := 0
	for i, s := range slices {
		sh := s.Bounds().Dy()
		if i == len(slices)-1 && y+sh > height {
			y = height - sh
			if y < 0 {
				y = 0
			}
		}
		r := image.Rect(0, y, width, y+sh)
		draw.Draw(canvas, r, s, s.Bounds().Min, draw.Src)
		y += sh
	}
	return canvas
}
