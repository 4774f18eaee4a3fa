package compare

import "image"

// Histogram is a normalized per-channel color distribution. Each channel
// has the configured bucket count and sums to 1 (or is all zeros for an
// image with no counted pixels).
type Histogram struct {
	R, G, B []float64
}

// ChannelHistograms builds a fixed-bucket histogram per RGB channel,
// normalized so each channel sums to 1. Fully transparent pixels are
// excluded unless includeTransparent is set.
func ChannelHistograms(img image.Image, buckets int, includeTransparent bool) Histogram {
	h := Histogram{
		R: make([]float64, buckets),
		G: make([]float64, buckets),
		B: make([]float64, buckets),
	}

	bounds := img.Bounds()
	counted := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 && !includeTransparent {
				continue
			}
			h.R[bucketFor(r, buckets)]++
			h.G[bucketFor(g, buckets)]++
			h.B[bucketFor(b, buckets)]++
			counted++
		}
	}

	if counted == 0 {
		return h
	}
	for i := 0; i < buckets; i++ {
		h.R[i] /= float64(counted)
		h.G[i] /= float64(counted)
		h.B[i] /= float64(counted)
	}
	return h
}

// bucketFor maps a 16-bit channel value onto a bucket index.
func bucketFor(v uint32, buckets int) int {
	idx := int(v>>8) * buckets / 256
	if idx >= buckets {
		idx = buckets - 1
	}
	return idx
}

// Intersection computes histogram intersection: the sum over buckets of
// min(a, b). For normalized histograms the result is in [0, 1].
func Intersection(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += min(a[i], b[i])
	}
	return sum
}

// colorScore is the mean of the three per-channel intersections. Two
// images with no counted pixels at all agree on having no color content
// and score 1; a one-sided empty histogram scores 0 as usual.
func colorScore(a, b image.Image, buckets int, includeTransparent bool) float64 {
	ha := ChannelHistograms(a, buckets, includeTransparent)
	hb := ChannelHistograms(b, buckets, includeTransparent)

	if ha.empty() && hb.empty() {
		return 1
	}

	return (Intersection(ha.R, hb.R) +
		Intersection(ha.G, hb.G) +
		Intersection(ha.B, hb.B)) / 3
}

// empty reports whether no pixels were counted into the histogram.
func (h Histogram) empty() bool {
	for _, ch := range [][]float64{h.R, h.G, h.B} {
		for _, v := range ch {
			if v != 0 {
				return false
			}
		}
	}
	return true
}
