package loader

import (
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/raster"
)

// DefaultBins is the per-channel histogram resolution of [HistogramEmbedder].
const DefaultBins = 8

// Embedder turns a mask bitmap into a fixed-length feature vector.
type Embedder interface {
	Dim() int
	Embed(bitmap *raster.Canvas) ([]float64, error)
}

// HistogramEmbedder computes a normalized per-channel color histogram over
// the painted pixels of a mask. The vector holds Bins red buckets, then Bins
// green, then Bins blue; each channel sums to 1.
type HistogramEmbedder struct {
	Bins int
}

// NewHistogramEmbedder returns an embedder with the given bin count.
// Non-positive values use DefaultBins; values above 256 are capped.
func NewHistogramEmbedder(bins int) *HistogramEmbedder {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &HistogramEmbedder{Bins: min(bins, 256)}
}

func (e *HistogramEmbedder) Dim() int { return 3 * e.Bins }

func (e *HistogramEmbedder) Embed(bitmap *raster.Canvas) ([]float64, error) {
	vec := make([]float64, e.Dim())
	n := 0
	for y := 0; y < bitmap.Height(); y++ {
		for x := 0; x < bitmap.Width(); x++ {
			if bitmap.IsBackground(x, y) {
				continue
			}
			c := bitmap.At(x, y)
			vec[e.bin(c.R)]++
			vec[e.Bins+e.bin(c.G)]++
			vec[2*e.Bins+e.bin(c.B)]++
			n++
		}
	}
	if n == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "mask has no painted pixels")
	}
	for i := range vec {
		vec[i] /= float64(n)
	}
	return vec, nil
}

func (e *HistogramEmbedder) bin(v uint8) int {
	return int(v) * e.Bins / 256
}
