// Package locate estimates a position from observed objects by matching
// their embeddings against a location database.
//
// Each object bitmap is embedded and compared, by L1 distance, with the
// stored records lying within ±eps degrees (on both axes) of the previous
// position. The new position is the mean location of the best matches. When
// nothing matches, the previous position is kept.
package locate

import (
	"context"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/loader"
	"github.com/matzehuels/geomap/pkg/raster"
)

// DefaultEps is the search half-width in degrees around the previous
// position.
const DefaultEps = 0.001

// Index finds stored records near a position.
type Index interface {
	Near(ctx context.Context, lon, lat, eps float64) ([]loader.Record, error)
}

// Match is the most similar stored record for one observed object.
type Match struct {
	Object   int           `json:"object"`
	Record   loader.Record `json:"record"`
	Distance float64       `json:"distance"`
}

// Result is a position estimate.
type Result struct {
	Lon        float64 `json:"lon"`
	Lat        float64 `json:"lat"`
	Objects    int     `json:"objects"`
	Candidates int     `json:"candidates"`
	Matches    []Match `json:"matches"`
}

// Recognized reports how many objects were matched.
func (r Result) Recognized() int { return len(r.Matches) }

// Locator matches objects against an [Index].
type Locator struct {
	index  Index
	embed  loader.Embedder
	eps    float64
	logger *log.Logger
}

// New creates a locator. A non-positive eps uses DefaultEps.
func New(index Index, embed loader.Embedder, eps float64, logger *log.Logger) *Locator {
	if eps <= 0 {
		eps = DefaultEps
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Locator{index: index, embed: embed, eps: eps, logger: logger}
}

// Eps returns the search half-width in degrees.
func (l *Locator) Eps() float64 { return l.eps }

// Locate updates the position (lon, lat) from the observed objects. Objects
// that cannot be embedded are skipped.
func (l *Locator) Locate(ctx context.Context, objects []*raster.Canvas, lon, lat float64) (Result, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "position %g;%g out of range", lon, lat)
	}
	res := Result{Lon: lon, Lat: lat, Objects: len(objects)}
	if len(objects) == 0 {
		return res, nil
	}

	found, err := l.index.Near(ctx, lon, lat, l.eps)
	if err != nil {
		return Result{}, err
	}
	cands := make([]loader.Record, 0, len(found))
	for _, r := range found {
		if Within(r.Lon, r.Lat, lon, lat, l.eps) {
			cands = append(cands, r)
		}
	}
	res.Candidates = len(cands)

	var sumLon, sumLat float64
	for i, obj := range objects {
		vec, err := l.embed.Embed(obj)
		if err != nil {
			l.logger.Warn("skipping object", "object", i, "err", err)
			continue
		}
		m, ok := Nearest(vec, cands)
		if !ok {
			continue
		}
		m.Object = i
		res.Matches = append(res.Matches, m)
		sumLon += m.Record.Lon
		sumLat += m.Record.Lat
	}

	if n := float64(len(res.Matches)); n > 0 {
		res.Lon, res.Lat = sumLon/n, sumLat/n
	}
	l.logger.Debug("located",
		"objects", res.Objects,
		"candidates", res.Candidates,
		"recognized", res.Recognized(),
		"lon", res.Lon, "lat", res.Lat)
	return res, nil
}

// Nearest returns the candidate closest to vec by L1 distance. Candidates
// with a different vector length are ignored; ties keep the first.
func Nearest(vec []float64, cands []loader.Record) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	found := false
	for _, r := range cands {
		if len(r.Vector) != len(vec) {
			continue
		}
		if d := L1(vec, r.Vector); d < best.Distance {
			best = Match{Record: r, Distance: d}
			found = true
		}
	}
	return best, found
}

// L1 returns the sum of absolute differences of two equal-length vectors.
func L1(a, b []float64) float64 {
	var d float64
	for i := range a {
		d += math.Abs(a[i] - b[i])
	}
	return d
}

// Within reports whether (lon, lat) lies inside the closed eps box around
// (centerLon, centerLat).
func Within(lon, lat, centerLon, centerLat, eps float64) bool {
	return math.Abs(lon-centerLon) <= eps && math.Abs(lat-centerLat) <= eps
}
