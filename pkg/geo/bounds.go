package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geomap/pkg/errors"
)

// BoundingBox is an axis-aligned latitude/longitude rectangle.
// A valid box has MinLon < MaxLon and MinLat < MaxLat.
type BoundingBox struct {
	MinLon float64 `json:"min_lon" toml:"min_lon"`
	MinLat float64 `json:"min_lat" toml:"min_lat"`
	MaxLon float64 `json:"max_lon" toml:"max_lon"`
	MaxLat float64 `json:"max_lat" toml:"max_lat"`
}

// NewBoundingBox returns a validated box.
func NewBoundingBox(minLon, minLat, maxLon, maxLat float64) (BoundingBox, error) {
	b := BoundingBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// ParseBoundingBox parses "minlon,minlat,maxlon,maxlat".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, errors.New(errors.ErrCodeInvalidBounds,
			"bounding box must have 4 comma-separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, errors.Wrap(errors.ErrCodeInvalidBounds, err, "parse coordinate %q", p)
		}
		v[i] = f
	}
	return NewBoundingBox(v[0], v[1], v[2], v[3])
}

// Validate reports a fatal ErrCodeInvalidBounds error if the box is empty,
// inverted, out of range, or contains NaN.
func (b BoundingBox) Validate() error {
	for _, f := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New(errors.ErrCodeInvalidBounds, "bounding box %s has a non-finite coordinate", b)
		}
	}
	if b.MinLon >= b.MaxLon {
		return errors.New(errors.ErrCodeInvalidBounds, "min_lon %v must be less than max_lon %v", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return errors.New(errors.ErrCodeInvalidBounds, "min_lat %v must be less than max_lat %v", b.MinLat, b.MaxLat)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return errors.New(errors.ErrCodeInvalidBounds, "bounding box %s is outside the WGS84 range", b)
	}
	return nil
}

// Contains reports whether (lat, lon) lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.Bound().Contains(orb.Point{lon, lat})
}

// Bound converts the box to an orb.Bound (x = lon, y = lat).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Origin returns the upper-left corner used as the projection origin.
func (b BoundingBox) Origin() orb.Point {
	return orb.Point{b.MinLon, b.MaxLat}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() orb.Point {
	return b.Bound().Center()
}

// String formats the box as "minlon,minlat,maxlon,maxlat".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%v,%v,%v,%v", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Extent tracks the running min/max latitude and longitude of visited points.
// The zero value is empty.
type Extent struct {
	bound orb.Bound
	set   bool
}

// Add extends the extent to include (lat, lon).
func (e *Extent) Add(lat, lon float64) {
	p := orb.Point{lon, lat}
	if !e.set {
		e.bound = orb.Bound{Min: p, Max: p}
		e.set = true
		return
	}
	e.bound = e.bound.Extend(p)
}

// IsEmpty reports whether no point has been added.
func (e Extent) IsEmpty() bool { return !e.set }

// Box returns the extent as a bounding box. The result may be degenerate
// (min == max) and is not validated.
func (e Extent) Box() BoundingBox {
	return BoundingBox{
		MinLon: e.bound.Min.Lon(),
		MinLat: e.bound.Min.Lat(),
		MaxLon: e.bound.Max.Lon(),
		MaxLat: e.bound.Max.Lat(),
	}
}

// Centroid returns the midpoint of the tracked extent as (lat, lon).
func (e Extent) Centroid() (lat, lon float64) {
	c := e.bound.Center()
	return c.Lat(), c.Lon()
}
