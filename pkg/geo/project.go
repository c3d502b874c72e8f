package geo

import (
	"github.com/tidwall/geodesic"
)

// Distance returns the WGS84 geodesic distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &s12, nil, nil)
	return s12
}

// Projector maps coordinates to integer pixels relative to a box's
// upper-left corner.
type Projector struct {
	originLat float64
	originLon float64
}

// NewProjector returns a projector anchored at (box.MaxLat, box.MinLon).
func NewProjector(box BoundingBox) *Projector {
	return &Projector{originLat: box.MaxLat, originLon: box.MinLon}
}

// Project returns the pixel column and row of (lat, lon).
func (p *Projector) Project(lat, lon float64) (x, y int) {
	y = int(Distance(p.originLat, p.originLon, lat, p.originLon))
	x = int(Distance(p.originLat, p.originLon, p.originLat, lon))
	return x, y
}

// Size returns the raster width and height of box in pixels.
func Size(box BoundingBox) (width, height int) {
	return NewProjector(box).Project(box.MinLat, box.MaxLon)
}
