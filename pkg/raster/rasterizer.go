package raster

import (
	"image"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/osmdata"
)

// DefaultStrokeWidth is the pixel width used for ways.
const DefaultStrokeWidth = 6

// Rasterizer renders entities within one bounding box.
type Rasterizer struct {
	box         geo.BoundingBox
	table       *classify.Table
	proj        *geo.Projector
	strokeWidth float64
	width       int
	height      int
}

// AreaResult is the output of drawing one classified area.
type AreaResult struct {
	Scratch *Canvas        // isolated rendering of the area
	Extent  geo.Extent     // lat/lon extent of every accepted ring node
	Class   classify.Class // classification that selected the color
	Pixels  int            // non-background pixels on Scratch
}

// NewRasterizer validates box and prepares a rasterizer for it.
func NewRasterizer(box geo.BoundingBox, table *classify.Table) (*Rasterizer, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "classification table is required")
	}
	w, h := geo.Size(box)
	return &Rasterizer{
		box:         box,
		table:       table,
		proj:        geo.NewProjector(box),
		strokeWidth: DefaultStrokeWidth,
		width:       w,
		height:      h,
	}, nil
}

// WithStrokeWidth sets the way stroke width. Non-positive values are ignored.
func (r *Rasterizer) WithStrokeWidth(w float64) *Rasterizer {
	if w > 0 {
		r.strokeWidth = w
	}
	return r
}

// NewCanvas allocates a background canvas sized for the box.
func (r *Rasterizer) NewCanvas() *Canvas {
	return New(r.width, r.height)
}

// Box returns the rendered bounding box.
func (r *Rasterizer) Box() geo.BoundingBox { return r.box }

// Projector returns the projector anchored at the box origin.
func (r *Rasterizer) Projector() *geo.Projector { return r.proj }

// Size returns the canvas dimensions.
func (r *Rasterizer) Size() (width, height int) { return r.width, r.height }

// DrawWay strokes w onto c in its category color. It reports whether the way
// classified; an unclassified way leaves c untouched.
func (r *Rasterizer) DrawWay(c *Canvas, w *osmdata.Way) bool {
	class, ok := r.table.Classify(w.Tags)
	if !ok {
		return false
	}
	pts := r.project(w.Nodes, nil)
	c.StrokePolyline(pts, w.Closed(), r.strokeWidth, class.Color)
	return true
}

// DrawArea renders a onto its own scratch canvas, composites it onto c by
// saturating addition and returns the scratch canvas with the area's extent.
// An unclassified area returns false and leaves c untouched.
func (r *Rasterizer) DrawArea(c *Canvas, a *osmdata.Area) (*AreaResult, bool) {
	class, ok := r.table.Classify(a.Tags)
	if !ok {
		return nil, false
	}

	scratch := New(c.Width(), c.Height())
	res := &AreaResult{Scratch: scratch, Class: class}

	outer := false
	for _, ring := range a.OuterRings {
		pts := r.project(ring, &res.Extent)
		if len(pts) == 0 {
			continue
		}
		scratch.FillPolygon(pts, class.Color)
		outer = true
	}

	hole := Background
	if !outer {
		hole = class.Color
	}
	for _, ring := range a.InnerRings {
		pts := r.project(ring, &res.Extent)
		scratch.FillPolygon(pts, hole)
	}

	c.AddFrom(scratch)
	res.Pixels = scratch.CountNonBackground()
	return res, true
}

// project maps the nodes inside the box to pixels, recording each accepted
// node in ext when non-nil.
func (r *Rasterizer) project(nodes []osmdata.Node, ext *geo.Extent) []image.Point {
	pts := make([]image.Point, 0, len(nodes))
	for _, n := range nodes {
		if !r.box.Contains(n.Lat, n.Lon) {
			continue
		}
		if ext != nil {
			ext.Add(n.Lat, n.Lon)
		}
		x, y := r.proj.Project(n.Lat, n.Lon)
		pts = append(pts, image.Point{X: x, Y: y})
	}
	return pts
}
