package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// coverageThreshold is the minimum 8-bit coverage at which a pixel is painted.
// Painting is binary so fills and holes agree pixel for pixel.
const coverageThreshold = 0x80

type fpoint struct{ x, y float64 }

// FillPolygon fills the closed polygon through pts with col and returns the
// number of pixels written. Polygons with fewer than three points cover no
// area and write nothing.
func (c *Canvas) FillPolygon(pts []image.Point, col color.RGBA) int {
	if len(pts) < 3 {
		return 0
	}
	poly := make([]fpoint, len(pts))
	for i, p := range pts {
		poly[i] = fpoint{float64(p.X), float64(p.Y)}
	}
	return c.paint([][]fpoint{poly}, col)
}

// StrokePolyline draws a line of the given width through pts with round
// joins and caps. When closed is set the last point is joined back to the
// first. Returns the number of pixels written.
func (c *Canvas) StrokePolyline(pts []image.Point, closed bool, width float64, col color.RGBA) int {
	if len(pts) == 0 || width <= 0 {
		return 0
	}
	half := width / 2

	var shapes [][]fpoint
	for i, p := range pts {
		shapes = append(shapes, disc(fpoint{float64(p.X), float64(p.Y)}, half))
		if i == 0 {
			continue
		}
		if q, ok := segment(pts[i-1], p, half); ok {
			shapes = append(shapes, q)
		}
	}
	if closed && len(pts) > 2 {
		if q, ok := segment(pts[len(pts)-1], pts[0], half); ok {
			shapes = append(shapes, q)
		}
	}
	return c.paint(shapes, col)
}

// paint rasterizes the union of polys and writes col wherever coverage
// reaches coverageThreshold.
func (c *Canvas) paint(polys [][]fpoint, col color.RGBA) int {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, poly := range polys {
		for _, p := range poly {
			minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
			minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
		}
	}
	window := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
	if window.Empty() || !window.Overlaps(c.Bounds()) {
		return 0
	}

	z := vector.NewRasterizer(window.Dx(), window.Dy())
	z.DrawOp = draw.Src
	ox, oy := float64(window.Min.X), float64(window.Min.Y)
	for _, poly := range polys {
		if len(poly) < 3 {
			continue
		}
		z.MoveTo(float32(poly[0].x-ox), float32(poly[0].y-oy))
		for _, p := range poly[1:] {
			z.LineTo(float32(p.x-ox), float32(p.y-oy))
		}
		z.ClosePath()
	}
	mask := image.NewAlpha(image.Rect(0, 0, window.Dx(), window.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	n := 0
	for y := 0; y < window.Dy(); y++ {
		for x := 0; x < window.Dx(); x++ {
			if mask.Pix[y*mask.Stride+x] < coverageThreshold {
				continue
			}
			px, py := window.Min.X+x, window.Min.Y+y
			if !(image.Point{X: px, Y: py}).In(c.Bounds()) {
				continue
			}
			c.Set(px, py, col)
			n++
		}
	}
	return n
}

// segment returns the rectangle of half-width h around a→b, wound
// counter-clockwise in image space.
func segment(a, b image.Point, h float64) ([]fpoint, bool) {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil, false
	}
	nx, ny := -dy/l*h, dx/l*h
	ax, ay := float64(a.X), float64(a.Y)
	bx, by := float64(b.X), float64(b.Y)
	return oriented([]fpoint{
		{ax + nx, ay + ny},
		{bx + nx, by + ny},
		{bx - nx, by - ny},
		{ax - nx, ay - ny},
	}), true
}

// disc approximates a circle of radius r with a regular 16-gon.
func disc(c fpoint, r float64) []fpoint {
	const sides = 16
	pts := make([]fpoint, sides)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / sides
		pts[i] = fpoint{c.x + r*math.Cos(a), c.y + r*math.Sin(a)}
	}
	return oriented(pts)
}

// oriented returns poly with non-negative signed area so overlapping shapes
// accumulate coverage instead of cancelling.
func oriented(poly []fpoint) []fpoint {
	var area float64
	for i := range poly {
		j := (i + 1) % len(poly)
		area += poly[i].x*poly[j].y - poly[j].x*poly[i].y
	}
	if area >= 0 {
		return poly
	}
	for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
		poly[i], poly[j] = poly[j], poly[i]
	}
	return poly
}
