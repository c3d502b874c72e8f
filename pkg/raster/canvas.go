package raster

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/matzehuels/geomap/pkg/errors"
)

// Background is the canvas fill color. A pixel is background when its color
// channels are all zero; alpha is ignored.
var Background = color.RGBA{A: 0xff}

// Canvas is a fixed-size RGB pixel buffer whose origin (0, 0) is the
// north-west corner of the rendered box.
type Canvas struct {
	img *image.RGBA
}

// New allocates a width×height canvas filled with [Background].
func New(width, height int) *Canvas {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return &Canvas{img: img}
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.img.Rect.Dx() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Rect }

// Image exposes the underlying buffer. Callers must not resize it.
func (c *Canvas) Image() *image.RGBA { return c.img }

// At returns the color of pixel (x, y), or Background outside the canvas.
func (c *Canvas) At(x, y int) color.RGBA {
	if !(image.Point{X: x, Y: y}).In(c.img.Rect) {
		return Background
	}
	return c.img.RGBAAt(x, y)
}

// Set writes an opaque pixel. Writes outside the canvas are dropped.
func (c *Canvas) Set(x, y int, col color.RGBA) {
	if !(image.Point{X: x, Y: y}).In(c.img.Rect) {
		return
	}
	col.A = 0xff
	c.img.SetRGBA(x, y, col)
}

// IsBackground reports whether pixel (x, y) is background.
func (c *Canvas) IsBackground(x, y int) bool {
	p := c.At(x, y)
	return p.R == 0 && p.G == 0 && p.B == 0
}

// AddFrom composites src onto c by per-channel saturating addition.
// Overlapping contributions brighten instead of overwriting. Only the
// intersection of both canvases is touched.
func (c *Canvas) AddFrom(src *Canvas) {
	r := c.img.Rect.Intersect(src.img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		di := c.img.PixOffset(r.Min.X, y)
		si := src.img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			for ch := 0; ch < 3; ch++ {
				sum := int(c.img.Pix[di+ch]) + int(src.img.Pix[si+ch])
				if sum > 0xff {
					sum = 0xff
				}
				c.img.Pix[di+ch] = uint8(sum)
			}
			di += 4
			si += 4
		}
	}
}

// Crop copies the half-open window [r.Min, r.Max) clipped to the canvas into
// a new canvas anchored at (0, 0). The source is not modified.
func (c *Canvas) Crop(r image.Rectangle) *Canvas {
	r = r.Canon().Intersect(c.img.Rect)
	out := New(r.Dx(), r.Dy())
	for y := 0; y < r.Dy(); y++ {
		si := c.img.PixOffset(r.Min.X, r.Min.Y+y)
		di := out.img.PixOffset(0, y)
		copy(out.img.Pix[di:di+4*r.Dx()], c.img.Pix[si:si+4*r.Dx()])
	}
	return out
}

// CountNonBackground returns the number of non-background pixels.
func (c *Canvas) CountNonBackground() int {
	n := 0
	p := c.img.Pix
	for i := 0; i+3 < len(p); i += 4 {
		if p[i]|p[i+1]|p[i+2] != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the canvas.
func (c *Canvas) Clone() *Canvas {
	img := image.NewRGBA(c.img.Rect)
	copy(img.Pix, c.img.Pix)
	return &Canvas{img: img}
}

// Equal reports whether two canvases have identical size and pixels.
func (c *Canvas) Equal(o *Canvas) bool {
	if c.img.Rect != o.img.Rect {
		return false
	}
	for i := range c.img.Pix {
		if c.img.Pix[i] != o.img.Pix[i] {
			return false
		}
	}
	return true
}

// EncodePNG writes the canvas as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if c.img.Rect.Empty() {
		return errors.New(errors.ErrCodeInvalidInput, "cannot encode empty canvas")
	}
	if err := png.Encode(w, c.img); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return nil
}

// DecodePNG reads a PNG into a canvas.
func DecodePNG(r io.Reader) (*Canvas, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode png")
	}
	b := src.Bounds()
	c := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c.Set(x, y, color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA))
		}
	}
	return c, nil
}
