package raster

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestCanvasAddFromSaturates(t *testing.T) {
	dst := New(2, 1)
	src := New(2, 1)
	dst.Set(0, 0, color.RGBA{R: 200, G: 10})
	src.Set(0, 0, color.RGBA{R: 100, G: 20, B: 5})

	dst.AddFrom(src)

	if got, want := dst.At(0, 0), (color.RGBA{R: 255, G: 30, B: 5, A: 255}); got != want {
		t.Errorf("At(0,0) = %v, want %v", got, want)
	}
	if !dst.IsBackground(1, 0) {
		t.Error("At(1,0) painted, want background")
	}
}

func TestCanvasCrop(t *testing.T) {
	c := New(10, 10)
	c.Set(2, 3, color.RGBA{G: 255})
	c.Set(5, 5, color.RGBA{G: 255})

	tests := []struct {
		name      string
		r         image.Rectangle
		wantW     int
		wantH     int
		wantCount int
	}{
		{"half open excludes max edge", image.Rect(2, 3, 5, 5), 3, 2, 1},
		{"includes both", image.Rect(2, 3, 6, 6), 4, 3, 2},
		{"clipped to canvas", image.Rect(-5, -5, 3, 4), 3, 4, 1},
		{"outside", image.Rect(20, 20, 30, 30), 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Crop(tt.r)
			if got.Width() != tt.wantW || got.Height() != tt.wantH {
				t.Errorf("Crop size = %dx%d, want %dx%d", got.Width(), got.Height(), tt.wantW, tt.wantH)
			}
			if n := got.CountNonBackground(); n != tt.wantCount {
				t.Errorf("CountNonBackground() = %d, want %d", n, tt.wantCount)
			}
		})
	}
}

func TestCanvasOutOfRange(t *testing.T) {
	c := New(3, 3)
	c.Set(-1, 0, color.RGBA{R: 1})
	c.Set(3, 3, color.RGBA{R: 1})
	if n := c.CountNonBackground(); n != 0 {
		t.Errorf("CountNonBackground() = %d after out-of-range writes, want 0", n)
	}
	if got := c.At(10, 10); got != Background {
		t.Errorf("At(10,10) = %v, want background", got)
	}
}

func TestCanvasPNG(t *testing.T) {
	c := New(4, 3)
	c.Set(1, 2, color.RGBA{R: 12, G: 34, B: 56})

	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	got, err := DecodePNG(&buf)
	if err != nil {
		t.Fatalf("DecodePNG() error = %v", err)
	}
	if !got.Equal(c) {
		t.Error("decoded canvas differs from encoded canvas")
	}

	if err := New(0, 0).EncodePNG(&buf); err == nil {
		t.Error("EncodePNG() on empty canvas error = nil")
	}
}

func TestFillPolygonDegenerate(t *testing.T) {
	c := New(10, 10)
	if n := c.FillPolygon([]image.Point{{1, 1}, {5, 5}}, color.RGBA{R: 1}); n != 0 {
		t.Errorf("FillPolygon(2 points) wrote %d pixels, want 0", n)
	}
	if n := c.FillPolygon([]image.Point{{1, 1}, {5, 1}, {9, 1}}, color.RGBA{R: 1}); n != 0 {
		t.Errorf("FillPolygon(collinear) wrote %d pixels, want 0", n)
	}
}

func TestStrokePolylineSinglePoint(t *testing.T) {
	c := New(20, 20)
	n := c.StrokePolyline([]image.Point{{10, 10}}, false, 6, color.RGBA{B: 255})
	if n == 0 {
		t.Fatal("StrokePolyline(single point) wrote nothing, want a dot")
	}
	if c.IsBackground(10, 10) {
		t.Error("dot center is background")
	}
	if !c.IsBackground(0, 0) {
		t.Error("far corner painted")
	}
}
