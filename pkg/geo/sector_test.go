package geo

import (
	"testing"

	"github.com/matzehuels/geomap/pkg/errors"
)

func TestSectorizeTilesBox(t *testing.T) {
	tests := []struct {
		name  string
		box   BoundingBox
		limit int
	}{
		{"single sector", BoundingBox{MinLon: 30.2775, MinLat: 59.9091, MaxLon: 30.2974, MaxLat: 59.9164}, 2000},
		{"small limit", BoundingBox{MinLon: 30.2775, MinLat: 59.9091, MaxLon: 30.2974, MaxLat: 59.9164}, 100},
		{"equator", BoundingBox{MinLon: -0.01, MinLat: -0.01, MaxLon: 0.01, MaxLat: 0.01}, 1000},
		{"city", BoundingBox{MinLon: 30.2555, MinLat: 59.9080, MaxLon: 30.3446, MaxLat: 59.9600}, 1000},
		{"odd limit", BoundingBox{MinLon: 4.8884, MinLat: 52.3659, MaxLon: 4.9090, MaxLat: 52.3779}, 333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sectors, err := Sectorize(tt.box, tt.limit)
			if err != nil {
				t.Fatalf("Sectorize() error = %v", err)
			}

			width, height := Size(tt.box)
			cols := max((width+tt.limit-1)/tt.limit, 1)
			rows := max((height+tt.limit-1)/tt.limit, 1)
			if len(sectors) != cols*rows {
				t.Fatalf("len(sectors) = %d, want %d (%dx%d)", len(sectors), cols*rows, cols, rows)
			}

			first, last := sectors[0], sectors[len(sectors)-1]
			if first.MinLon != tt.box.MinLon || first.MinLat != tt.box.MinLat {
				t.Errorf("first sector corner = (%v, %v), want box min corner", first.MinLon, first.MinLat)
			}
			if last.MaxLon != tt.box.MaxLon || last.MaxLat != tt.box.MaxLat {
				t.Errorf("last sector corner = (%v, %v), want box max corner", last.MaxLon, last.MaxLat)
			}

			for i := 0; i < cols; i++ {
				for j := 0; j < rows; j++ {
					s := sectors[i*rows+j]
					if err := s.Validate(); err != nil {
						t.Fatalf("sector (%d,%d) invalid: %v", i, j, err)
					}
					if j+1 < rows && s.MaxLat != sectors[i*rows+j+1].MinLat {
						t.Errorf("sector (%d,%d) does not abut its northern neighbour", i, j)
					}
					if i+1 < cols && s.MaxLon != sectors[(i+1)*rows+j].MinLon {
						t.Errorf("sector (%d,%d) does not abut its eastern neighbour", i, j)
					}
					if j == 0 && s.MinLat != tt.box.MinLat {
						t.Errorf("sector (%d,0) min_lat = %v, want %v", i, s.MinLat, tt.box.MinLat)
					}
					if i == cols-1 && s.MaxLon != tt.box.MaxLon {
						t.Errorf("sector (%d,%d) max_lon = %v, want %v", i, j, s.MaxLon, tt.box.MaxLon)
					}
				}
			}
		})
	}
}

func TestSectorizeOrder(t *testing.T) {
	box := BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.03, MaxLat: 0.02}
	sectors, err := Sectorize(box, 1000)
	if err != nil {
		t.Fatalf("Sectorize() error = %v", err)
	}
	grid, _ := GridFor(box, 1000)
	if grid.Cols < 2 || grid.Rows < 2 {
		t.Fatalf("grid = %+v, want at least 2x2", grid)
	}
	// Second sector is the same column, one row north.
	if sectors[1].MinLon != sectors[0].MinLon || sectors[1].MinLat != sectors[0].MaxLat {
		t.Errorf("sectors[1] = %v, want the northern neighbour of %v", sectors[1], sectors[0])
	}
}

func TestSectorizeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		box   BoundingBox
		limit int
		code  errors.Code
	}{
		{"inverted lon", BoundingBox{MinLon: 1, MinLat: 0, MaxLon: 0, MaxLat: 1}, 1000, errors.ErrCodeInvalidBounds},
		{"empty lat", BoundingBox{MinLon: 0, MinLat: 1, MaxLon: 1, MaxLat: 1}, 1000, errors.ErrCodeInvalidBounds},
		{"zero limit", BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.01, MaxLat: 0.01}, 0, errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sectorize(tt.box, tt.limit)
			if !errors.Is(err, tt.code) {
				t.Errorf("Sectorize() error = %v, want code %s", err, tt.code)
			}
			if !errors.IsFatal(err) {
				t.Errorf("Sectorize() error %v should be fatal", err)
			}
		})
	}
}

func TestParseBoundingBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BoundingBox
		wantErr bool
	}{
		{"valid", "30.2775,59.9091,30.2974,59.9164", BoundingBox{30.2775, 59.9091, 30.2974, 59.9164}, false},
		{"spaces", " -0.01, -0.01, 0.01, 0.01", BoundingBox{-0.01, -0.01, 0.01, 0.01}, false},
		{"three values", "1,2,3", BoundingBox{}, true},
		{"not a number", "a,0,1,1", BoundingBox{}, true},
		{"inverted", "1,1,0,0", BoundingBox{}, true},
		{"out of range", "0,0,1,91", BoundingBox{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBoundingBox(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBoundingBox(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBoundingBox(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtentTracking(t *testing.T) {
	var e Extent
	if !e.IsEmpty() {
		t.Fatal("zero Extent should be empty")
	}
	e.Add(1, 2)
	e.Add(-1, 4)
	e.Add(0.5, 3)

	box := e.Box()
	want := BoundingBox{MinLon: 2, MinLat: -1, MaxLon: 4, MaxLat: 1}
	if box != want {
		t.Errorf("Box() = %v, want %v", box, want)
	}
	lat, lon := e.Centroid()
	if lat != 0 || lon != 3 {
		t.Errorf("Centroid() = (%v, %v), want (0, 3)", lat, lon)
	}
}
