package mask

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/osmdata"
	"github.com/matzehuels/geomap/pkg/raster"
)

var testBox = geo.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.002, MaxLat: 0.002}

func square(id int64, minLon, minLat, maxLon, maxLat float64) []osmdata.Node {
	return []osmdata.Node{
		{ID: id, Lat: maxLat, Lon: minLon},
		{ID: id + 1, Lat: maxLat, Lon: maxLon},
		{ID: id + 2, Lat: minLat, Lon: maxLon},
		{ID: id + 3, Lat: minLat, Lon: minLon},
		{ID: id, Lat: maxLat, Lon: minLon},
	}
}

func drawBuilding(t *testing.T) (*raster.Rasterizer, *raster.AreaResult) {
	t.Helper()
	r, err := raster.NewRasterizer(testBox, classify.Default())
	if err != nil {
		t.Fatalf("NewRasterizer() error = %v", err)
	}
	area := &osmdata.Area{
		ID:         1,
		Tags:       osm.Tags{{Key: "building", Value: "yes"}},
		OuterRings: [][]osmdata.Node{square(1, 0.0004, 0.0006, 0.0010, 0.0014)},
	}
	res, ok := r.DrawArea(r.NewCanvas(), area)
	if !ok {
		t.Fatal("DrawArea() ok = false")
	}
	return r, res
}

func TestExtract(t *testing.T) {
	r, res := drawBuilding(t)

	m, ok := Extract(res.Scratch, res.Extent, res.Class, r.Projector())
	if !ok {
		t.Fatal("Extract() ok = false")
	}
	if m.Key != "building" || m.Category != "yes" {
		t.Errorf("mask = %s, want building=yes", m)
	}
	if math.Abs(m.Lat-0.001) > 1e-12 || math.Abs(m.Lon-0.0007) > 1e-12 {
		t.Errorf("centroid = (%v, %v), want (0.001, 0.0007)", m.Lat, m.Lon)
	}

	// the crop covers exactly the filled square
	if got, want := m.Bitmap.CountNonBackground(), res.Pixels; got != want {
		t.Errorf("bitmap painted pixels = %d, want %d", got, want)
	}
	if got, want := m.Bitmap.Width()*m.Bitmap.Height(), res.Pixels; got != want {
		t.Errorf("bitmap area = %d, want %d", got, want)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	r, res := drawBuilding(t)
	before := res.Scratch.Clone()

	first, ok := Extract(res.Scratch, res.Extent, res.Class, r.Projector())
	if !ok {
		t.Fatal("Extract() ok = false")
	}
	second, ok := Extract(res.Scratch, res.Extent, res.Class, r.Projector())
	if !ok {
		t.Fatal("second Extract() ok = false")
	}
	if !first.Bitmap.Equal(second.Bitmap) {
		t.Error("bitmaps differ between extractions")
	}
	if first.Window != second.Window {
		t.Errorf("windows differ: %v vs %v", first.Window, second.Window)
	}
	if !res.Scratch.Equal(before) {
		t.Error("Extract() modified the scratch canvas")
	}
}

func TestExtractEmpty(t *testing.T) {
	r, res := drawBuilding(t)

	t.Run("empty extent", func(t *testing.T) {
		if _, ok := Extract(res.Scratch, geo.Extent{}, res.Class, r.Projector()); ok {
			t.Error("Extract() ok = true for empty extent")
		}
	})

	t.Run("blank window", func(t *testing.T) {
		var ext geo.Extent
		ext.Add(0.0001, 0.0015)
		ext.Add(0.0003, 0.0019)
		if _, ok := Extract(res.Scratch, ext, res.Class, r.Projector()); ok {
			t.Error("Extract() ok = true for window without painted pixels")
		}
	})

	t.Run("nil canvas", func(t *testing.T) {
		if _, ok := Extract(nil, res.Extent, res.Class, r.Projector()); ok {
			t.Error("Extract() ok = true for nil canvas")
		}
	})
}

func TestDirStore(t *testing.T) {
	r, res := drawBuilding(t)
	m, ok := Extract(res.Scratch, res.Extent, res.Class, r.Projector())
	if !ok {
		t.Fatal("Extract() ok = false")
	}

	root := t.TempDir()
	store := NewDirStore(root)
	path, err := store.Save(context.Background(), m)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	want := filepath.Join(root, "images", "building", formatCoord(m.Lon)+";"+formatCoord(m.Lat)+".png")
	if path != want {
		t.Errorf("Save() path = %q, want %q", path, want)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open saved mask: %v", err)
	}
	defer f.Close()
	got, err := raster.DecodePNG(f)
	if err != nil {
		t.Fatalf("DecodePNG() error = %v", err)
	}
	if !got.Equal(m.Bitmap) {
		t.Error("saved bitmap differs from mask")
	}

	var entries []Entry
	err = store.Walk(context.Background(), func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Walk() found %d entries, want 1", len(entries))
	}
	if e := entries[0]; e.Key != "building" || e.Lat != m.Lat || e.Lon != m.Lon {
		t.Errorf("Walk() entry = %+v, want building at (%v, %v)", e, m.Lat, m.Lon)
	}
}

func TestDirStorePath(t *testing.T) {
	store := NewDirStore("out")
	got, err := store.Path("building", 59.93, 30.31)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if want := filepath.Join("out", "images", "building", "30.31;59.93.png"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestDirStoreRejectsBadKey(t *testing.T) {
	store := NewDirStore(t.TempDir())
	m := &Mask{Key: "../escape", Bitmap: raster.New(1, 1)}
	_, err := store.Save(context.Background(), m)
	if !errors.Is(err, errors.ErrCodeInvalidCategory) {
		t.Errorf("Save() error = %v, want %s", err, errors.ErrCodeInvalidCategory)
	}
}

func TestDirStoreWalkMissingRoot(t *testing.T) {
	store := NewDirStore(filepath.Join(t.TempDir(), "missing"))
	err := store.Walk(context.Background(), func(Entry) error { return nil })
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Walk() error = %v, want %s", err, errors.ErrCodeFileNotFound)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name    string
		wantLat float64
		wantLon float64
		wantOK  bool
	}{
		{"30.31;59.93.png", 59.93, 30.31, true},
		{"-0.5;-1.png", -1, -0.5, true},
		{"30.31,59.93.png", 0, 0, false},
		{"30.31;59.93.jpg", 0, 0, false},
		{"x;1.png", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok := ParseFilename(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("ParseFilename() ok = %v, want %v", ok, tt.wantOK)
			}
			if lat != tt.wantLat || lon != tt.wantLon {
				t.Errorf("ParseFilename() = (%v, %v), want (%v, %v)", lat, lon, tt.wantLat, tt.wantLon)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	m := &Mask{Key: "water", Category: "water", Lat: 1, Lon: 2, Bitmap: raster.New(1, 1)}
	if _, err := s.Save(context.Background(), m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := s.Masks(); len(got) != 1 || got[0] != m {
		t.Errorf("Masks() = %v, want [%v]", got, m)
	}
}
