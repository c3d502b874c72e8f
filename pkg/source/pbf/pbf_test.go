package pbf

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/osmdata"
)

var box = geo.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.01, MaxLat: 0.01}

func newScan(t *testing.T) (*scan, *osmdata.Set) {
	t.Helper()
	r, err := NewReader(box, classify.Default(), nil)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	set := osmdata.NewSet()
	return &scan{
		Reader: r,
		h:      set,
		nodes:  make(map[osm.NodeID]osmdata.Node),
		ways:   make(map[osm.WayID]osm.WayNodes),
	}, set
}

func refs(ids ...osm.NodeID) osm.WayNodes {
	out := make(osm.WayNodes, len(ids))
	for i, id := range ids {
		out[i] = osm.WayNode{ID: id}
	}
	return out
}

func TestScanNodes(t *testing.T) {
	s, set := newScan(t)

	s.node(&osm.Node{ID: 1, Lat: 0.005, Lon: 0.005})
	s.node(&osm.Node{ID: 2, Lat: 0.01, Lon: 0}) // on the edge, kept
	s.node(&osm.Node{ID: 3, Lat: 0.02, Lon: 0.005})

	if len(set.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(set.Nodes))
	}
	if _, ok := set.Nodes[3]; ok {
		t.Error("node outside the box was delivered")
	}
	if s.stats.Nodes != 2 {
		t.Errorf("stats.Nodes = %d, want 2", s.stats.Nodes)
	}
}

func TestScanWays(t *testing.T) {
	s, set := newScan(t)
	for i, p := range [][2]float64{{0.001, 0.001}, {0.001, 0.002}, {0.002, 0.002}, {0.002, 0.001}} {
		s.node(&osm.Node{ID: osm.NodeID(i + 1), Lat: p[0], Lon: p[1]})
	}

	s.way(&osm.Way{ID: 10, Tags: osm.Tags{{Key: "highway", Value: "primary"}}, Nodes: refs(1, 2, 99)})
	s.way(&osm.Way{ID: 11, Tags: osm.Tags{{Key: "building", Value: "yes"}}, Nodes: refs(1, 2, 3, 4, 1)})
	s.way(&osm.Way{ID: 12, Tags: osm.Tags{{Key: "barrier", Value: "wall"}}, Nodes: refs(1, 2, 3, 4, 1)})
	s.way(&osm.Way{ID: 13, Nodes: refs(3, 4)})                                                    // untagged, kept for relations
	s.way(&osm.Way{ID: 14, Tags: osm.Tags{{Key: "building", Value: "yes"}}, Nodes: refs(97, 98)}) // outside

	ways := set.OrderedWays()
	if len(ways) != 2 || ways[0].ID != 10 || ways[1].ID != 12 {
		t.Fatalf("ways = %v, want 10 and 12", ways)
	}
	if len(ways[0].Nodes) != 2 {
		t.Errorf("way 10 nodes = %d, want 2", len(ways[0].Nodes))
	}
	if !ways[1].Closed() {
		t.Error("closed barrier should stay a closed way")
	}

	areas := set.OrderedAreas()
	if len(areas) != 1 || areas[0].ID != 11 {
		t.Fatalf("areas = %v, want building 11", areas)
	}
	if len(areas[0].OuterRings[0]) != 5 {
		t.Errorf("building ring = %d nodes, want 5", len(areas[0].OuterRings[0]))
	}

	if _, ok := s.ways[13]; !ok {
		t.Error("untagged way not kept as relation member candidate")
	}
	if _, ok := s.ways[14]; !ok {
		t.Error("way with no node in the box not kept as relation member candidate")
	}
}

func TestScanMultipolygon(t *testing.T) {
	s, set := newScan(t)
	pts := [][2]float64{
		{0.001, 0.001}, {0.001, 0.004}, {0.004, 0.004}, {0.004, 0.001}, // outer
		{0.002, 0.002}, {0.002, 0.003}, {0.003, 0.003}, {0.003, 0.002}, // inner
	}
	for i, p := range pts {
		s.node(&osm.Node{ID: osm.NodeID(i + 1), Lat: p[0], Lon: p[1]})
	}
	// outer ring split over two ways, second one reversed; one node outside
	s.way(&osm.Way{ID: 20, Nodes: refs(1, 2, 3)})
	s.way(&osm.Way{ID: 21, Nodes: refs(1, 4, 50, 3)})
	s.way(&osm.Way{ID: 22, Nodes: refs(5, 6, 7, 8, 5)})

	s.relation(&osm.Relation{
		ID:   300,
		Tags: osm.Tags{{Key: "type", Value: "multipolygon"}, {Key: "landuse", Value: "grass"}},
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 20, Role: "outer"},
			{Type: osm.TypeWay, Ref: 21, Role: "outer"},
			{Type: osm.TypeWay, Ref: 22, Role: "inner"},
			{Type: osm.TypeWay, Ref: 23, Role: "inner"}, // unknown
		},
	})
	s.relation(&osm.Relation{
		ID:      301,
		Tags:    osm.Tags{{Key: "type", Value: "multipolygon"}, {Key: "amenity", Value: "school"}},
		Members: osm.Members{{Type: osm.TypeWay, Ref: 20, Role: "outer"}},
	})

	areas := set.OrderedAreas()
	if len(areas) != 1 || areas[0].ID != -300 {
		t.Fatalf("areas = %v, want relation 300", areas)
	}
	a := areas[0]
	if len(a.OuterRings) != 1 || len(a.InnerRings) != 1 {
		t.Fatalf("rings = %d outer, %d inner; want 1, 1", len(a.OuterRings), len(a.InnerRings))
	}
	outer := a.OuterRings[0]
	var ids []int64
	for _, n := range outer {
		ids = append(ids, n.ID)
	}
	want := []int64{1, 2, 3, 4, 1}
	if len(ids) != len(want) {
		t.Fatalf("outer ring ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("outer ring ids = %v, want %v", ids, want)
		}
	}
	if outer[1].Lat != 0.001 || outer[1].Lon != 0.004 {
		t.Errorf("outer ring node 2 = %+v, want located", outer[1])
	}
	if s.stats.Relations != 1 {
		t.Errorf("stats.Relations = %d, want 1", s.stats.Relations)
	}
}

func TestScanMultipolygonMemberOutsideBox(t *testing.T) {
	s, set := newScan(t)
	// box is [0, 0.01]; nodes 4 and 5 sit north of it
	pts := map[osm.NodeID][2]float64{
		1: {0.002, 0.002}, 2: {0.002, 0.008}, 3: {0.008, 0.008}, 4: {0.02, 0.008},
		5: {0.02, 0.002}, 6: {0.008, 0.002},
	}
	for id := osm.NodeID(1); id <= 6; id++ {
		s.node(&osm.Node{ID: id, Lat: pts[id][0], Lon: pts[id][1]})
	}
	s.way(&osm.Way{ID: 10, Nodes: refs(1, 2, 3, 4)})
	s.way(&osm.Way{ID: 11, Nodes: refs(4, 5)})
	s.way(&osm.Way{ID: 12, Nodes: refs(5, 6, 1)})

	s.relation(&osm.Relation{
		ID:   99,
		Tags: osm.Tags{{Key: "type", Value: "multipolygon"}, {Key: "natural", Value: "water"}},
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 10, Role: "outer"},
			{Type: osm.TypeWay, Ref: 11, Role: "outer"},
			{Type: osm.TypeWay, Ref: 12, Role: "outer"},
		},
	})

	areas := set.OrderedAreas()
	if len(areas) != 1 {
		t.Fatalf("areas = %v, want relation 99", areas)
	}
	if n := len(areas[0].OuterRings); n != 1 {
		t.Fatalf("outer rings = %d, want 1 assembled ring", n)
	}
	var ids []int64
	for _, n := range areas[0].OuterRings[0] {
		ids = append(ids, n.ID)
	}
	want := []int64{1, 2, 3, 6, 1}
	if len(ids) != len(want) {
		t.Fatalf("outer ring ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("outer ring ids = %v, want %v", ids, want)
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	r, err := NewReader(box, classify.Default(), nil)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	_, err = r.Read(context.Background(), bytes.NewReader([]byte("not a pbf file at all")), osmdata.NewSet())
	if err == nil {
		t.Error("Read() error = nil for garbage input")
	}
}

func TestReadFileMissing(t *testing.T) {
	r, err := NewReader(box, classify.Default(), nil)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	_, err = r.ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.osm.pbf"), osmdata.NewSet())
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("ReadFile() error = %v, want %s", err, errors.ErrCodeFileNotFound)
	}
}

func TestNewReaderValidation(t *testing.T) {
	if _, err := NewReader(geo.BoundingBox{MinLon: 1, MaxLon: 0, MaxLat: 1}, classify.Default(), nil); err == nil {
		t.Error("NewReader() error = nil for inverted box")
	}
	if _, err := NewReader(box, nil, nil); err == nil {
		t.Error("NewReader() error = nil for nil table")
	}
}
