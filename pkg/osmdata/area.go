package osmdata

import (
	"github.com/paulmach/osm"
)

// areaKeys maps tag keys to whether a closed way carrying them encloses an
// area. The first matching key in tag order decides.
var areaKeys = map[string]bool{
	"building": true,
	"landuse":  true,
	"natural":  true,
	"leisure":  true,
	"water":    true,
	"amenity":  true,
	"shop":     true,
	"tourism":  true,
	"man_made": true,
	"bridge":   true,
	"waterway": false,
	"highway":  false,
	"barrier":  false,
	"railway":  false,
}

// IsArea reports whether a closed way with these tags should be treated as
// an Area rather than a stroked Way.
func IsArea(tags osm.Tags) bool {
	if v := tags.Find("area"); v != "" {
		return v == "yes"
	}
	for _, t := range tags {
		if area, ok := areaKeys[t.Key]; ok {
			return area
		}
	}
	return false
}

// IsMultipolygon reports whether a relation describes a multipolygon area.
func IsMultipolygon(tags osm.Tags) bool {
	return tags.Find("type") == "multipolygon"
}

// RelationAreaID returns the area id for a relation. Relation areas use
// negated ids so they never collide with areas built from ways.
func RelationAreaID(id int64) int64 { return -id }

// AreaFromWay converts a closed way into a single-ring area.
func AreaFromWay(w *Way) *Area {
	return &Area{
		ID:         w.ID,
		Tags:       w.Tags,
		OuterRings: [][]Node{w.Nodes},
	}
}

// AssembleRings joins member ways end to end into closed rings. Members may
// be reversed to connect. Segments that cannot be closed are kept as-is so
// that their geometry is not silently lost.
func AssembleRings(segments [][]Node) [][]Node {
	var rings [][]Node
	pending := make([][]Node, 0, len(segments))
	for _, s := range segments {
		if len(s) > 0 {
			pending = append(pending, s)
		}
	}

	for len(pending) > 0 {
		ring := append([]Node(nil), pending[0]...)
		pending = pending[1:]

		for !closed(ring) {
			idx, reverse := findNext(pending, ring[len(ring)-1].ID)
			if idx < 0 {
				break
			}
			next := pending[idx]
			pending = append(pending[:idx], pending[idx+1:]...)
			if reverse {
				next = reversed(next)
			}
			ring = append(ring, next[1:]...)
		}
		rings = append(rings, ring)
	}
	return rings
}

func closed(ring []Node) bool {
	return len(ring) > 2 && ring[0].ID == ring[len(ring)-1].ID
}

func findNext(pending [][]Node, tail int64) (int, bool) {
	for i, seg := range pending {
		switch {
		case seg[0].ID == tail:
			return i, false
		case seg[len(seg)-1].ID == tail:
			return i, true
		}
	}
	return -1, false
}

func reversed(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}
