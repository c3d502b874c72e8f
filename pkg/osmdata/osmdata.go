// Package osmdata defines the geographic entities the renderer consumes.
//
// Data sources resolve node references eagerly: a [Way] carries its nodes
// and an [Area] carries closed rings of nodes. A reference that could not be
// resolved is simply missing from the sequence; an entity with no resolved
// nodes renders nothing and is not reported.
//
// Sources hand entities to a [Handler]. [Set] is the standard handler: it
// accumulates entities into per-kind maps keyed by id, where a later entity
// with the same id replaces the earlier one.
package osmdata

import (
	"github.com/paulmach/osm"
)

// Node is a single geographic point.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Way is an ordered polyline with tags.
type Way struct {
	ID    int64    `json:"id"`
	Tags  osm.Tags `json:"tags"`
	Nodes []Node   `json:"nodes"`
}

// Closed reports whether the way starts and ends on the same node.
func (w *Way) Closed() bool {
	return len(w.Nodes) > 2 && w.Nodes[0].ID == w.Nodes[len(w.Nodes)-1].ID
}

// Area is a tagged multi-ring polygon: a multipolygon relation or a closed
// way boundary.
type Area struct {
	ID         int64    `json:"id"`
	Tags       osm.Tags `json:"tags"`
	OuterRings [][]Node `json:"outer_rings"`
	InnerRings [][]Node `json:"inner_rings"`
}

// Handler receives entities from a data source in the order the source
// produces them.
type Handler interface {
	OnNode(n Node)
	OnWay(w *Way)
	OnArea(a *Area)
}

// Set accumulates entities by kind. The zero value is not usable; call NewSet.
type Set struct {
	Nodes map[int64]Node
	Ways  map[int64]*Way
	Areas map[int64]*Area

	wayOrder  []int64
	areaOrder []int64
}

// NewSet creates an empty entity set.
func NewSet() *Set {
	return &Set{
		Nodes: make(map[int64]Node),
		Ways:  make(map[int64]*Way),
		Areas: make(map[int64]*Area),
	}
}

// OnNode stores n, replacing any node with the same id.
func (s *Set) OnNode(n Node) {
	s.Nodes[n.ID] = n
}

// OnWay stores w, replacing any way with the same id.
func (s *Set) OnWay(w *Way) {
	if _, ok := s.Ways[w.ID]; !ok {
		s.wayOrder = append(s.wayOrder, w.ID)
	}
	s.Ways[w.ID] = w
}

// OnArea stores a, replacing any area with the same id.
func (s *Set) OnArea(a *Area) {
	if _, ok := s.Areas[a.ID]; !ok {
		s.areaOrder = append(s.areaOrder, a.ID)
	}
	s.Areas[a.ID] = a
}

// OrderedWays returns ways in first-seen order.
func (s *Set) OrderedWays() []*Way {
	out := make([]*Way, 0, len(s.wayOrder))
	for _, id := range s.wayOrder {
		out = append(out, s.Ways[id])
	}
	return out
}

// OrderedAreas returns areas in first-seen order.
func (s *Set) OrderedAreas() []*Area {
	out := make([]*Area, 0, len(s.areaOrder))
	for _, id := range s.areaOrder {
		out = append(out, s.Areas[id])
	}
	return out
}

// Len returns the total number of stored entities.
func (s *Set) Len() int {
	return len(s.Nodes) + len(s.Ways) + len(s.Areas)
}

var _ Handler = (*Set)(nil)
