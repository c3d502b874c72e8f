// Package pbf reads entities for one bounding box from an OSM PBF extract.
//
// The file is scanned once. Nodes inside the box (edges inclusive) are kept
// and delivered to the handler. Ways are resolved against the kept nodes; a
// closed way with area tags is delivered as an area, every other way with a
// classifiable key as a way. Multipolygon relations with a classifiable key
// are assembled from their member ways into outer and inner rings.
//
// Extracts must be sorted nodes, then ways, then relations, which is the
// order every standard tool writes.
package pbf

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/osmdata"
)

// Stats summarizes a scan.
type Stats struct {
	Nodes     int // nodes inside the box
	Ways      int // ways delivered
	Areas     int // areas delivered, from ways and relations
	Relations int // multipolygon relations assembled
}

// Reader scans PBF data for one box.
type Reader struct {
	box    geo.BoundingBox
	table  *classify.Table
	procs  int
	logger *log.Logger
}

// NewReader creates a reader. A nil logger discards output.
func NewReader(box geo.BoundingBox, table *classify.Table, logger *log.Logger) (*Reader, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "classification table is required")
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Reader{box: box, table: table, procs: runtime.GOMAXPROCS(0), logger: logger}, nil
}

// ReadFile opens path and calls [Reader.Read].
func (r *Reader) ReadFile(ctx context.Context, path string, h osmdata.Handler) (Stats, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Stats{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return Stats{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()
	return r.Read(ctx, f, h)
}

// Read scans src and hands entities to h.
func (r *Reader) Read(ctx context.Context, src io.Reader, h osmdata.Handler) (Stats, error) {
	scanner := osmpbf.New(ctx, src, r.procs)
	defer scanner.Close()

	s := &scan{
		Reader: r,
		h:      h,
		nodes:  make(map[osm.NodeID]osmdata.Node),
		ways:   make(map[osm.WayID]osm.WayNodes),
	}
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			s.node(o)
		case *osm.Way:
			s.way(o)
		case *osm.Relation:
			s.relation(o)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		if ctx.Err() != nil {
			return s.stats, ctx.Err()
		}
		return s.stats, errors.Wrap(errors.ErrCodeInvalidInput, err, "scan pbf")
	}

	r.logger.Debug("pbf scanned",
		"nodes", s.stats.Nodes,
		"ways", s.stats.Ways,
		"areas", s.stats.Areas,
		"relations", s.stats.Relations)
	return s.stats, nil
}

type scan struct {
	*Reader
	h     osmdata.Handler
	nodes map[osm.NodeID]osmdata.Node
	ways  map[osm.WayID]osm.WayNodes // member candidates for relations
	stats Stats
}

func (s *scan) node(n *osm.Node) {
	if !s.box.Contains(n.Lat, n.Lon) {
		return
	}
	node := osmdata.Node{ID: int64(n.ID), Lat: n.Lat, Lon: n.Lon}
	s.nodes[n.ID] = node
	s.h.OnNode(node)
	s.stats.Nodes++
}

func (s *scan) way(w *osm.Way) {
	// Members lying wholly outside the box still close the rings of
	// relations that reach into it.
	s.ways[w.ID] = w.Nodes

	resolved := s.resolve(w.Nodes)
	if len(resolved) == 0 {
		return
	}

	if !s.table.HasClassifiableKey(w.Tags) {
		return
	}
	way := &osmdata.Way{ID: int64(w.ID), Tags: w.Tags, Nodes: resolved}
	if closedRefs(w.Nodes) && osmdata.IsArea(w.Tags) {
		s.h.OnArea(&osmdata.Area{
			ID:         int64(w.ID),
			Tags:       w.Tags,
			OuterRings: [][]osmdata.Node{resolved},
		})
		s.stats.Areas++
		return
	}
	s.h.OnWay(way)
	s.stats.Ways++
}

func (s *scan) relation(r *osm.Relation) {
	if !osmdata.IsMultipolygon(r.Tags) || !s.table.HasClassifiableKey(r.Tags) {
		return
	}

	var outer, inner [][]osmdata.Node
	for _, m := range r.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		refs, ok := s.ways[osm.WayID(m.Ref)]
		if !ok {
			continue
		}
		seg := placeholders(refs)
		if m.Role == "inner" {
			inner = append(inner, seg)
		} else {
			outer = append(outer, seg)
		}
	}
	if len(outer) == 0 && len(inner) == 0 {
		return
	}

	// Rings are joined on the full node sequences so that nodes outside the
	// box do not break ring topology; they are dropped afterwards.
	s.h.OnArea(&osmdata.Area{
		ID:         osmdata.RelationAreaID(int64(r.ID)),
		Tags:       r.Tags,
		OuterRings: s.locate(osmdata.AssembleRings(outer)),
		InnerRings: s.locate(osmdata.AssembleRings(inner)),
	})
	s.stats.Areas++
	s.stats.Relations++
}

func (s *scan) resolve(refs osm.WayNodes) []osmdata.Node {
	out := make([]osmdata.Node, 0, len(refs))
	for _, ref := range refs {
		if n, ok := s.nodes[ref.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *scan) locate(rings [][]osmdata.Node) [][]osmdata.Node {
	out := make([][]osmdata.Node, 0, len(rings))
	for _, ring := range rings {
		located := make([]osmdata.Node, 0, len(ring))
		for _, n := range ring {
			if known, ok := s.nodes[osm.NodeID(n.ID)]; ok {
				located = append(located, known)
			}
		}
		if len(located) > 0 {
			out = append(out, located)
		}
	}
	return out
}

func placeholders(refs osm.WayNodes) []osmdata.Node {
	out := make([]osmdata.Node, len(refs))
	for i, ref := range refs {
		out[i] = osmdata.Node{ID: int64(ref.ID)}
	}
	return out
}

func closedRefs(refs osm.WayNodes) bool {
	return len(refs) > 2 && refs[0].ID == refs[len(refs)-1].ID
}
