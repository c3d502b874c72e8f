package source

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/osmdata"
)

// progressEvery is the logging cadence for sectors.
const progressEvery = 10

// CollectStats summarizes one collection run.
type CollectStats struct {
	Sectors   int // sectors fetched
	Nodes     int // distinct nodes seen
	Ways      int // ways handed to the handler
	Areas     int // areas handed to the handler
	Relations int // multipolygon relations resolved
	Filtered  int // ways and relations dropped for lacking a classifiable key
}

// Collector turns sector fetches into osmdata entities.
//
// Ways and relations without any classifiable key are dropped at ingestion.
// A closed way with area tags becomes an [osmdata.Area]. Multipolygon
// relations that classify are resolved through FetchWays and FetchNodes and
// their member ways joined into rings.
type Collector struct {
	src    Source
	table  *classify.Table
	logger *log.Logger
}

// NewCollector creates a collector over src. A nil logger discards output.
func NewCollector(src Source, table *classify.Table, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Collector{src: src, table: table, logger: logger}
}

// Collect fetches every sector in order and hands the resulting entities to
// h: nodes first, then ways and areas. Entities seen in several sectors are
// delivered once, with the last fetched version winning.
func (c *Collector) Collect(ctx context.Context, sectors []geo.Sector, h osmdata.Handler) (CollectStats, error) {
	var stats CollectStats

	nodes := make(map[osm.NodeID]*osm.Node)
	ways := make(map[osm.WayID]*osm.Way)
	var wayOrder []osm.WayID
	relations := make(map[osm.RelationID]*osm.Relation)
	var relOrder []osm.RelationID

	for i, sector := range sectors {
		if err := ValidateSector(sector); err != nil {
			return stats, err
		}
		o, err := c.src.FetchSector(ctx, sector)
		if err != nil {
			return stats, err
		}
		stats.Sectors++

		if o != nil {
			for _, n := range o.Nodes {
				nodes[n.ID] = n
			}
			for _, w := range o.Ways {
				if !c.table.HasClassifiableKey(w.Tags) {
					stats.Filtered++
					continue
				}
				if _, seen := ways[w.ID]; !seen {
					wayOrder = append(wayOrder, w.ID)
				}
				ways[w.ID] = w
			}
			for _, r := range o.Relations {
				if !osmdata.IsMultipolygon(r.Tags) || !c.table.HasClassifiableKey(r.Tags) {
					stats.Filtered++
					continue
				}
				if _, seen := relations[r.ID]; !seen {
					relOrder = append(relOrder, r.ID)
				}
				relations[r.ID] = r
			}
		}

		if (i+1)%progressEvery == 0 {
			c.logger.Info("downloading sectors", "done", i+1, "total", len(sectors))
		}
	}

	for _, n := range nodes {
		h.OnNode(osmdata.Node{ID: int64(n.ID), Lat: n.Lat, Lon: n.Lon})
	}
	stats.Nodes = len(nodes)

	for _, id := range wayOrder {
		w := ways[id]
		way := &osmdata.Way{ID: int64(w.ID), Tags: w.Tags, Nodes: resolve(w.Nodes, nodes)}
		if way.Closed() && osmdata.IsArea(way.Tags) {
			h.OnArea(osmdata.AreaFromWay(way))
			stats.Areas++
			continue
		}
		h.OnWay(way)
		stats.Ways++
	}

	for _, id := range relOrder {
		area, err := c.resolveRelation(ctx, relations[id])
		if err != nil {
			return stats, err
		}
		if area == nil {
			continue
		}
		h.OnArea(area)
		stats.Areas++
		stats.Relations++
	}

	return stats, nil
}

// resolveRelation fetches member ways and their nodes and assembles rings.
// It returns nil for relations that do not classify.
func (c *Collector) resolveRelation(ctx context.Context, r *osm.Relation) (*osmdata.Area, error) {
	if _, ok := c.table.Classify(r.Tags); !ok {
		return nil, nil
	}
	members, err := c.src.FetchWays(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	var outer, inner [][]osmdata.Node
	for _, m := range r.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		w, ok := members[osm.WayID(m.Ref)]
		if !ok || len(w.Nodes) == 0 {
			continue
		}
		coords, err := c.src.FetchNodes(ctx, w.Nodes.NodeIDs())
		if err != nil {
			return nil, err
		}
		seg := resolve(w.Nodes, coords)
		if len(seg) == 0 {
			continue
		}
		if m.Role == "inner" {
			inner = append(inner, seg)
		} else {
			outer = append(outer, seg)
		}
	}

	return &osmdata.Area{
		ID:         osmdata.RelationAreaID(int64(r.ID)),
		Tags:       r.Tags,
		OuterRings: osmdata.AssembleRings(outer),
		InnerRings: osmdata.AssembleRings(inner),
	}, nil
}

// resolve maps way node refs to coordinates. Refs with no known location are
// dropped.
func resolve(refs osm.WayNodes, known map[osm.NodeID]*osm.Node) []osmdata.Node {
	out := make([]osmdata.Node, 0, len(refs))
	for _, ref := range refs {
		n, ok := known[ref.ID]
		if !ok || n == nil {
			continue
		}
		out = append(out, osmdata.Node{ID: int64(ref.ID), Lat: n.Lat, Lon: n.Lon})
	}
	return out
}
