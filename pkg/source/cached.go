package source

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/cache"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/observability"
)

// CacheTTLs sets the lifetime of cached responses per request kind.
type CacheTTLs struct {
	Sector time.Duration
	Ways   time.Duration
	Nodes  time.Duration
}

// DefaultCacheTTLs returns the standard lifetimes.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{Sector: cache.TTLSector, Ways: cache.TTLWays, Nodes: cache.TTLNodes}
}

type cached struct {
	src   Source
	c     cache.Cache
	keyer cache.Keyer
	ttls  CacheTTLs
}

// WithCache stores successful responses of src in c as OSM XML. Errors are
// passed through and never cached. A nil keyer uses [cache.NewDefaultKeyer].
func WithCache(src Source, c cache.Cache, keyer cache.Keyer, ttls CacheTTLs) Source {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &cached{src: src, c: c, keyer: keyer, ttls: ttls}
}

func (s *cached) FetchSector(ctx context.Context, box geo.BoundingBox) (*osm.OSM, error) {
	key := s.keyer.SectorKey(box)
	if o, ok := s.load(ctx, cache.KeyTypeSector, key); ok {
		return o, nil
	}
	o, err := s.src.FetchSector(ctx, box)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cache.KeyTypeSector, key, o, s.ttls.Sector)
	return o, nil
}

func (s *cached) FetchWays(ctx context.Context, id osm.RelationID) (map[osm.WayID]*osm.Way, error) {
	key := s.keyer.WaysKey(int64(id))
	if o, ok := s.load(ctx, cache.KeyTypeWays, key); ok {
		return wayMap(o.Ways), nil
	}
	ways, err := s.src.FetchWays(ctx, id)
	if err != nil {
		return nil, err
	}
	o := &osm.OSM{}
	for _, w := range ways {
		o.Ways = append(o.Ways, w)
	}
	s.store(ctx, cache.KeyTypeWays, key, o, s.ttls.Ways)
	return ways, nil
}

func (s *cached) FetchNodes(ctx context.Context, ids []osm.NodeID) (map[osm.NodeID]*osm.Node, error) {
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	key := s.keyer.NodesKey(raw)
	if o, ok := s.load(ctx, cache.KeyTypeNodes, key); ok {
		return nodeMap(o.Nodes), nil
	}
	nodes, err := s.src.FetchNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	o := &osm.OSM{}
	for _, n := range nodes {
		o.Nodes = append(o.Nodes, n)
	}
	s.store(ctx, cache.KeyTypeNodes, key, o, s.ttls.Nodes)
	return nodes, nil
}

func (s *cached) load(ctx context.Context, keyType, key string) (*osm.OSM, bool) {
	data, ok, err := s.c.Get(ctx, key)
	if err != nil || !ok {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	o := &osm.OSM{}
	if err := xml.Unmarshal(data, o); err != nil {
		_ = s.c.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return o, true
}

func (s *cached) store(ctx context.Context, keyType, key string, o *osm.OSM, ttl time.Duration) {
	data, err := xml.Marshal(o)
	if err != nil {
		return
	}
	if err := s.c.Set(ctx, key, data, ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, keyType, len(data))
	}
}

func wayMap(ways osm.Ways) map[osm.WayID]*osm.Way {
	m := make(map[osm.WayID]*osm.Way, len(ways))
	for _, w := range ways {
		m[w.ID] = w
	}
	return m
}

func nodeMap(nodes osm.Nodes) map[osm.NodeID]*osm.Node {
	m := make(map[osm.NodeID]*osm.Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}
