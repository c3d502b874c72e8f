package cache

import "github.com/matzehuels/geomap/pkg/geo"

// ScopedKeyer wraps a Keyer with a prefix so that several data sources can
// share one backend without key collisions.
//
// Example usage:
//
//	api := NewScopedKeyer(NewDefaultKeyer(), "osm.org:")
//	dev := NewScopedKeyer(NewDefaultKeyer(), "dev-api:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SectorKey generates a prefixed sector key.
func (k *ScopedKeyer) SectorKey(box geo.BoundingBox) string {
	return k.prefix + k.inner.SectorKey(box)
}

// WaysKey generates a prefixed relation-ways key.
func (k *ScopedKeyer) WaysKey(relationID int64) string {
	return k.prefix + k.inner.WaysKey(relationID)
}

// NodesKey generates a prefixed node-batch key.
func (k *ScopedKeyer) NodesKey(ids []int64) string {
	return k.prefix + k.inner.NodesKey(ids)
}
