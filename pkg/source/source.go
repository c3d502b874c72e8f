// Package source defines the data-source contract and the plumbing around it.
//
// A [Source] answers three questions: what is inside a sector, which ways
// belong to a relation, and where are these nodes. The remote implementation
// lives in source/osmapi; source/pbf reads a bulk extract instead and drives an
// [osmdata.Handler] directly.
//
// Two wrappers give every Source the same failure behavior:
//
//   - [WithCache] stores successful responses in a [cache.Cache].
//   - [WithRetry] retries once after a rate-limit signal and degrades every
//     other non-fatal failure to an empty result.
//
// The usual stack is WithRetry(WithCache(client)), so degraded empty results
// are never cached.
package source

import (
	"context"

	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
)

// Default request limits.
const (
	// DefaultPixelLimit bounds a sector's projected width and height.
	DefaultPixelLimit = 1000

	// DefaultEntityLimit bounds the ids in one ways or nodes request.
	DefaultEntityLimit = 700
)

// Source is the external data-source contract.
//
// Implementations return an empty collection, not an error, when a request
// exceeds their entity limit, and report throttling with
// *errors.RateLimitedError.
type Source interface {
	// FetchSector returns every node, way and relation inside box.
	FetchSector(ctx context.Context, box geo.BoundingBox) (*osm.OSM, error)

	// FetchWays returns the member ways of a relation keyed by id.
	FetchWays(ctx context.Context, relationID osm.RelationID) (map[osm.WayID]*osm.Way, error)

	// FetchNodes returns the requested nodes keyed by id.
	FetchNodes(ctx context.Context, ids []osm.NodeID) (map[osm.NodeID]*osm.Node, error)
}

// ValidateSector rejects a sector that cannot be requested. A malformed
// sector is a fatal precondition violation.
func ValidateSector(box geo.BoundingBox) error {
	if err := box.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSector, err, "sector %s", box)
	}
	return nil
}

// OverLimit reports whether n ids exceed limit. A non-positive limit
// disables the check.
func OverLimit(n, limit int) bool {
	return limit > 0 && n > limit
}

// Bounds converts a box to the osm request bounds.
func Bounds(box geo.BoundingBox) *osm.Bounds {
	return &osm.Bounds{
		MinLat: box.MinLat,
		MaxLat: box.MaxLat,
		MinLon: box.MinLon,
		MaxLon: box.MaxLon,
	}
}

// Entities returns the number of elements in o.
func Entities(o *osm.OSM) int {
	if o == nil {
		return 0
	}
	return len(o.Nodes) + len(o.Ways) + len(o.Relations)
}
