// Package geo turns geographic coordinates into raster pixel coordinates.
//
// # Projection
//
// [Projector] is a local flat approximation anchored at the upper-left
// (max latitude, min longitude) corner of a [BoundingBox]. Distances are
// measured on the WGS84 ellipsoid, so one pixel is roughly one meter at the
// box's latitude:
//
//	y = geodesic((maxLat, minLon), (lat, minLon))
//	x = geodesic((maxLat, minLon), (maxLat, lon))
//
// Both are truncated toward zero. The truncation biases every coordinate
// toward the north-west corner by up to one pixel; callers rely on this being
// stable, so it is not rounded. The approximation is only meant for
// city-scale boxes.
//
// # Sectors
//
// [Sectorize] splits a box into a row-major grid of sub-boxes whose projected
// size does not exceed a pixel limit, so that each one fits into a single
// bandwidth-limited data source request. Adjacent sectors share their edges
// exactly; an entity lying on a shared edge may be returned by both requests.
package geo
