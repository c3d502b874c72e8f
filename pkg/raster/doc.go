// Package raster draws classified geographic entities onto pixel canvases.
//
// # Canvas
//
// A [Canvas] is an RGB buffer sized by [geo.Size] of the rendered box, with
// (0, 0) at the north-west corner. Fills and strokes are rasterized with
// golang.org/x/image/vector and thresholded, so every pixel is either fully
// painted or untouched. This keeps holes pixel-exact: filling an inner ring
// with [Background] clears exactly the pixels its own fill would have set.
//
// # Rasterizer
//
// [Rasterizer.DrawWay] strokes a classified way onto the shared canvas.
// [Rasterizer.DrawArea] fills a classified area on a private scratch canvas
// (outer rings in the category color, inner rings as holes) and then adds the
// scratch canvas onto the shared one channel by channel with saturation.
// Overlapping areas therefore brighten where they meet; that is the expected
// output, not an error.
//
// An area with inner rings but no drawable outer ring fills its inner rings
// in the category color so the geometry is still visible.
//
// Nodes outside the rendered box are dropped before projection, never
// clamped or clipped. A way crossing the box edge is stroked only between its
// inside nodes. An area ring crossing the edge is filled as the polygon of
// its inside nodes, which can cut large polygons short along a chord and
// leaves its mask extent limited to those nodes. Entities whose tags do not
// classify are skipped silently.
package raster
