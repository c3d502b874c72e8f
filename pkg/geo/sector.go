package geo

import (
	"github.com/matzehuels/geomap/pkg/errors"
)

// Sector is a sub-rectangle of a bounding box.
type Sector = BoundingBox

// Grid describes how a box was partitioned.
type Grid struct {
	Cols, Rows int
}

// Count returns the number of sectors in the grid.
func (g Grid) Count() int { return g.Cols * g.Rows }

// GridFor returns the sector grid for box: ceil(width/limit) columns and
// ceil(height/limit) rows, each at least one.
func GridFor(box BoundingBox, pixelLimit int) (Grid, error) {
	if err := box.Validate(); err != nil {
		return Grid{}, err
	}
	if pixelLimit <= 0 {
		return Grid{}, errors.New(errors.ErrCodeInvalidConfig, "pixel limit must be positive, got %d", pixelLimit)
	}
	width, height := Size(box)
	return Grid{
		Cols: max(ceilDiv(width, pixelLimit), 1),
		Rows: max(ceilDiv(height, pixelLimit), 1),
	}, nil
}

// Sectorize partitions box into sectors no larger than pixelLimit pixels on
// either side. Sectors are emitted column by column: for each column i, every
// row j from south to north.
func Sectorize(box BoundingBox, pixelLimit int) ([]Sector, error) {
	grid, err := GridFor(box, pixelLimit)
	if err != nil {
		return nil, err
	}

	lonEdges := edges(box.MinLon, box.MaxLon, grid.Cols)
	latEdges := edges(box.MinLat, box.MaxLat, grid.Rows)

	sectors := make([]Sector, 0, grid.Count())
	for i := 0; i < grid.Cols; i++ {
		for j := 0; j < grid.Rows; j++ {
			sectors = append(sectors, Sector{
				MinLon: lonEdges[i],
				MinLat: latEdges[j],
				MaxLon: lonEdges[i+1],
				MaxLat: latEdges[j+1],
			})
		}
	}
	return sectors, nil
}

// edges returns n+1 split points from lo to hi. The last edge is hi itself so
// the grid covers the box without float drift.
func edges(lo, hi float64, n int) []float64 {
	delta := (hi - lo) / float64(n)
	out := make([]float64, n+1)
	for i := 0; i < n; i++ {
		out[i] = lo + float64(i)*delta
	}
	out[n] = hi
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
