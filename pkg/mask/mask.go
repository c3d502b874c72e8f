// Package mask crops per-area renderings into standalone masks and persists
// them.
//
// [Extract] takes the scratch canvas produced for one area together with the
// lat/lon extent of the nodes that were drawn, projects the extent's corners
// to a pixel window, and crops the scratch canvas to it. An area whose window
// holds no painted pixel yields no mask.
//
// Masks are keyed by the classifying tag key and the centroid of the extent.
// [DirStore] lays them out as
//
//	<root>/images/<key>/<lon>;<lat>.png
package mask

import (
	"fmt"
	"image"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/raster"
)

// Mask is a cropped rendering of a single area.
type Mask struct {
	Key      string          // classifying tag key, used as the storage category
	Category string          // tag value that selected the color
	Lat      float64         // centroid latitude
	Lon      float64         // centroid longitude
	Window   image.Rectangle // crop window on the source canvas
	Bitmap   *raster.Canvas
}

func (m *Mask) String() string {
	return fmt.Sprintf("%s=%s@%s;%s", m.Key, m.Category, formatCoord(m.Lon), formatCoord(m.Lat))
}

// Window returns the half-open pixel rectangle spanned by ext.
func Window(ext geo.Extent, proj *geo.Projector) image.Rectangle {
	b := ext.Box()
	x0, y0 := proj.Project(b.MaxLat, b.MinLon)
	x1, y1 := proj.Project(b.MinLat, b.MaxLon)
	return image.Rect(x0, y0, x1, y1)
}

// Extract crops scratch to the window of ext. It returns false when ext is
// empty or the window contains no painted pixel. Extract does not modify
// scratch and always returns the same bitmap for the same inputs.
func Extract(scratch *raster.Canvas, ext geo.Extent, class classify.Class, proj *geo.Projector) (*Mask, bool) {
	if scratch == nil || ext.IsEmpty() {
		return nil, false
	}
	win := Window(ext, proj).Intersect(scratch.Bounds())
	if win.Empty() {
		return nil, false
	}
	bitmap := scratch.Crop(win)
	if bitmap.CountNonBackground() == 0 {
		return nil, false
	}
	lat, lon := ext.Centroid()
	return &Mask{
		Key:      class.Key,
		Category: class.Category,
		Lat:      lat,
		Lon:      lon,
		Window:   win,
		Bitmap:   bitmap,
	}, true
}
