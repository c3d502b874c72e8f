package locate

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geomap/pkg/loader"
	"github.com/matzehuels/geomap/pkg/mask"
)

// DirIndex serves records straight from a mask directory tree, embedding
// masks on demand. It needs no database and suits small mask sets.
type DirIndex struct {
	store  *mask.DirStore
	embed  loader.Embedder
	logger *log.Logger
}

// NewDirIndex creates an index over store.
func NewDirIndex(store *mask.DirStore, embed loader.Embedder, logger *log.Logger) *DirIndex {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &DirIndex{store: store, embed: embed, logger: logger}
}

// Near embeds every stored mask within eps of (lon, lat). Unreadable masks
// are skipped.
func (d *DirIndex) Near(ctx context.Context, lon, lat, eps float64) ([]loader.Record, error) {
	var out []loader.Record
	err := d.store.Walk(ctx, func(e mask.Entry) error {
		if !Within(e.Lon, e.Lat, lon, lat, eps) {
			return nil
		}
		vec, err := loader.EmbedFile(d.embed, e.Path)
		if err != nil {
			d.logger.Debug("skipping mask", "path", e.Path, "err", err)
			return nil
		}
		out = append(out, loader.Record{Category: e.Key, Lon: e.Lon, Lat: e.Lat, Vector: vec})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ Index = (*DirIndex)(nil)
	_ Index = (*loader.MongoSink)(nil)
)
