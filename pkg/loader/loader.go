// Package loader embeds stored masks and loads them into a location
// database.
//
// A [Loader] walks a mask directory tree, decodes each mask, computes an
// embedding with an [Embedder] and forwards (category, lon, lat, vector)
// records to a [Sink] in batches. Two sinks are provided: [ExecSink] runs
// the external loader binary with the argument layout built by [Args], and
// [MongoSink] inserts documents into MongoDB.
package loader

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/mask"
	"github.com/matzehuels/geomap/pkg/raster"
)

// DefaultBatch is the number of records handed to a sink at once: one
// loader invocation per mask. Larger batches pack several records into one
// argument list.
const DefaultBatch = 1

// Options configures a [Loader].
type Options struct {
	Categories []string // mask keys to load; empty loads all
	Batch      int
	Logger     *log.Logger
	Progress   func(Stats) // called after every visited mask
}

// Stats summarizes a load.
type Stats struct {
	Masks   int // mask files visited
	Loaded  int // records accepted by the sink
	Skipped int // unreadable or empty masks
}

// Loader moves masks from a directory store into a sink.
type Loader struct {
	store    *mask.DirStore
	embed    Embedder
	sink     Sink
	only     map[string]bool
	batch    int
	logger   *log.Logger
	progress func(Stats)
}

// New creates a loader.
func New(store *mask.DirStore, embed Embedder, sink Sink, opts Options) *Loader {
	if opts.Batch <= 0 {
		opts.Batch = DefaultBatch
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	var only map[string]bool
	if len(opts.Categories) > 0 {
		only = make(map[string]bool, len(opts.Categories))
		for _, c := range opts.Categories {
			only[c] = true
		}
	}
	return &Loader{
		store:    store,
		embed:    embed,
		sink:     sink,
		only:     only,
		batch:    opts.Batch,
		logger:   opts.Logger,
		progress: opts.Progress,
	}
}

// Run loads every matching mask. Masks that cannot be decoded or embedded
// are logged and skipped; sink failures abort the run.
func (l *Loader) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	pending := make([]Record, 0, l.batch)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := l.sink.Put(ctx, pending); err != nil {
			return err
		}
		stats.Loaded += len(pending)
		l.logger.Debug("loaded batch", "records", len(pending), "total", stats.Loaded)
		pending = pending[:0]
		return nil
	}

	err := l.store.Walk(ctx, func(e mask.Entry) error {
		if l.only != nil && !l.only[e.Key] {
			return nil
		}
		stats.Masks++
		if l.progress != nil {
			defer func() { l.progress(stats) }()
		}
		vec, err := l.vector(e.Path)
		if err != nil {
			stats.Skipped++
			l.logger.Warn("skipping mask", "path", e.Path, "err", err)
			return nil
		}
		pending = append(pending, Record{Category: e.Key, Lon: e.Lon, Lat: e.Lat, Vector: vec})
		if len(pending) >= l.batch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := flush(); err != nil {
		return stats, err
	}
	l.logger.Info("loaded masks", "loaded", stats.Loaded, "skipped", stats.Skipped)
	return stats, nil
}

func (l *Loader) vector(path string) ([]float64, error) {
	return EmbedFile(l.embed, path)
}

// EmbedFile decodes the mask PNG at path and embeds it.
func EmbedFile(e Embedder, path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bitmap, err := raster.DecodePNG(f)
	if err != nil {
		return nil, err
	}
	vec, err := e.Embed(bitmap)
	if err != nil {
		return nil, err
	}
	if len(vec) != e.Dim() {
		return nil, errors.New(errors.ErrCodeInternal, "embedder returned %d values, want %d", len(vec), e.Dim())
	}
	return vec, nil
}
