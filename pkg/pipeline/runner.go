package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/geomap/pkg/cache"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/mask"
	"github.com/matzehuels/geomap/pkg/observability"
	"github.com/matzehuels/geomap/pkg/osmdata"
	"github.com/matzehuels/geomap/pkg/raster"
	"github.com/matzehuels/geomap/pkg/source"
	"github.com/matzehuels/geomap/pkg/source/osmapi"
	"github.com/matzehuels/geomap/pkg/source/pbf"
)

// Runner executes the pipeline with a shared response cache.
//
// The Runner is stateless except for the cache and logger; it doesn't store
// run results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Sleep waits out rate limits. Nil uses source.SleepContext.
	Sleep source.Sleeper
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete fetch → rasterize → extract pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	rast, err := raster.NewRasterizer(opts.Box, opts.Table)
	if err != nil {
		return nil, fmt.Errorf("rasterizer: %w", err)
	}
	rast.WithStrokeWidth(opts.StrokeWidth)

	result := &Result{RunID: uuid.NewString()}
	result.Stats.Width, result.Stats.Height = rast.Size()
	logger := opts.Logger.With("run", result.RunID[:8])
	logger.Info("starting render", "bbox", opts.Box, "width", result.Stats.Width, "height", result.Stats.Height)

	// Stage 1: Fetch
	fetchStart := time.Now()
	set, err := r.Fetch(ctx, opts, result)
	result.Stats.FetchTime = time.Since(fetchStart)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	logger.Info("collected entities",
		"nodes", len(set.Nodes),
		"ways", len(set.Ways),
		"areas", len(set.Areas),
		"retries", result.Stats.Retries,
		"failures", result.Stats.Failures,
		"duration", result.Stats.FetchTime)

	// Stage 2 and 3: Rasterize and extract
	renderStart := time.Now()
	canvas, err := r.Render(ctx, rast, set, opts, result)
	result.Stats.RenderTime = time.Since(renderStart)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Canvas = canvas
	logger.Info("rendered entities",
		"areas", result.Stats.Areas,
		"ways", result.Stats.Ways,
		"skipped", result.Stats.Skipped,
		"masks", result.Stats.Masks,
		"duration", result.Stats.RenderTime)

	if !opts.NoRaster {
		path, err := WriteRaster(canvas, opts.OutDir, opts.RasterName)
		if err != nil {
			return nil, fmt.Errorf("write raster: %w", err)
		}
		result.RasterPath = path
		logger.Info("wrote raster", "path", path)
	}

	return result, nil
}

// Fetch collects every entity inside opts.Box. Counters are recorded on
// result.Stats.
func (r *Runner) Fetch(ctx context.Context, opts Options, result *Result) (*osmdata.Set, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	set := osmdata.NewSet()

	if opts.Source == SourceFile {
		hooks.OnFetchStart(ctx, result.RunID, 0)
		start := time.Now()
		reader, err := pbf.NewReader(opts.Box, opts.Table, opts.Logger)
		if err != nil {
			return nil, err
		}
		stats, err := reader.ReadFile(ctx, opts.File, set)
		hooks.OnFetchComplete(ctx, result.RunID, set.Len(), time.Since(start), err)
		if err != nil {
			return nil, err
		}
		result.Stats.Nodes = stats.Nodes
		return set, nil
	}

	sectors, err := geo.Sectorize(opts.Box, opts.PixelLimit)
	if err != nil {
		return nil, err
	}
	result.Stats.Sectors = len(sectors)
	hooks.OnFetchStart(ctx, result.RunID, len(sectors))
	start := time.Now()

	retrier := source.NewRetrier(opts.Logger, r.Sleep)
	src := source.WithRetry(r.cached(opts), retrier)
	stats, err := source.NewCollector(src, opts.Table, opts.Logger).Collect(ctx, sectors, set)

	result.Stats.Retries = retrier.Retries()
	result.Stats.Failures = retrier.Failures()
	result.Stats.Nodes = stats.Nodes
	hooks.OnFetchComplete(ctx, result.RunID, set.Len(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// cached wraps the API source with the response cache. Retries sit outside
// the cache so degraded results are never stored. Responses from a
// non-default API endpoint are cached under their own key prefix.
func (r *Runner) cached(opts Options) source.Source {
	client := opts.Client
	if client == nil {
		client = osmapi.New(osmapi.Config{BaseURL: opts.APIURL, EntityLimit: opts.EntityLimit, Logger: opts.Logger})
	}
	if opts.Refresh {
		return client
	}
	keyer := r.Keyer
	if opts.APIURL != "" && opts.APIURL != osmapi.DefaultBaseURL {
		keyer = cache.NewScopedKeyer(keyer, opts.APIURL+"|")
	}
	return source.WithCache(client, r.Cache, keyer, source.DefaultCacheTTLs())
}

// Render draws every area and then every way from set onto a fresh canvas.
// Each classified area is extracted into a mask and saved to opts.Store
// unless opts.NoMasks is set.
func (r *Runner) Render(ctx context.Context, rast *raster.Rasterizer, set *osmdata.Set, opts Options, result *Result) (*raster.Canvas, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	areas := set.OrderedAreas()
	ways := set.OrderedWays()
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, result.RunID, len(areas), len(ways))
	start := time.Now()

	canvas, err := r.render(ctx, rast, areas, ways, opts, result)
	hooks.OnRenderComplete(ctx, result.RunID, result.Stats.Masks, time.Since(start), err)
	return canvas, err
}

func (r *Runner) render(ctx context.Context, rast *raster.Rasterizer, areas []*osmdata.Area, ways []*osmdata.Way, opts Options, result *Result) (*raster.Canvas, error) {
	canvas := rast.NewCanvas()

	for i, a := range areas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, ok := rast.DrawArea(canvas, a)
		if !ok {
			result.Stats.Skipped++
		} else {
			result.Stats.Areas++
			if !opts.NoMasks {
				if err := r.extract(ctx, res, rast.Projector(), opts, result); err != nil {
					return nil, err
				}
			}
		}
		if (i+1)%progressEvery == 0 {
			opts.Logger.Info("drawing areas", "done", i+1, "total", len(areas))
		}
	}

	for i, w := range ways {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rast.DrawWay(canvas, w) {
			result.Stats.Ways++
		} else {
			result.Stats.Skipped++
		}
		if (i+1)%progressEvery == 0 {
			opts.Logger.Info("drawing ways", "done", i+1, "total", len(ways))
		}
	}

	return canvas, nil
}

func (r *Runner) extract(ctx context.Context, res *raster.AreaResult, proj *geo.Projector, opts Options, result *Result) error {
	m, ok := mask.Extract(res.Scratch, res.Extent, res.Class, proj)
	if !ok {
		return nil
	}
	path, err := opts.Store.Save(ctx, m)
	if err != nil {
		return fmt.Errorf("save mask %s: %w", m, err)
	}
	result.Masks = append(result.Masks, MaskInfo{
		Key:      m.Key,
		Category: m.Category,
		Lat:      m.Lat,
		Lon:      m.Lon,
		Path:     path,
	})
	result.Stats.Masks++
	return nil
}

// WriteRaster encodes c as PNG at dir/name, creating dir as needed.
func WriteRaster(c *raster.Canvas, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := c.EncodePNG(f); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
