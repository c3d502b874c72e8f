// Package pipeline provides the core render pipeline for geomap.
//
// This package implements the complete fetch → rasterize → extract pipeline
// used by the CLI and the HTTP server. Both entry points share one [Runner]
// so they agree on defaults, ordering and failure policy.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Fetch: split the bounding box into sectors and collect nodes, ways and
//     areas from the OSM API, or scan a .osm.pbf extract
//  2. Rasterize: draw every classified area, then every classified way, onto
//     one canvas sized from the geodesic extent of the box
//  3. Extract: crop each area's isolated rendering into a mask and store it
//
// Areas are always drawn before ways so that strokes sit on top of fills.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Box:    geo.BoundingBox{MinLon: 30.30, MinLat: 59.93, MaxLon: 30.32, MaxLat: 59.94},
//	    OutDir: "out",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.RasterPath, len(result.Masks))
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/mask"
	"github.com/matzehuels/geomap/pkg/raster"
	"github.com/matzehuels/geomap/pkg/source"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultPixelLimit is the largest sector edge in pixels.
	DefaultPixelLimit = source.DefaultPixelLimit

	// DefaultEntityLimit is the largest id list sent in one request.
	DefaultEntityLimit = source.DefaultEntityLimit

	// DefaultStrokeWidth is the pixel width of stroked ways.
	DefaultStrokeWidth = raster.DefaultStrokeWidth

	// DefaultOutDir is the directory receiving the raster and mask tree.
	DefaultOutDir = "."

	// DefaultRasterName is the file name of the composite raster.
	DefaultRasterName = "map.png"

	// progressEvery is the area/way logging cadence.
	progressEvery = 100
)

// Source modes.
const (
	SourceAPI  = "api"
	SourceFile = "file"
)

// ValidSources is the set of supported data source modes.
var ValidSources = map[string]bool{
	SourceAPI:  true,
	SourceFile: true,
}

// Options configures a pipeline run.
type Options struct {
	// Region
	Box geo.BoundingBox `json:"bbox"`

	// Data source
	Source      string `json:"source,omitempty"` // "api" (default) or "file"
	File        string `json:"file,omitempty"`   // .osm.pbf path for file mode
	APIURL      string `json:"api_url,omitempty"` // OSM API base URL, defaults to the public endpoint
	PixelLimit  int    `json:"pixel_limit,omitempty"`
	EntityLimit int    `json:"entity_limit,omitempty"`
	Refresh     bool   `json:"refresh,omitempty"` // bypass the response cache

	// Rendering
	StrokeWidth float64         `json:"stroke_width,omitempty"`
	Table       *classify.Table `json:"-"` // defaults to classify.Default()

	// Output
	OutDir     string `json:"out_dir,omitempty"`
	RasterName string `json:"raster_name,omitempty"`
	NoMasks    bool   `json:"no_masks,omitempty"`  // skip mask extraction
	NoRaster   bool   `json:"no_raster,omitempty"` // keep the canvas in memory only

	// Injected collaborators (not serialized)
	Client source.Source `json:"-"` // API-mode source, defaults to an osmapi client
	Store  mask.Store    `json:"-"` // defaults to a DirStore rooted at OutDir
	Logger *log.Logger   `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and fills defaults. It is
// idempotent. A malformed box or a non-positive limit is a fatal
// precondition and returns an *errors.Error.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.Box.Validate(); err != nil {
		return err
	}

	if o.Source == "" {
		o.Source = SourceAPI
	}
	if !ValidSources[o.Source] {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown source %q (want api or file)", o.Source)
	}
	if o.Source == SourceFile {
		if o.File == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "file source requires a .osm.pbf path")
		}
		if err := errors.ValidatePath(o.File); err != nil {
			return err
		}
	}

	if o.PixelLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "pixel limit must be positive, got %d", o.PixelLimit)
	}
	if o.PixelLimit == 0 {
		o.PixelLimit = DefaultPixelLimit
	}
	if o.EntityLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "entity limit must be positive, got %d", o.EntityLimit)
	}
	if o.EntityLimit == 0 {
		o.EntityLimit = DefaultEntityLimit
	}
	if o.StrokeWidth < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "stroke width must be positive, got %g", o.StrokeWidth)
	}
	if o.StrokeWidth == 0 {
		o.StrokeWidth = DefaultStrokeWidth
	}

	if o.Table == nil {
		o.Table = classify.Default()
	}
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if o.RasterName == "" {
		o.RasterName = DefaultRasterName
	}
	if o.Store == nil && !o.NoMasks {
		o.Store = mask.NewDirStore(o.OutDir)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// MaskInfo describes one stored mask.
type MaskInfo struct {
	Key      string  `json:"key"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Path     string  `json:"path"`
}

// Result holds the output of a pipeline run.
type Result struct {
	RunID      string         `json:"run_id"`
	Canvas     *raster.Canvas `json:"-"`
	RasterPath string         `json:"raster_path,omitempty"`
	Masks      []MaskInfo     `json:"masks"`
	Stats      Stats          `json:"stats"`
}

// Stats contains counters and timings for one run.
type Stats struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	Sectors   int `json:"sectors"`
	Retries   int `json:"retries"`  // rate-limited fetches retried
	Failures  int `json:"failures"` // fetches degraded to empty results
	Nodes     int `json:"nodes"`
	Areas     int `json:"areas"`   // classified areas drawn
	Ways      int `json:"ways"`    // classified ways drawn
	Skipped   int `json:"skipped"` // unclassified areas and ways
	Masks     int `json:"masks"`

	FetchTime  time.Duration `json:"fetch_time"`
	RenderTime time.Duration `json:"render_time"`
}
