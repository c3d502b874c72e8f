// Package cli implements the geomap command-line interface.
//
// The commands render OpenStreetMap data inside a bounding box to a raster
// and a tree of per-area masks, inspect the sector grid, load masks into a
// location database, look positions up from observed masks, preview rasters
// in the terminal and serve renders over HTTP. The CLI is built using cobra and logs through charmbracelet/log.
//
// # Commands
//
//   - render: fetch, rasterize and extract masks for a bounding box
//   - sectors: print the sector grid for a bounding box
//   - load: embed stored masks and hand them to a loader or MongoDB
//   - locate: estimate a position by matching object masks against stored ones
//   - preview: show a raster in the terminal
//   - serve: expose sector and render endpoints over HTTP
//   - config: print the built-in configuration as TOML
//   - cache: manage the API response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/buildinfo"
	"github.com/matzehuels/geomap/pkg/cache"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "geomap",
		Short:        "Geomap rasterizes OpenStreetMap regions into classified masks",
		Long:         `Geomap downloads OpenStreetMap data for a bounding box, classifies areas and ways by tag, rasterizes them with a geodesic projection and crops every area into a mask for downstream recognition.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.sectorsCommand())
	root.AddCommand(c.loadCommand())
	root.AddCommand(c.locateCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

const redisPingTimeout = 3 * time.Second

// cacheFlags selects the response cache backend.
type cacheFlags struct {
	noCache bool
	redis   string
	prefix  string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the API response cache")
	cmd.Flags().StringVar(&f.redis, "cache-redis", "", "redis:// URL for a shared response cache")
	cmd.Flags().StringVar(&f.prefix, "cache-prefix", "geomap", "key prefix in the shared cache")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(f cacheFlags) (*pipeline.Runner, error) {
	cc, err := c.newCache(f)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

func (c *CLI) newCache(f cacheFlags) (cache.Cache, error) {
	if f.noCache {
		return cache.NewNullCache(), nil
	}
	if f.redis != "" {
		rc, err := cache.NewRedisCache(f.redis, f.prefix)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "cache redis url")
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			c.Logger.Warn("redis cache unreachable, caching disabled", "err", err)
			_ = rc.Close()
			return cache.NewNullCache(), nil
		}
		return rc, nil
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Flag Helpers
// =============================================================================

// parseBBox parses "minlon,minlat,maxlon,maxlat".
func parseBBox(s string) (geo.BoundingBox, error) {
	if strings.TrimSpace(s) == "" {
		return geo.BoundingBox{}, errors.New(errors.ErrCodeInvalidBounds, "--bbox is required (minlon,minlat,maxlon,maxlat)")
	}
	return geo.ParseBoundingBox(s)
}

// parseCategories splits a comma-separated category list.
func parseCategories(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
