package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/config"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

// renderFlags holds the command-line flags shared by render and serve.
type renderFlags struct {
	config      string
	bbox        string
	source      string
	file        string
	apiURL      string
	pixelLimit  int
	entityLimit int
	strokeWidth float64
	out         string
	noMasks     bool
	refresh     bool
	cache       cacheFlags
}

func (f *renderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "TOML config file")
	cmd.Flags().StringVarP(&f.bbox, "bbox", "b", "", "bounding box: minlon,minlat,maxlon,maxlat")
	cmd.Flags().StringVar(&f.source, "source", pipeline.SourceAPI, "data source: api or file")
	cmd.Flags().StringVar(&f.file, "file", "", ".osm.pbf extract for --source file")
	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "OSM API base URL (default the public endpoint)")
	cmd.Flags().IntVar(&f.pixelLimit, "pixel-limit", pipeline.DefaultPixelLimit, "largest sector edge in pixels")
	cmd.Flags().IntVar(&f.entityLimit, "entity-limit", pipeline.DefaultEntityLimit, "largest id list per API request")
	cmd.Flags().Float64Var(&f.strokeWidth, "stroke-width", pipeline.DefaultStrokeWidth, "way stroke width in pixels")
	cmd.Flags().StringVarP(&f.out, "out", "o", pipeline.DefaultOutDir, "output directory for map.png and images/")
	cmd.Flags().BoolVar(&f.noMasks, "no-masks", false, "skip mask extraction")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass cached API responses")
	f.cache.register(cmd)
}

// options builds pipeline options for one bounding box: config file values
// first, then every flag the user set explicitly.
func (f *renderFlags) options(cmd *cobra.Command) (pipeline.Options, error) {
	opts, err := f.baseOptions(cmd)
	if err != nil {
		return opts, err
	}
	if f.bbox != "" || opts.Box == (geo.BoundingBox{}) {
		box, err := parseBBox(f.bbox)
		if err != nil {
			return opts, err
		}
		opts.Box = box
	}
	return opts, nil
}

// baseOptions is options without the bounding box. A config file's [cache]
// section fills in cache flags the user left unset.
func (f *renderFlags) baseOptions(cmd *cobra.Command) (pipeline.Options, error) {
	opts := pipeline.Options{
		Source:      f.source,
		PixelLimit:  f.pixelLimit,
		EntityLimit: f.entityLimit,
		StrokeWidth: f.strokeWidth,
		OutDir:      f.out,
	}
	changed := cmd.Flags().Changed
	if f.config != "" {
		file, err := config.Load(f.config)
		if err != nil {
			return opts, err
		}
		if err := file.Apply(&opts); err != nil {
			return opts, err
		}
		if file.Cache.Redis != "" && !changed("cache-redis") {
			f.cache.redis = file.Cache.Redis
		}
		if file.Cache.Prefix != "" && !changed("cache-prefix") {
			f.cache.prefix = file.Cache.Prefix
		}
	}

	if changed("source") {
		opts.Source = f.source
	}
	if f.file != "" {
		opts.File = f.file
	}
	if f.apiURL != "" {
		opts.APIURL = f.apiURL
	}
	if changed("pixel-limit") {
		opts.PixelLimit = f.pixelLimit
	}
	if changed("entity-limit") {
		opts.EntityLimit = f.entityLimit
	}
	if changed("stroke-width") {
		opts.StrokeWidth = f.strokeWidth
	}
	if changed("out") {
		opts.OutDir = f.out
	}
	if changed("no-masks") {
		opts.NoMasks = f.noMasks
	}
	opts.Refresh = f.refresh
	return opts, nil
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a bounding box to map.png and per-area masks",
		Long: `Render downloads every node, way and multipolygon inside the bounding box,
draws classified areas and then ways onto one raster, and writes each area as
a cropped mask under <out>/images/<key>/<lon>;<lat>.png.`,
		Example: `  geomap render --bbox 30.30,59.93,30.32,59.94 --out spb
  geomap render --config spb.toml --source file --file spb.osm.pbf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			return c.runRender(cmd.Context(), opts, flags.cache)
		},
	}

	flags.register(cmd)
	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, cf cacheFlags) error {
	runner, err := c.newRunner(cf)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		return err
	}
	prog.done("render complete", "run", result.RunID)

	s := result.Stats
	printSuccess("Rendered %s", StyleValue.Render(fmt.Sprintf("%dx%d px", s.Width, s.Height)))
	printStats(
		statCount{s.Sectors, "sectors"},
		statCount{s.Areas, "areas"},
		statCount{s.Ways, "ways"},
		statCount{s.Masks, "masks"},
		statCount{s.Skipped, "skipped"},
	)
	if s.Retries > 0 || s.Failures > 0 {
		printWarning("%d rate-limit retries, %d fetches returned empty", s.Retries, s.Failures)
	}
	if result.RasterPath != "" {
		printFile(result.RasterPath)
	}
	if s.Masks > 0 {
		printNextStep("Load the masks", fmt.Sprintf("geomap load --out %s", opts.OutDir))
	}
	return nil
}
