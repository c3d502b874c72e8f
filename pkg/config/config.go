// Package config loads geomap settings from a TOML file.
//
// A config file may set any subset of the sections below. Sections that are
// absent keep the built-in defaults; CLI flags override file values.
//
//	classifiable = ["building", "water", "highway"]
//
//	[bounds]
//	min_lon = 30.30
//	min_lat = 59.93
//	max_lon = 30.32
//	max_lat = 59.94
//
//	[limits]
//	pixel  = 1000
//	entity = 700
//
//	[render]
//	stroke_width = 6
//	out          = "out"
//	masks        = true
//
//	[source]
//	mode    = "file"
//	file    = "region.osm.pbf"
//	api_url = "https://api.openstreetmap.org/api/0.6"
//
//	[categories]
//	yes   = "#ff0000"
//	water = "#0000ff"
//
// A [categories] table replaces the built-in palette entirely, so a file can
// drop categories as well as add them.
package config

import (
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/geomap/pkg/classify"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

// File is the decoded form of a config file.
type File struct {
	Classifiable []string          `toml:"classifiable,omitempty"`
	Bounds       *Bounds           `toml:"bounds,omitempty"`
	Limits       Limits            `toml:"limits"`
	Render       Render            `toml:"render"`
	Source       Source            `toml:"source"`
	Cache        Cache             `toml:"cache"`
	Categories   map[string]string `toml:"categories,omitempty"`
}

// Bounds is the [bounds] section.
type Bounds struct {
	MinLon float64 `toml:"min_lon"`
	MinLat float64 `toml:"min_lat"`
	MaxLon float64 `toml:"max_lon"`
	MaxLat float64 `toml:"max_lat"`
}

// Box converts the section to a bounding box.
func (b Bounds) Box() geo.BoundingBox {
	return geo.BoundingBox{MinLon: b.MinLon, MinLat: b.MinLat, MaxLon: b.MaxLon, MaxLat: b.MaxLat}
}

// Limits is the [limits] section.
type Limits struct {
	Pixel  int `toml:"pixel,omitempty"`
	Entity int `toml:"entity,omitempty"`
}

// Render is the [render] section.
type Render struct {
	StrokeWidth float64 `toml:"stroke_width,omitempty"`
	Out         string  `toml:"out,omitempty"`
	Raster      string  `toml:"raster,omitempty"`
	Masks       *bool   `toml:"masks,omitempty"`
}

// Source is the [source] section.
type Source struct {
	Mode   string `toml:"mode,omitempty"`
	File   string `toml:"file,omitempty"`
	APIURL string `toml:"api_url,omitempty"`
}

// Cache is the [cache] section.
type Cache struct {
	Redis  string `toml:"redis,omitempty"`  // redis:// URL; empty uses the file cache
	Prefix string `toml:"prefix,omitempty"` // key prefix for shared Redis instances
}

// Load reads and decodes the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return f, nil
}

// Parse decodes TOML data. Unknown keys are rejected so that typos surface
// instead of silently keeping a default.
func Parse(data []byte) (*File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	return &f, nil
}

// Table builds the classification table. Missing lists fall back to the
// built-in keys and palette.
func (f *File) Table() (*classify.Table, error) {
	keys := classify.DefaultKeys
	if len(f.Classifiable) > 0 {
		keys = f.Classifiable
	}
	colors := classify.DefaultColors
	if len(f.Categories) > 0 {
		colors = make(map[string]color.RGBA, len(f.Categories))
		for name, hex := range f.Categories {
			c, err := ParseColor(hex)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "category %q", name)
			}
			colors[name] = c
		}
	}
	return classify.NewTable(keys, colors)
}

// Apply copies every value set in the file onto opts.
func (f *File) Apply(opts *pipeline.Options) error {
	table, err := f.Table()
	if err != nil {
		return err
	}
	opts.Table = table

	if f.Bounds != nil {
		opts.Box = f.Bounds.Box()
	}
	if f.Limits.Pixel != 0 {
		opts.PixelLimit = f.Limits.Pixel
	}
	if f.Limits.Entity != 0 {
		opts.EntityLimit = f.Limits.Entity
	}
	if f.Render.StrokeWidth != 0 {
		opts.StrokeWidth = f.Render.StrokeWidth
	}
	if f.Render.Out != "" {
		opts.OutDir = f.Render.Out
	}
	if f.Render.Raster != "" {
		opts.RasterName = f.Render.Raster
	}
	if f.Render.Masks != nil {
		opts.NoMasks = !*f.Render.Masks
	}
	if f.Source.Mode != "" {
		opts.Source = f.Source.Mode
	}
	if f.Source.File != "" {
		opts.File = f.Source.File
	}
	if f.Source.APIURL != "" {
		opts.APIURL = f.Source.APIURL
	}
	return nil
}

// ParseColor parses a "#rrggbb" or "#rgb" hex color.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "color %q", s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// FormatColor renders c as "#rrggbb".
func FormatColor(c color.RGBA) string {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
}

// Default returns a file holding the built-in table and limits.
func Default() *File {
	masks := true
	cats := make(map[string]string, len(classify.DefaultColors))
	for name, c := range classify.DefaultColors {
		cats[name] = FormatColor(c)
	}
	return &File{
		Classifiable: append([]string(nil), classify.DefaultKeys...),
		Limits:       Limits{Pixel: pipeline.DefaultPixelLimit, Entity: pipeline.DefaultEntityLimit},
		Render: Render{
			StrokeWidth: pipeline.DefaultStrokeWidth,
			Out:         pipeline.DefaultOutDir,
			Raster:      pipeline.DefaultRasterName,
			Masks:       &masks,
		},
		Source:     Source{Mode: pipeline.SourceAPI},
		Categories: cats,
	}
}

// Encode writes f as TOML.
func (f *File) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}
