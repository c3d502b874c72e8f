package cli

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/cache"
	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"render", "sectors", "load", "locate", "preview", "serve", "config", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     geo.BoundingBox
		wantCode errors.Code
	}{
		{"valid", "30.30,59.93,30.32,59.94", geo.BoundingBox{MinLon: 30.30, MinLat: 59.93, MaxLon: 30.32, MaxLat: 59.94}, ""},
		{"empty", "  ", geo.BoundingBox{}, errors.ErrCodeInvalidBounds},
		{"three parts", "1,2,3", geo.BoundingBox{}, errors.ErrCodeInvalidBounds},
		{"inverted", "30.32,59.93,30.30,59.94", geo.BoundingBox{}, errors.ErrCodeInvalidBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.in)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("parseBBox(%q) error = %v, want code %s", tt.in, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBBox(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseBBox(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"building", []string{"building"}},
		{" building, ,water ,", []string{"building", "water"}},
	}
	for _, tt := range tests {
		if got := parseCategories(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCategories(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatCoord(t *testing.T) {
	if got := formatCoord(30.3); got != "30.300000" {
		t.Errorf("formatCoord(30.3) = %q", got)
	}
}

// parseRender registers render flags on a throwaway command and parses args.
func parseRender(t *testing.T, args ...string) (*cobra.Command, *renderFlags) {
	t.Helper()
	var flags renderFlags
	cmd := &cobra.Command{Use: "render"}
	flags.register(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error = %v", args, err)
	}
	return cmd, &flags
}

func TestRenderFlagsOptions(t *testing.T) {
	cmd, flags := parseRender(t, "--bbox", "0,0,0.01,0.01", "--pixel-limit", "500", "--no-masks")
	opts, err := flags.options(cmd)
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	if opts.Box != (geo.BoundingBox{MaxLon: 0.01, MaxLat: 0.01}) {
		t.Errorf("Box = %+v", opts.Box)
	}
	if opts.PixelLimit != 500 || !opts.NoMasks {
		t.Errorf("PixelLimit = %d, NoMasks = %v", opts.PixelLimit, opts.NoMasks)
	}
	if opts.Source != pipeline.SourceAPI || opts.EntityLimit != pipeline.DefaultEntityLimit {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestRenderFlagsRequireBBox(t *testing.T) {
	cmd, flags := parseRender(t)
	if _, err := flags.options(cmd); !errors.Is(err, errors.ErrCodeInvalidBounds) {
		t.Errorf("options() error = %v, want InvalidBounds", err)
	}
}

func TestRenderFlagsConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geomap.toml")
	data := `
[bounds]
min_lon = 1.0
min_lat = 2.0
max_lon = 1.01
max_lat = 2.01

[limits]
pixel = 800
entity = 300

[render]
out = "from-config"
masks = false

[cache]
redis = "redis://cache:6379/0"
prefix = "shared"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd, flags := parseRender(t, "--config", path, "--pixel-limit", "400", "--cache-prefix", "mine")
	opts, err := flags.options(cmd)
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	if opts.Box.MinLon != 1.0 || opts.Box.MaxLat != 2.01 {
		t.Errorf("Box = %+v, want config bounds", opts.Box)
	}
	if opts.PixelLimit != 400 {
		t.Errorf("PixelLimit = %d, want flag value 400", opts.PixelLimit)
	}
	if opts.EntityLimit != 300 {
		t.Errorf("EntityLimit = %d, want config value 300", opts.EntityLimit)
	}
	if opts.OutDir != "from-config" || !opts.NoMasks {
		t.Errorf("OutDir = %q, NoMasks = %v", opts.OutDir, opts.NoMasks)
	}
	if flags.cache.redis != "redis://cache:6379/0" || flags.cache.prefix != "mine" {
		t.Errorf("cache flags = %+v", flags.cache)
	}
}

func TestRenderFlagsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("colour = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd, flags := parseRender(t, "--config", path, "--bbox", "0,0,1,1")
	_, err := flags.options(cmd)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) || !strings.Contains(err.Error(), "colour") {
		t.Errorf("options() error = %v, want InvalidConfig naming the key", err)
	}
}

func TestNewCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	c := New(io.Discard, LogInfo)

	if got, err := c.newCache(cacheFlags{noCache: true}); err != nil {
		t.Errorf("newCache(noCache) error = %v", err)
	} else if _, ok := got.(cache.NullCache); !ok {
		t.Errorf("newCache(noCache) = %T, want cache.NullCache", got)
	}
	if got, err := c.newCache(cacheFlags{redis: "redis://127.0.0.1:1/0"}); err != nil {
		t.Errorf("newCache(unreachable redis) error = %v", err)
	} else if _, ok := got.(cache.NullCache); !ok {
		t.Errorf("newCache(unreachable redis) = %T, want cache.NullCache", got)
	}
	if _, err := c.newCache(cacheFlags{}); err != nil {
		t.Errorf("newCache(file) error = %v", err)
	}
	if _, err := c.newCache(cacheFlags{redis: "not a url"}); err == nil {
		t.Error("newCache(bad redis url) error = nil")
	}
}

func TestCacheClearCommand(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)
	dir := filepath.Join(xdg, "geomap", "ab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "abcdef.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := New(io.Discard, LogInfo).RootCommand()
	root.SetArgs([]string{"cache", "clear"})
	if err := root.Execute(); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "abcdef.json")); !os.IsNotExist(err) {
		t.Errorf("cache entry still present: %v", err)
	}
}
