package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/loader"
	"github.com/matzehuels/geomap/pkg/locate"
	"github.com/matzehuels/geomap/pkg/mask"
	"github.com/matzehuels/geomap/pkg/pipeline"
	"github.com/matzehuels/geomap/pkg/raster"
)

// locateFlags holds the command-line flags for the locate command.
type locateFlags struct {
	lon, lat  float64
	eps       float64
	out       string
	bins      int
	mongoURI  string
	mongoDB   string
	mongoColl string
	asJSON    bool
}

// locateCommand creates the locate command, which estimates the current
// position from observed object masks.
func (c *CLI) locateCommand() *cobra.Command {
	var f locateFlags

	cmd := &cobra.Command{
		Use:   "locate <mask.png>...",
		Short: "Estimate a position by matching object masks against stored ones",
		Long: `Locate embeds each given object mask and compares it with the stored masks
lying within --eps degrees of the previous position (--lon, --lat). Every
object takes the location of its most similar stored mask by L1 distance; the
new position is the mean of those locations. Without any match the previous
position is printed unchanged.

Stored masks are read from MongoDB (--mongo) or straight from a render
output directory (--out).`,
		Example: `  geomap locate frame/0.png frame/1.png --lon 30.31 --lat 59.94 --out spb
  geomap locate obj.png --lon 30.31 --lat 59.94 --mongo mongodb://localhost:27017`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.runLocate(cmd.Context(), f, args)
			if err != nil {
				return err
			}
			if f.asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printLocation(res)
			return nil
		},
	}

	cmd.Flags().Float64Var(&f.lon, "lon", 0, "previous longitude")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "previous latitude")
	cmd.Flags().Float64Var(&f.eps, "eps", locate.DefaultEps, "search half-width in degrees")
	cmd.Flags().StringVarP(&f.out, "out", "o", pipeline.DefaultOutDir, "render output directory holding images/")
	cmd.Flags().IntVar(&f.bins, "bins", loader.DefaultBins, "histogram bins per color channel")
	cmd.Flags().StringVar(&f.mongoURI, "mongo", "", "MongoDB connection URI")
	cmd.Flags().StringVar(&f.mongoDB, "mongo-db", "geomap", "MongoDB database")
	cmd.Flags().StringVar(&f.mongoColl, "mongo-collection", loader.DefaultMongoCollection, "MongoDB collection")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the result as JSON")
	cmd.MarkFlagRequired("lon")
	cmd.MarkFlagRequired("lat")
	return cmd
}

func (c *CLI) runLocate(ctx context.Context, f locateFlags, paths []string) (locate.Result, error) {
	objects, err := readMasks(paths)
	if err != nil {
		return locate.Result{}, err
	}

	embedder := loader.NewHistogramEmbedder(f.bins)
	var index locate.Index
	if f.mongoURI != "" {
		sink, err := loader.NewMongoSink(ctx, f.mongoURI, f.mongoDB, f.mongoColl)
		if err != nil {
			return locate.Result{}, err
		}
		defer sink.Close(context.WithoutCancel(ctx))
		index = sink
	} else {
		index = locate.NewDirIndex(mask.NewDirStore(f.out), embedder, c.Logger)
	}

	return locate.New(index, embedder, f.eps, c.Logger).Locate(ctx, objects, f.lon, f.lat)
}

func readMasks(paths []string) ([]*raster.Canvas, error) {
	out := make([]*raster.Canvas, 0, len(paths))
	for _, p := range paths {
		file, err := os.Open(p)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", p)
		}
		c, err := raster.DecodePNG(file)
		file.Close()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s", p)
		}
		out = append(out, c)
	}
	return out, nil
}

func printLocation(res locate.Result) {
	printKeyValue("position", formatCoord(res.Lon)+" "+formatCoord(res.Lat))
	printKeyValue("recognized", fmt.Sprintf("%d of %d", res.Recognized(), res.Objects))
	printKeyValue("candidates", strconv.Itoa(res.Candidates))
	if res.Recognized() == 0 {
		printWarning("no stored mask matched, position unchanged")
		return
	}
	fmt.Println(matchTable(res.Matches))
}

func matchTable(matches []locate.Match) string {
	rows := make([][]string, len(matches))
	for i, m := range matches {
		rows[i] = []string{
			strconv.Itoa(m.Object),
			m.Record.Category,
			formatCoord(m.Record.Lon),
			formatCoord(m.Record.Lat),
			strconv.FormatFloat(m.Distance, 'f', 4, 64),
		}
	}
	header := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("object", "key", "lon", "lat", "L1").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return header
			}
			if col == 0 {
				return StyleDim
			}
			return lipgloss.NewStyle()
		}).
		Render()
}
