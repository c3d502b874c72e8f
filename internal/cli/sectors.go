package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

// sectorsCommand creates the sectors command, which prints the fetch grid
// for a bounding box without downloading anything.
func (c *CLI) sectorsCommand() *cobra.Command {
	var bbox string
	var pixelLimit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sectors",
		Short: "Print the sector grid for a bounding box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := parseBBox(bbox)
			if err != nil {
				return err
			}
			sectors, err := geo.Sectorize(box, pixelLimit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sectors)
			}

			w, h := geo.Size(box)
			printKeyValue("raster", fmt.Sprintf("%dx%d px", w, h))
			printKeyValue("sectors", strconv.Itoa(len(sectors)))
			fmt.Println(sectorTable(sectors))
			return nil
		},
	}

	cmd.Flags().StringVarP(&bbox, "bbox", "b", "", "bounding box: minlon,minlat,maxlon,maxlat")
	cmd.Flags().IntVar(&pixelLimit, "pixel-limit", pipeline.DefaultPixelLimit, "largest sector edge in pixels")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sectors as JSON")
	return cmd
}

func sectorTable(sectors []geo.Sector) string {
	rows := make([][]string, len(sectors))
	for i, s := range sectors {
		w, h := geo.Size(s)
		rows[i] = []string{
			strconv.Itoa(i),
			formatCoord(s.MinLon), formatCoord(s.MinLat),
			formatCoord(s.MaxLon), formatCoord(s.MaxLat),
			fmt.Sprintf("%dx%d", w, h),
		}
	}
	header := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("#", "min lon", "min lat", "max lon", "max lat", "px").
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
