package cli

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/raster"
)

// previewCommand creates the preview command, which shows a raster in the
// terminal using half-block cells.
func (c *CLI) previewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <png>",
		Short: "Show a rendered raster in the terminal",
		Long: `Preview draws a rendered raster with one terminal cell per two vertical
pixel blocks. Pan with the arrow keys or hjkl, zoom with + and -, fit with 0
and quit with q.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			canvas, err := raster.DecodePNG(f)
			f.Close()
			if err != nil {
				return err
			}
			p := tea.NewProgram(NewPreviewModel(canvas), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
}

// PreviewModel is the bubbletea model for the raster preview.
type PreviewModel struct {
	canvas  *raster.Canvas
	width   int // terminal columns
	height  int // terminal rows available for the map
	scale   int // raster pixels per cell edge
	offsetX int // raster pixel at the left edge
	offsetY int // raster pixel at the top edge
	fitted  bool
}

// NewPreviewModel creates a preview of canvas.
func NewPreviewModel(canvas *raster.Canvas) PreviewModel {
	return PreviewModel{canvas: canvas, width: 80, height: 23, scale: 1, fitted: true}
}

func (m PreviewModel) Init() tea.Cmd {
	return nil
}

func (m PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 1)
		m.height = max(msg.Height-1, 1)
		if m.fitted {
			m.fit()
		}
	case tea.KeyMsg:
		step := 4 * m.scale
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			m.offsetX -= step
		case "right", "l":
			m.offsetX += step
		case "up", "k":
			m.offsetY -= 2 * step
		case "down", "j":
			m.offsetY += 2 * step
		case "+", "=":
			if m.scale > 1 {
				m.scale /= 2
				m.fitted = false
			}
		case "-", "_":
			m.scale *= 2
			m.fitted = false
		case "0":
			m.fitted = true
			m.fit()
		}
		m.clamp()
	}
	return m, nil
}

// fit picks the smallest scale that shows the whole raster.
func (m *PreviewModel) fit() {
	w, h := m.canvas.Width(), m.canvas.Height()
	m.scale = max(ceilDiv(w, m.width), ceilDiv(h, 2*m.height), 1)
	m.offsetX, m.offsetY = 0, 0
}

func (m *PreviewModel) clamp() {
	maxX := max(m.canvas.Width()-m.width*m.scale, 0)
	maxY := max(m.canvas.Height()-2*m.height*m.scale, 0)
	m.offsetX = min(max(m.offsetX, 0), maxX)
	m.offsetY = min(max(m.offsetY, 0), maxY)
}

func (m PreviewModel) View() string {
	var b strings.Builder
	for row := 0; row < m.height; row++ {
		y := m.offsetY + 2*row*m.scale
		if y >= m.canvas.Height() {
			break
		}
		for col := 0; col < m.width; col++ {
			x := m.offsetX + col*m.scale
			if x >= m.canvas.Width() {
				break
			}
			top := m.sample(x, y)
			bottom := m.sample(x, y+m.scale)
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bottom))).
				Render("▀"))
		}
		b.WriteString("\n")
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("%dx%d px  1:%d  @%d,%d  arrows/hjkl pan  +/- zoom  0 fit  q quit",
		m.canvas.Width(), m.canvas.Height(), m.scale, m.offsetX, m.offsetY)))
	return b.String()
}

// sample returns the first painted pixel of the scale×scale block at (x, y)
// so that thin strokes survive downsampling.
func (m PreviewModel) sample(x, y int) color.RGBA {
	for dy := 0; dy < m.scale; dy++ {
		for dx := 0; dx < m.scale; dx++ {
			if !m.canvas.IsBackground(x+dx, y+dy) {
				return m.canvas.At(x+dx, y+dy)
			}
		}
	}
	return raster.Background
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
