package cli

import (
	"image/color"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/geomap/pkg/raster"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, w, h int) PreviewModel {
	t.Helper()
	m, _ := NewPreviewModel(raster.New(w, h)).Update(tea.WindowSizeMsg{Width: 5, Height: 3})
	return m.(PreviewModel)
}

func TestPreviewFit(t *testing.T) {
	m := sized(t, 10, 10)
	// 5 columns and 2 map rows of two pixels each
	if m.scale != 3 {
		t.Errorf("scale = %d, want 3", m.scale)
	}
	if m.width != 5 || m.height != 2 {
		t.Errorf("viewport = %dx%d, want 5x2", m.width, m.height)
	}
}

func TestPreviewKeys(t *testing.T) {
	tests := []struct {
		name      string
		keys      []tea.KeyMsg
		wantScale int
		wantX     int
		wantY     int
	}{
		{"zoom in", []tea.KeyMsg{runes("+")}, 1, 0, 0},
		{"zoom in then pan right", []tea.KeyMsg{runes("+"), runes("l")}, 1, 4, 0},
		{"pan clamps at origin", []tea.KeyMsg{runes("+"), {Type: tea.KeyLeft}}, 1, 0, 0},
		{"pan down clamps at edge", []tea.KeyMsg{runes("+"), runes("+"), {Type: tea.KeyDown}, {Type: tea.KeyDown}}, 1, 0, 6},
		{"refit", []tea.KeyMsg{runes("+"), runes("l"), runes("0")}, 3, 0, 0},
		{"zoom out", []tea.KeyMsg{runes("-")}, 6, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var model tea.Model = sized(t, 10, 10)
			for _, k := range tt.keys {
				model, _ = model.Update(k)
			}
			m := model.(PreviewModel)
			if m.scale != tt.wantScale || m.offsetX != tt.wantX || m.offsetY != tt.wantY {
				t.Errorf("scale=%d offset=(%d,%d), want scale=%d offset=(%d,%d)",
					m.scale, m.offsetX, m.offsetY, tt.wantScale, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestPreviewQuit(t *testing.T) {
	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		if _, cmd := sized(t, 4, 4).Update(k); cmd == nil {
			t.Errorf("key %q returned no command", k.String())
		}
	}
}

func TestPreviewSampleKeepsThinStrokes(t *testing.T) {
	c := raster.New(6, 6)
	red := color.RGBA{R: 255, A: 255}
	c.Set(1, 1, red)
	m := sized(t, 6, 6)
	m.canvas = c

	if m.scale != 2 {
		t.Fatalf("scale = %d, want 2", m.scale)
	}
	if got := m.sample(0, 0); got != red {
		t.Errorf("sample(0,0) = %v, want %v", got, red)
	}
	if got := m.sample(2, 2); got != raster.Background {
		t.Errorf("sample(3,3) = %v, want background", got)
	}
}

func TestPreviewView(t *testing.T) {
	view := sized(t, 10, 10).View()
	lines := strings.Split(view, "\n")
	if len(lines) != 3 {
		t.Fatalf("view has %d lines, want 2 map rows and a status line", len(lines))
	}
	if !strings.Contains(lines[2], "10x10 px") || !strings.Contains(lines[2], "1:3") {
		t.Errorf("status line = %q", lines[2])
	}
}

func TestHexColor(t *testing.T) {
	if got := hexColor(color.RGBA{R: 255, G: 128, B: 1, A: 255}); got != "#ff8001" {
		t.Errorf("hexColor = %q", got)
	}
}
