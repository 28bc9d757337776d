package render

import (
	"image"
	"testing"

	ui "github.com/gizak/termui/v3"
)

func TestPaletteColor(t *testing.T) {
	if got := paletteColor(-1); got != heatPalette[0] {
		t.Errorf("paletteColor(-1) = %v", got)
	}
	if got := paletteColor(2); got != heatPalette[len(heatPalette)-1] {
		t.Errorf("paletteColor(2) = %v", got)
	}
	if lo, hi := paletteColor(0.2), paletteColor(0.8); lo == hi {
		t.Errorf("distinct levels share colour %v", lo)
	}
}

func TestHeatmapDraw(t *testing.T) {
	h := newHeatmap()
	h.SetRect(0, 0, 12, 6) // inner area is 10×4
	h.levels = [][]float64{
		{0, 0.5}, // lowest frequency, drawn at the bottom
		{1, 0},
	}

	buf := ui.NewBuffer(h.GetRect())
	h.Draw(buf)

	tests := []struct {
		name string
		pt   image.Point
		want ui.Color
	}{
		{"bottom left", image.Pt(h.Inner.Min.X, h.Inner.Max.Y-1), paletteColor(0)},
		{"bottom right", image.Pt(h.Inner.Max.X-1, h.Inner.Max.Y-1), paletteColor(0.5)},
		{"top left", image.Pt(h.Inner.Min.X, h.Inner.Min.Y), paletteColor(1)},
		{"top right", image.Pt(h.Inner.Max.X-1, h.Inner.Min.Y), paletteColor(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buf.GetCell(tt.pt).Style.Bg; got != tt.want {
				t.Errorf("cell %v background = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestHeatmapDrawEmpty(t *testing.T) {
	h := newHeatmap()
	h.SetRect(0, 0, 8, 4)
	buf := ui.NewBuffer(h.GetRect())
	h.Draw(buf) // must not panic without data

	h.levels = [][]float64{{}}
	h.Draw(buf)
}
