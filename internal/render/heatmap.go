package render

import (
	"image"

	ui "github.com/gizak/termui/v3"
)

// heatPalette runs from silence to the loudest cell through the xterm
// 256-colour cube.
var heatPalette = []ui.Color{
	16, 17, 18, 19, 20, 21, 57, 93, 129, 165, 201,
	200, 199, 198, 197, 196, 202, 208, 214, 220, 226,
	227, 228, 229, 230, 231,
}

// heatmap draws a grid of normalized levels as coloured cells, lowest
// frequency at the bottom and earliest time on the left.
type heatmap struct {
	ui.Block
	levels [][]float64 // [freq][time], each in [0, 1]
}

func newHeatmap() *heatmap {
	return &heatmap{Block: *ui.NewBlock()}
}

func paletteColor(level float64) ui.Color {
	switch {
	case level <= 0:
		return heatPalette[0]
	case level >= 1:
		return heatPalette[len(heatPalette)-1]
	}
	return heatPalette[int(level*float64(len(heatPalette)-1)+0.5)]
}

func (h *heatmap) Draw(buf *ui.Buffer) {
	h.Block.Draw(buf)

	rows := len(h.levels)
	if rows == 0 || len(h.levels[0]) == 0 {
		return
	}
	cols := len(h.levels[0])
	width, height := h.Inner.Dx(), h.Inner.Dy()
	if width <= 0 || height <= 0 {
		return
	}

	for y := range height {
		r := (height - 1 - y) * rows / height
		for x := range width {
			c := x * cols / width
			cell := ui.NewCell(' ', ui.NewStyle(ui.ColorClear, paletteColor(h.levels[r][c])))
			buf.SetCell(cell, image.Pt(h.Inner.Min.X+x, h.Inner.Min.Y+y))
		}
	}
}
