package graphics

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/dshills/docview/internal/renderer/core"
)

// upperHalf is drawn with the upper pixel as foreground and the lower
// pixel as background, giving two pixels per cell vertically.
const upperHalf = '▀'

// HalfBlock renders bitmaps with Unicode half blocks.
type HalfBlock struct {
	surface      Surface
	cellW, cellH int
	scaler       xdraw.Scaler
	buf          *image.RGBA
}

// NewHalfBlock creates a half-block display.
func NewHalfBlock(s Surface, cellW, cellH int) *HalfBlock {
	return &HalfBlock{surface: s, cellW: cellW, cellH: cellH, scaler: xdraw.ApproxBiLinear}
}

func (h *HalfBlock) Name() string { return "halfblock" }

func (h *HalfBlock) CellSize() (int, int) { return h.cellW, h.cellH }

func (h *HalfBlock) Draw(img image.Image, rect core.ScreenRect) error {
	cols, rows := rect.Width(), rect.Height()
	if cols == 0 || rows == 0 || img.Bounds().Empty() {
		return nil
	}

	target := image.Rect(0, 0, cols, rows*2)
	if h.buf == nil || h.buf.Bounds() != target {
		h.buf = image.NewRGBA(target)
	}
	h.scaler.Scale(h.buf, target, img, img.Bounds(), xdraw.Src, nil)

	rect.Each(func(row, col int) {
		x, y := col-rect.Left, 2*(row-rect.Top)
		style := core.DefaultStyle().WithColors(pixel(h.buf, x, y), pixel(h.buf, x, y+1))
		h.surface.SetCell(col, row, core.Cell{Rune: upperHalf, Style: style})
	})
	return nil
}

func (h *HalfBlock) Clear(rect core.ScreenRect) {
	h.surface.Fill(rect, core.EmptyCell())
}

func pixel(img *image.RGBA, x, y int) core.Color {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return core.ColorFromRGB(p[0], p[1], p[2])
}
