package graphics

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/docview/internal/renderer/backend"
	"github.com/dshills/docview/internal/renderer/core"
)

func TestSelect(t *testing.T) {
	s := backend.NewNullBackend(10, 5)
	s.Init()

	d, err := Select("halfblock", s, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name() != "halfblock" {
		t.Errorf("Name() = %q", d.Name())
	}
	if w, h := d.CellSize(); w != DefaultCellWidth || h != DefaultCellHeight {
		t.Errorf("CellSize() = (%d, %d), want defaults", w, h)
	}

	d, err = Select("none", s, 9, 18)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := d.CellSize(); w != 9 || h != 18 {
		t.Errorf("CellSize() = (%d, %d), want (9, 18)", w, h)
	}

	if _, err := Select("sixel", s, 0, 0); !errors.Is(err, ErrUnknownProtocol) {
		t.Errorf("err = %v, want ErrUnknownProtocol", err)
	}
	if diff := cmp.Diff([]string{"halfblock", "none"}, Protocols()); diff != "" {
		t.Errorf("Protocols() mismatch:\n%s", diff)
	}
}

func TestHalfBlockDraw(t *testing.T) {
	s := backend.NewNullBackend(6, 4)
	s.Init()
	d := NewHalfBlock(s, 8, 16)

	// Top half red, bottom half blue.
	img := image.NewRGBA(image.Rect(0, 0, 2, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			c := color.RGBA{R: 255, A: 255}
			if y >= 2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	rect := core.RectFromSize(1, 1, 2, 2)
	if err := d.Draw(img, rect); err != nil {
		t.Fatal(err)
	}

	top := s.Cell(1, 1)
	if top.Rune != upperHalf {
		t.Fatalf("rune = %q", top.Rune)
	}
	if top.Style.Foreground != core.ColorFromRGB(255, 0, 0) {
		t.Errorf("top fg = %v, want red", top.Style.Foreground)
	}
	bottom := s.Cell(2, 2)
	if bottom.Style.Background != core.ColorFromRGB(0, 0, 255) {
		t.Errorf("bottom bg = %v, want blue", bottom.Style.Background)
	}
	if got := s.Cell(0, 0); got != core.EmptyCell() {
		t.Errorf("cell outside rect = %+v", got)
	}

	d.Clear(rect)
	if got := s.Cell(1, 1); got != core.EmptyCell() {
		t.Errorf("cell after Clear = %+v", got)
	}
}

func TestHalfBlockEmptyRect(t *testing.T) {
	s := backend.NewNullBackend(4, 4)
	s.Init()
	d := NewHalfBlock(s, 8, 16)
	if err := d.Draw(image.NewRGBA(image.Rect(0, 0, 4, 4)), core.ScreenRect{}); err != nil {
		t.Fatal(err)
	}
}

func TestHighlight(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	out := Highlight(img, []image.Rectangle{image.Rect(2, 2, 4, 4), image.Rect(50, 50, 60, 60)}, color.NRGBA{B: 255, A: 255})
	if out == img {
		t.Fatal("Highlight modified in place")
	}
	if got := out.RGBAAt(3, 3); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("highlighted pixel = %v", got)
	}
	if got := out.RGBAAt(0, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("untouched pixel = %v", got)
	}
	if got := img.RGBAAt(3, 3); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("source modified: %v", got)
	}

	if Highlight(img, nil, HighlightColor) != img {
		t.Error("no boxes should return the source")
	}
}
