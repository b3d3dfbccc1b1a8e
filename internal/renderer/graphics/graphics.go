// Package graphics puts page bitmaps on the terminal. Each protocol is one
// Display implementation, selected once at startup.
package graphics

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/dshills/docview/internal/renderer/core"
)

// ErrUnknownProtocol is returned by Select for unsupported names.
var ErrUnknownProtocol = errors.New("unknown graphics protocol")

// Default cell pixel size used when the terminal does not report one.
const (
	DefaultCellWidth  = 8
	DefaultCellHeight = 16
)

// Surface is the cell grid a display draws on. backend.Backend satisfies it.
type Surface interface {
	SetCell(x, y int, cell core.Cell)
	Fill(rect core.ScreenRect, cell core.Cell)
}

// Display draws bitmaps into cell rectangles.
type Display interface {
	// Name returns the protocol name.
	Name() string

	// CellSize returns the pixel size of one cell. Layout sizes render
	// keys with it.
	CellSize() (width, height int)

	// Draw scales img to fill rect.
	Draw(img image.Image, rect core.ScreenRect) error

	// Clear blanks rect.
	Clear(rect core.ScreenRect)
}

type constructor func(s Surface, cellW, cellH int) Display

var protocols = map[string]constructor{
	"halfblock": func(s Surface, w, h int) Display { return NewHalfBlock(s, w, h) },
	"none":      func(s Surface, w, h int) Display { return NewNull(w, h) },
}

// Protocols returns the supported protocol names.
func Protocols() []string {
	names := make([]string, 0, len(protocols))
	for name := range protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the display for name. Zero cell sizes fall back to the
// defaults.
func Select(name string, s Surface, cellW, cellH int) (Display, error) {
	ctor, ok := protocols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	if cellW <= 0 || cellH <= 0 {
		cellW, cellH = DefaultCellWidth, DefaultCellHeight
	}
	return ctor(s, cellW, cellH), nil
}

// Null draws nothing. It records the rectangles it was asked to draw.
type Null struct {
	cellW, cellH int
	Draws        []core.ScreenRect
}

// NewNull creates a null display.
func NewNull(cellW, cellH int) *Null {
	return &Null{cellW: cellW, cellH: cellH}
}

func (n *Null) Name() string { return "none" }

func (n *Null) CellSize() (int, int) { return n.cellW, n.cellH }

func (n *Null) Draw(_ image.Image, rect core.ScreenRect) error {
	n.Draws = append(n.Draws, rect)
	return nil
}

func (n *Null) Clear(core.ScreenRect) {}
