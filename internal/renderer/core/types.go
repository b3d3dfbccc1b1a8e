// Package core provides the screen types shared by the backend, the
// graphics displays and the layout engine.
package core

import "fmt"

// Color is a true color or the terminal default.
type Color struct {
	R, G, B uint8
	// Default indicates the terminal's default color.
	Default bool
}

// ColorDefault represents the terminal's default color.
var ColorDefault = Color{Default: true}

// Status and placeholder colors.
var (
	ColorRed  = Color{R: 205, G: 49, B: 49}
	ColorGray = Color{R: 128, G: 128, B: 128}
)

// ColorFromRGB creates a true color.
func ColorFromRGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

func (c Color) String() string {
	if c.Default {
		return "default"
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Style is the visual style of a cell. Bitmaps only need colors; the status
// bars use bold and reverse video.
type Style struct {
	Foreground Color
	Background Color
	Bold       bool
	Reverse    bool
}

// DefaultStyle returns the default terminal style.
func DefaultStyle() Style {
	return Style{Foreground: ColorDefault, Background: ColorDefault}
}

// WithForeground returns a copy of s with fg set.
func (s Style) WithForeground(fg Color) Style {
	s.Foreground = fg
	return s
}

// WithColors returns a copy of s painted fg on bg.
func (s Style) WithColors(fg, bg Color) Style {
	s.Foreground, s.Background = fg, bg
	return s
}

// AsBold returns a bold copy of s.
func (s Style) AsBold() Style {
	s.Bold = true
	return s
}

// AsReverse returns a reverse-video copy of s.
func (s Style) AsReverse() Style {
	s.Reverse = true
	return s
}

// Cell is a single terminal cell.
type Cell struct {
	Rune  rune
	Style Style
}

// EmptyCell returns a blank cell with the default style.
func EmptyCell() Cell {
	return Cell{Rune: ' ', Style: DefaultStyle()}
}

// ScreenRect is a half-open rectangle of terminal cells.
type ScreenRect struct {
	Top, Left     int
	Bottom, Right int
}

// RectFromSize creates a rectangle from position and size.
func RectFromSize(top, left, height, width int) ScreenRect {
	return ScreenRect{Top: top, Left: left, Bottom: top + height, Right: left + width}
}

// Width is zero for inverted rectangles.
func (r ScreenRect) Width() int { return max(0, r.Right-r.Left) }

// Height is zero for inverted rectangles.
func (r ScreenRect) Height() int { return max(0, r.Bottom-r.Top) }

// IsEmpty reports whether the rectangle covers no cells.
func (r ScreenRect) IsEmpty() bool {
	return r.Width() == 0 || r.Height() == 0
}

// Translate moves the rectangle by the given offsets.
func (r ScreenRect) Translate(dRow, dCol int) ScreenRect {
	return ScreenRect{Top: r.Top + dRow, Left: r.Left + dCol, Bottom: r.Bottom + dRow, Right: r.Right + dCol}
}

// Intersection returns the overlap of r and other, or the zero rectangle.
func (r ScreenRect) Intersection(other ScreenRect) ScreenRect {
	out := ScreenRect{
		Top:    max(r.Top, other.Top),
		Left:   max(r.Left, other.Left),
		Bottom: min(r.Bottom, other.Bottom),
		Right:  min(r.Right, other.Right),
	}
	if out.IsEmpty() {
		return ScreenRect{}
	}
	return out
}

// Each calls fn for every cell in r, row by row.
func (r ScreenRect) Each(fn func(row, col int)) {
	for y := r.Top; y < r.Bottom; y++ {
		for x := r.Left; x < r.Right; x++ {
			fn(y, x)
		}
	}
}

func (r ScreenRect) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.Top, r.Left, r.Width(), r.Height())
}
