package document

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle in page space (points, origin at the
// top-left corner of the page).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the width of r.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the height of r.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Intersect returns the overlap of r and o, or the zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		X0: math.Max(r.X0, o.X0),
		Y0: math.Max(r.Y0, o.Y0),
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f)-(%.2f,%.2f)", r.X0, r.Y0, r.X1, r.Y1)
}

// ReadingDirection is the order pages are placed across a row.
type ReadingDirection int

const (
	LeftToRight ReadingDirection = iota
	RightToLeft
)

func (d ReadingDirection) String() string {
	if d == RightToLeft {
		return "rtl"
	}
	return "ltr"
}

// ParseReadingDirection parses "ltr" or "rtl".
func ParseReadingDirection(s string) (ReadingDirection, error) {
	switch s {
	case "ltr", "":
		return LeftToRight, nil
	case "rtl":
		return RightToLeft, nil
	}
	return LeftToRight, fmt.Errorf("unknown reading direction %q", s)
}

// PageDescriptor is the immutable per-version record of one page.
type PageDescriptor struct {
	Index     int
	Width     float64
	Height    float64
	Direction ReadingDirection
}

// Bounds returns the full page rectangle.
func (p PageDescriptor) Bounds() Rect {
	return Rect{X1: p.Width, Y1: p.Height}
}

// RenderKey identifies one rendering of one page. Two requests with equal
// keys are the same logical job and share one cache entry.
type RenderKey struct {
	// Version is the document version the page belongs to.
	Version uint64
	Page    int
	Width   int
	Height  int
	Crop    Rect
	Color   ColorTransform
}

func (k RenderKey) String() string {
	return fmt.Sprintf("v%d/p%d/%dx%d/%s/%s", k.Version, k.Page, k.Width, k.Height, k.Crop, k.Color)
}

// SamePage reports whether k and o render the same page of the same version.
func (k RenderKey) SamePage(o RenderKey) bool {
	return k.Version == o.Version && k.Page == o.Page
}

// Bytes is the size of the RGBA buffer a key produces.
func (k RenderKey) Bytes() int {
	return k.Width * k.Height * 4
}
