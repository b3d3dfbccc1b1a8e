// Package viewport holds the viewer's navigation state and applies commands
// to it. It is the only place that state is mutated.
package viewport

import (
	"fmt"
	"math"
	"sync"

	"github.com/dshills/docview/internal/document"
)

// FitMode is the policy for scaling a page to the viewport.
type FitMode int

const (
	FitPage FitMode = iota
	FitWidth
	FitHeight
	ActualSize
)

func (m FitMode) String() string {
	switch m {
	case FitWidth:
		return "width"
	case FitHeight:
		return "height"
	case ActualSize:
		return "actual"
	default:
		return "page"
	}
}

// ParseFitMode parses "page", "width", "height" or "actual".
func ParseFitMode(s string) (FitMode, error) {
	switch s {
	case "page", "":
		return FitPage, nil
	case "width":
		return FitWidth, nil
	case "height":
		return FitHeight, nil
	case "actual":
		return ActualSize, nil
	}
	return FitPage, fmt.Errorf("unknown fit mode %q", s)
}

// Zoom limits.
const (
	MinZoom         = 0.1
	MaxZoom         = 16.0
	DefaultZoomStep = 1.25
)

// State is a snapshot of the navigation state.
type State struct {
	// Page is the first page shown.
	Page int
	Zoom float64
	// PanX and PanY are offsets in cells into content larger than the
	// viewport.
	PanX, PanY int
	Fit        FitMode
	Direction  document.ReadingDirection
	// MaxAcross limits pages per row; 0 means unlimited.
	MaxAcross int
	Color     document.ColorTransform
}

// DefaultState returns the initial state: first page, fit page, 100%.
func DefaultState() State {
	return State{Zoom: 1, Fit: FitPage}
}

// Viewport owns the navigation state.
type Viewport struct {
	mu sync.RWMutex

	state     State
	pageCount int
	zoomStep  float64

	// Fed back from the last layout.
	pagesShown int
	maxPanX    int
	maxPanY    int
	panBounded bool
}

// New creates a viewport for a document with pageCount pages. The initial
// state is clamped.
func New(initial State, pageCount int) *Viewport {
	v := &Viewport{state: initial, zoomStep: DefaultZoomStep, pagesShown: 1}
	v.setPageCount(pageCount)
	v.state.Zoom = clampZoom(v.state.Zoom)
	v.state.PanX = max(0, v.state.PanX)
	v.state.PanY = max(0, v.state.PanY)
	v.state.MaxAcross = max(0, v.state.MaxAcross)
	return v
}

// State returns a copy of the current state.
func (v *Viewport) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// PageCount returns the number of pages in the current document.
func (v *Viewport) PageCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pageCount
}

// SetZoomStep sets the multiplier used by zoom in/out. Values <= 1 are
// ignored.
func (v *Viewport) SetZoomStep(step float64) {
	if step <= 1 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoomStep = step
}

// SetPageCount updates the page count after a reload and clamps the current
// page into range. It reports whether the state changed.
func (v *Viewport) SetPageCount(n int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	old := v.state
	v.setPageCount(n)
	return old != v.state
}

func (v *Viewport) setPageCount(n int) {
	v.pageCount = max(n, 0)
	last := max(v.pageCount-1, 0)
	v.state.Page = min(max(v.state.Page, 0), last)
}

// SetPagesShown records how many pages the last layout placed. It sizes
// ScrollScreen.
func (v *Viewport) SetPagesShown(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pagesShown = max(n, 1)
}

// ClampPan bounds the pan offset to what the last layout reported as
// reachable and reports whether the offset changed.
func (v *Viewport) ClampPan(maxX, maxY int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.maxPanX, v.maxPanY = max(maxX, 0), max(maxY, 0)
	v.panBounded = true
	x := min(max(v.state.PanX, 0), v.maxPanX)
	y := min(max(v.state.PanY, 0), v.maxPanY)
	changed := x != v.state.PanX || y != v.state.PanY
	v.state.PanX, v.state.PanY = x, y
	return changed
}

// Apply applies cmd and reports whether the state changed. Commands at a
// boundary are no-ops.
func (v *Viewport) Apply(cmd Command) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.state
	s := &v.state
	switch cmd.Kind {
	case CmdScroll:
		v.gotoPage(s.Page + cmd.Delta)
	case CmdScrollScreen:
		v.gotoPage(s.Page + cmd.Delta*v.pagesShown)
	case CmdZoomIn:
		s.Zoom = clampZoom(s.Zoom * v.zoomStep)
	case CmdZoomOut:
		s.Zoom = clampZoom(s.Zoom / v.zoomStep)
	case CmdZoomReset:
		s.Zoom = 1
		s.PanX, s.PanY = 0, 0
	case CmdPan:
		s.PanX = v.clampPanAxis(s.PanX+cmd.DX, v.maxPanX)
		s.PanY = v.clampPanAxis(s.PanY+cmd.DY, v.maxPanY)
	case CmdSetFitMode:
		if s.Fit != cmd.Fit {
			s.Fit = cmd.Fit
			s.PanX, s.PanY = 0, 0
		}
	case CmdGotoPage:
		if cmd.Page >= 0 && cmd.Page < v.pageCount {
			v.gotoPage(cmd.Page)
		}
	case CmdSetDirection:
		s.Direction = cmd.Direction
	case CmdSetMaxAcross:
		s.MaxAcross = max(cmd.Delta, 0)
	case CmdToggleInvert:
		if s.Color.Mode == document.ColorNormal {
			s.Color = document.Inverted
		} else {
			s.Color = document.Normal
		}
	case CmdSetColor:
		s.Color = cmd.Color
	}
	return old != v.state
}

func (v *Viewport) gotoPage(page int) {
	if v.pageCount == 0 {
		return
	}
	page = min(max(page, 0), v.pageCount-1)
	if page != v.state.Page {
		v.state.Page = page
		v.state.PanY = 0
	}
}

func (v *Viewport) clampPanAxis(p, limit int) int {
	p = max(p, 0)
	if v.panBounded {
		p = min(p, limit)
	}
	return p
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return 1
	}
	return math.Min(math.Max(z, MinZoom), MaxZoom)
}
