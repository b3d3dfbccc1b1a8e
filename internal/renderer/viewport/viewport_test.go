package viewport

import (
	"testing"

	"github.com/dshills/docview/internal/document"
)

func TestNewClampsState(t *testing.T) {
	v := New(State{Page: 50, Zoom: -3, PanX: -1, MaxAcross: -2}, 10)
	s := v.State()
	if s.Page != 9 {
		t.Errorf("Page = %d, want 9", s.Page)
	}
	if s.Zoom != 1 {
		t.Errorf("Zoom = %v, want 1", s.Zoom)
	}
	if s.PanX != 0 || s.MaxAcross != 0 {
		t.Errorf("state = %+v", s)
	}
}

func TestScrollBoundaries(t *testing.T) {
	v := New(DefaultState(), 3)

	if v.Apply(Scroll(-1)) {
		t.Error("scrolling before first page reported a change")
	}
	if !v.Apply(Scroll(1)) {
		t.Error("scroll forward reported no change")
	}
	if !v.Apply(Scroll(5)) {
		t.Error("scroll clamped to last page reported no change")
	}
	if got := v.State().Page; got != 2 {
		t.Errorf("Page = %d, want 2", got)
	}
	if v.Apply(Scroll(1)) {
		t.Error("scrolling past last page reported a change")
	}
}

func TestScrollScreenUsesPagesShown(t *testing.T) {
	v := New(DefaultState(), 10)
	v.SetPagesShown(3)
	v.Apply(ScrollScreen(1))
	if got := v.State().Page; got != 3 {
		t.Errorf("Page = %d, want 3", got)
	}
	v.Apply(ScrollScreen(-1))
	if got := v.State().Page; got != 0 {
		t.Errorf("Page = %d, want 0", got)
	}
}

func TestZoomLimits(t *testing.T) {
	v := New(DefaultState(), 1)
	v.SetZoomStep(2)

	if !v.Apply(ZoomIn()) {
		t.Fatal("zoom in reported no change")
	}
	if got := v.State().Zoom; got != 2 {
		t.Errorf("Zoom = %v, want 2", got)
	}
	for i := 0; i < 10; i++ {
		v.Apply(ZoomIn())
	}
	if got := v.State().Zoom; got != MaxZoom {
		t.Errorf("Zoom = %v, want %v", got, MaxZoom)
	}
	if v.Apply(ZoomIn()) {
		t.Error("zoom in at max reported a change")
	}
	for i := 0; i < 20; i++ {
		v.Apply(ZoomOut())
	}
	if got := v.State().Zoom; got != MinZoom {
		t.Errorf("Zoom = %v, want %v", got, MinZoom)
	}
	if !v.Apply(ZoomReset()) || v.State().Zoom != 1 {
		t.Errorf("ZoomReset left zoom at %v", v.State().Zoom)
	}
	if v.Apply(ZoomReset()) {
		t.Error("second ZoomReset reported a change")
	}
}

func TestZoomAlwaysPositive(t *testing.T) {
	v := New(DefaultState(), 1)
	v.SetZoomStep(0.5)
	v.SetZoomStep(-1)
	for i := 0; i < 100; i++ {
		v.Apply(ZoomOut())
		if z := v.State().Zoom; z <= 0 {
			t.Fatalf("Zoom = %v after %d zoom outs", z, i+1)
		}
	}
}

func TestPanClamping(t *testing.T) {
	v := New(DefaultState(), 1)

	if v.Apply(Pan(-5, 0)) {
		t.Error("panning left of origin reported a change")
	}
	if !v.Apply(Pan(10, 4)) {
		t.Error("pan reported no change")
	}

	if !v.ClampPan(6, 2) {
		t.Error("ClampPan reported no change")
	}
	s := v.State()
	if s.PanX != 6 || s.PanY != 2 {
		t.Errorf("pan = (%d,%d), want (6,2)", s.PanX, s.PanY)
	}
	if v.Apply(Pan(1, 1)) {
		t.Error("pan past bounds reported a change")
	}
	if v.ClampPan(6, 2) {
		t.Error("repeated ClampPan reported a change")
	}
}

func TestGotoPage(t *testing.T) {
	v := New(DefaultState(), 5)
	if !v.Apply(GotoPage(3)) {
		t.Error("goto reported no change")
	}
	if v.Apply(GotoPage(3)) {
		t.Error("goto current page reported a change")
	}
	if v.Apply(GotoPage(5)) || v.Apply(GotoPage(-1)) {
		t.Error("goto out of range reported a change")
	}
	if got := v.State().Page; got != 3 {
		t.Errorf("Page = %d, want 3", got)
	}
}

func TestSetters(t *testing.T) {
	v := New(DefaultState(), 2)
	tests := []struct {
		name string
		cmd  Command
		want bool
	}{
		{"fit width", SetFitMode(FitWidth), true},
		{"fit width again", SetFitMode(FitWidth), false},
		{"rtl", SetDirection(document.RightToLeft), true},
		{"rtl again", SetDirection(document.RightToLeft), false},
		{"max across", SetMaxAcross(2), true},
		{"negative max across", SetMaxAcross(-4), true},
		{"invert", ToggleInvert(), true},
		{"custom color", SetColor(document.Custom(document.RGB{R: 1}, document.RGB{B: 1})), true},
		{"invert from custom", ToggleInvert(), true},
	}
	for _, tt := range tests {
		if got := v.Apply(tt.cmd); got != tt.want {
			t.Errorf("%s: Apply = %v, want %v", tt.name, got, tt.want)
		}
	}
	s := v.State()
	if s.Fit != FitWidth || s.Direction != document.RightToLeft || s.MaxAcross != 0 || s.Color != document.Normal {
		t.Errorf("state = %+v", s)
	}
}

func TestSetPageCountClamps(t *testing.T) {
	v := New(State{Page: 8, Zoom: 1}, 10)
	if !v.SetPageCount(4) {
		t.Error("shrinking page count reported no change")
	}
	if got := v.State().Page; got != 3 {
		t.Errorf("Page = %d, want 3", got)
	}
	if v.SetPageCount(20) {
		t.Error("growing page count reported a change")
	}
}

func TestParseFitMode(t *testing.T) {
	for _, m := range []FitMode{FitPage, FitWidth, FitHeight, ActualSize} {
		got, err := ParseFitMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseFitMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseFitMode("stretch"); err == nil {
		t.Error("expected error")
	}
}
