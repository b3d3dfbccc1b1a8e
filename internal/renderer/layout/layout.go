// Package layout computes where pages go on screen and what to render for
// them. Everything here is a pure function of its inputs.
package layout

import (
	"image"
	"math"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/renderer/core"
	"github.com/dshills/docview/internal/renderer/viewport"
)

// Terminal describes the page area in cells and the pixel size of a cell.
type Terminal struct {
	Cols, Rows            int
	CellWidth, CellHeight int
}

// Valid reports whether the terminal has a usable area.
func (t Terminal) Valid() bool {
	return t.Cols > 0 && t.Rows > 0 && t.CellWidth > 0 && t.CellHeight > 0
}

func (t Terminal) pixelWidth() float64  { return float64(t.Cols * t.CellWidth) }
func (t Terminal) pixelHeight() float64 { return float64(t.Rows * t.CellHeight) }

// Placement is one visible page.
type Placement struct {
	Page   int
	Screen core.ScreenRect
	Key    document.RenderKey
}

// Result is the output of Compute.
type Result struct {
	Placements []Placement
	// PanX and PanY are the clamped pan offsets the placements use.
	PanX, PanY int
	// MaxPanX and MaxPanY bound the pan offset at the current scale.
	MaxPanX, MaxPanY int
	PagesShown       int
}

// Keys returns the render keys of all placements in order.
func (r Result) Keys() []document.RenderKey {
	keys := make([]document.RenderKey, len(r.Placements))
	for i, p := range r.Placements {
		keys[i] = p.Key
	}
	return keys
}

// Contains reports whether page is placed.
func (r Result) Contains(page int) bool {
	for _, p := range r.Placements {
		if p.Page == page {
			return true
		}
	}
	return false
}

type measure struct {
	page       document.PageDescriptor
	scale      float64
	wPx, hPx   int
	cols, rows int
}

// Scale returns the pixels-per-point scale for page under st.
func Scale(st viewport.State, term Terminal, page document.PageDescriptor) float64 {
	if page.Width <= 0 || page.Height <= 0 {
		return 1
	}
	var base float64
	switch st.Fit {
	case viewport.FitWidth:
		base = term.pixelWidth() / page.Width
	case viewport.FitHeight:
		base = term.pixelHeight() / page.Height
	case viewport.ActualSize:
		base = 1
	default:
		base = math.Min(term.pixelWidth()/page.Width, term.pixelHeight()/page.Height)
	}
	zoom := st.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return base * zoom
}

func measurePage(st viewport.State, term Terminal, page document.PageDescriptor) measure {
	scale := Scale(st, term, page)
	w := max(1, int(math.Round(page.Width*scale)))
	h := max(1, int(math.Round(page.Height*scale)))
	return measure{
		page:  page,
		scale: scale,
		wPx:   w,
		hPx:   h,
		cols:  ceilDiv(w, term.CellWidth),
		rows:  ceilDiv(h, term.CellHeight),
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Compute lays out the pages starting at st.Page.
func Compute(st viewport.State, term Terminal, pages []document.PageDescriptor, version uint64) Result {
	if len(pages) == 0 || !term.Valid() {
		return Result{}
	}
	first := min(max(st.Page, 0), len(pages)-1)
	m := measurePage(st, term, pages[first])
	if m.cols > term.Cols || m.rows > term.Rows {
		return computeOversized(st, term, m, version)
	}

	type row struct {
		items      []measure
		cols, rows int
	}
	var rows []row
	used := 0
	for p := first; p < len(pages); {
		var r row
		for p < len(pages) && (st.MaxAcross == 0 || len(r.items) < st.MaxAcross) {
			pm := m
			if p != first {
				pm = measurePage(st, term, pages[p])
			}
			if pm.cols > term.Cols || pm.rows > term.Rows {
				break
			}
			if len(r.items) > 0 && r.cols+pm.cols > term.Cols {
				break
			}
			r.items = append(r.items, pm)
			r.cols += pm.cols
			r.rows = max(r.rows, pm.rows)
			p++
		}
		if len(r.items) == 0 || (len(rows) > 0 && used+r.rows > term.Rows) {
			break
		}
		rows = append(rows, r)
		used += r.rows
	}

	res := Result{}
	y := (term.Rows - used) / 2
	for _, r := range rows {
		x := (term.Cols - r.cols) / 2
		if st.Direction == document.RightToLeft {
			x = term.Cols - x
		}
		for _, it := range r.items {
			top := y + (r.rows-it.rows)/2
			left := x
			if st.Direction == document.RightToLeft {
				left = x - it.cols
				x -= it.cols
			} else {
				x += it.cols
			}
			res.Placements = append(res.Placements, Placement{
				Page:   it.page.Index,
				Screen: core.RectFromSize(top, left, it.rows, it.cols),
				Key: document.RenderKey{
					Version: version,
					Page:    it.page.Index,
					Width:   it.wPx,
					Height:  it.hPx,
					Crop:    it.page.Bounds(),
					Color:   st.Color,
				},
			})
		}
		y += r.rows
	}
	res.PagesShown = len(res.Placements)
	return res
}

// computeOversized shows the part of a single page selected by the pan
// offset. The pan is clamped so the crop always starts inside the page.
func computeOversized(st viewport.State, term Terminal, m measure, version uint64) Result {
	visCols := min(m.cols, term.Cols)
	visRows := min(m.rows, term.Rows)
	maxX := m.cols - visCols
	maxY := m.rows - visRows
	panX := min(max(st.PanX, 0), maxX)
	panY := min(max(st.PanY, 0), maxY)

	cw, ch := float64(term.CellWidth), float64(term.CellHeight)
	crop := document.Rect{
		X0: float64(panX) * cw / m.scale,
		Y0: float64(panY) * ch / m.scale,
		X1: math.Min(m.page.Width, float64(panX+visCols)*cw/m.scale),
		Y1: math.Min(m.page.Height, float64(panY+visRows)*ch/m.scale),
	}
	w := max(1, int(math.Round(crop.Width()*m.scale)))
	h := max(1, int(math.Round(crop.Height()*m.scale)))

	return Result{
		Placements: []Placement{{
			Page:   m.page.Index,
			Screen: core.RectFromSize((term.Rows-visRows)/2, (term.Cols-visCols)/2, visRows, visCols),
			Key: document.RenderKey{
				Version: version,
				Page:    m.page.Index,
				Width:   w,
				Height:  h,
				Crop:    crop,
				Color:   st.Color,
			},
		}},
		PanX:       panX,
		PanY:       panY,
		MaxPanX:    maxX,
		MaxPanY:    maxY,
		PagesShown: 1,
	}
}

// KeyFor returns the key Compute would assign to page if the view were
// moved onto it.
func KeyFor(st viewport.State, term Terminal, pages []document.PageDescriptor, page int, version uint64) (document.RenderKey, bool) {
	if page < 0 || page >= len(pages) {
		return document.RenderKey{}, false
	}
	st.Page = page
	st.PanY = 0
	r := Compute(st, term, pages, version)
	if len(r.Placements) == 0 {
		return document.RenderKey{}, false
	}
	return r.Placements[0].Key, true
}

// Prefetch returns keys for up to n pages on each side of the current
// layout, nearest first, alternating forward and back.
func Prefetch(st viewport.State, term Terminal, pages []document.PageDescriptor, version uint64, n int) []document.RenderKey {
	cur := Compute(st, term, pages, version)
	if len(cur.Placements) == 0 || n <= 0 {
		return nil
	}
	lo, hi := cur.Placements[0].Page, cur.Placements[0].Page
	for _, p := range cur.Placements {
		lo = min(lo, p.Page)
		hi = max(hi, p.Page)
	}
	var keys []document.RenderKey
	for d := 1; d <= n; d++ {
		if k, ok := KeyFor(st, term, pages, hi+d, version); ok {
			keys = append(keys, k)
		}
		if k, ok := KeyFor(st, term, pages, lo-d, version); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// BitmapRect maps a page-space rectangle into pixel coordinates of the
// bitmap rendered for key. The result is clipped to the bitmap.
func BitmapRect(key document.RenderKey, r document.Rect) image.Rectangle {
	crop := key.Crop
	if crop.Empty() {
		return image.Rectangle{}
	}
	sx := float64(key.Width) / crop.Width()
	sy := float64(key.Height) / crop.Height()
	out := image.Rect(
		int(math.Floor((r.X0-crop.X0)*sx)),
		int(math.Floor((r.Y0-crop.Y0)*sy)),
		int(math.Ceil((r.X1-crop.X0)*sx)),
		int(math.Ceil((r.Y1-crop.Y0)*sy)),
	)
	return out.Intersect(image.Rect(0, 0, key.Width, key.Height))
}
