package app

import (
	"fmt"
	"image"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/renderer/core"
	"github.com/dshills/docview/internal/renderer/graphics"
	"github.com/dshills/docview/internal/renderer/layout"
	"github.com/dshills/docview/internal/renderer/scheduler"
)

var (
	barStyle         = core.DefaultStyle().AsReverse()
	errorStyle       = core.DefaultStyle().WithForeground(core.ColorRed).AsBold()
	placeholderStyle = core.DefaultStyle().WithForeground(core.ColorGray)
)

// pageArea returns the cells available for pages.
func (app *Application) pageArea(width, height int) core.ScreenRect {
	if app.ui.fullscreen {
		return core.RectFromSize(0, 0, height, width)
	}
	return core.RectFromSize(1, 0, max(0, height-2), width)
}

// redraw lays out the current state, updates the scheduler's view of what
// is wanted, and paints whatever is ready. It never waits on a render.
func (app *Application) redraw() {
	t := StartTimer()
	app.dirty = false

	width, height := app.backend.Size()
	area := app.pageArea(width, height)
	cw, ch := app.display.CellSize()
	term := layout.Terminal{Cols: area.Width(), Rows: area.Height(), CellWidth: cw, CellHeight: ch}

	doc := app.doc
	st := app.vp.State()
	res := layout.Compute(st, term, doc.Pages, doc.Version)
	app.vp.ClampPan(res.MaxPanX, res.MaxPanY)
	app.vp.SetPagesShown(res.PagesShown)
	st = app.vp.State()
	app.last = res
	app.frame.Store(&frameSnapshot{term: term, pages: doc.Pages, version: doc.Version})

	prefetch := layout.Prefetch(st, term, doc.Pages, doc.Version, app.cfg.Render.Prefetch)
	app.sched.OnViewportChange(res.Keys(), prefetch)

	app.backend.Clear()
	for _, p := range res.Placements {
		app.drawPlacement(p, p.Screen.Translate(area.Top, area.Left))
	}
	for _, key := range prefetch {
		if _, failed := app.failed[key]; !failed {
			app.sched.Request(key, scheduler.PriorityPrefetch)
		}
	}

	if !app.ui.fullscreen {
		app.drawTopBar(width)
		app.drawBottomBar(width, height-1, app.renderedPercent(res.Keys(), prefetch))
	} else if app.ui.prompt != promptNone && height > 0 {
		app.drawBottomBar(width, height-1, -1)
	}
	if !term.Valid() {
		app.drawCentered(area, "Terminal too small", errorStyle)
	}
	if app.ui.help {
		app.drawHelp(area)
	}
	app.placeCursor(width, height)

	app.backend.Show()
	app.metrics.RecordFrame(t.Elapsed())
}

// drawPlacement shows the bitmap for p, or the most recent bitmap of the
// same page at another size, or a placeholder.
func (app *Application) drawPlacement(p layout.Placement, rect core.ScreenRect) {
	if err, ok := app.failed[p.Key]; ok {
		app.display.Clear(rect)
		app.drawCentered(rect, fmt.Sprintf("Page %d could not be rendered: %v", p.Page+1, err), errorStyle)
		return
	}

	h := app.sched.Request(p.Key, scheduler.PriorityVisible)
	if r, ok := h.Result(); ok && r.Err == nil && r.Entry != nil {
		app.drawBitmap(p.Page, r.Entry.Image, p.Key, rect)
		return
	}
	if e, ok := app.cache.LatestForPage(p.Key.Version, p.Page); ok {
		app.drawBitmap(p.Page, e.Image, e.Key, rect)
		return
	}
	app.display.Clear(rect)
	app.drawCentered(rect, fmt.Sprintf("Rendering page %d...", p.Page+1), placeholderStyle)
}

func (app *Application) drawBitmap(page int, img *image.RGBA, key document.RenderKey, rect core.ScreenRect) {
	if app.session != nil {
		matches := app.session.MatchesOnPage(page)
		if len(matches) > 0 {
			boxes := make([]image.Rectangle, 0, len(matches))
			for _, m := range matches {
				boxes = append(boxes, layout.BitmapRect(key, m.Rect))
			}
			img = graphics.Highlight(img, boxes, graphics.HighlightColor)
		}
	}
	if err := app.display.Draw(img, rect); err != nil {
		app.logger.Debug("draw page %d: %v", page+1, err)
	}
}

// renderedPercent is the share of visible and prefetch keys that are
// cached.
func (app *Application) renderedPercent(visible, prefetch []document.RenderKey) int {
	total := len(visible) + len(prefetch)
	if total == 0 {
		return 100
	}
	done := 0
	for _, keys := range [][]document.RenderKey{visible, prefetch} {
		for _, k := range keys {
			if app.cache.Contains(k) {
				done++
			}
		}
	}
	return done * 100 / total
}
