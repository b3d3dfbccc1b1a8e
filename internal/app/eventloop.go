package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/reload"
	"github.com/dshills/docview/internal/renderer/backend"
	"github.com/dshills/docview/internal/renderer/layout"
	"github.com/dshills/docview/internal/renderer/pagecache"
	"github.com/dshills/docview/internal/renderer/scheduler"
	"github.com/dshills/docview/internal/search"
)

// pollInput forwards terminal events until ctx is done. PollEvent blocks,
// so the loop posts an interrupt on exit to wake it.
func (app *Application) pollInput(ctx context.Context, out chan<- backend.Event) error {
	for {
		ev := app.backend.PollEvent()
		if ctx.Err() != nil || ev.Type == backend.EventNone {
			return nil
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// loop is the coordinating goroutine. Viewport changes, layout and cache
// index updates all happen here, so none of them race with each other.
// Every blocking wait is in the select.
func (app *Application) loop(ctx context.Context, input <-chan backend.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RecoveredPanicError{Value: r, Stack: string(debug.Stack())}
			app.logger.Error("%v", err)
		}
	}()

	app.ctx = ctx
	app.redraw()

	for {
		var reloads <-chan reload.Result
		if app.reloader != nil {
			reloads = app.reloader.Results()
		}

		select {
		case <-ctx.Done():
			return nil

		case ev := <-input:
			t := StartTimer()
			err := app.handleEvent(ev)
			app.metrics.RecordInput(t.Elapsed())
			if err != nil {
				return err
			}

		case res := <-app.sched.Completions():
			app.handleCompletion(res)

		case ev, ok := <-app.searchEvents:
			if !ok {
				app.searchEvents = nil
				continue
			}
			app.handleSearchEvent(ev)

		case res := <-reloads:
			app.handleReload(res)
		}

		if app.dirty {
			app.redraw()
		}
	}
}

func (app *Application) handleCompletion(res scheduler.Result) {
	if res.Key.Version != app.doc.Version {
		return
	}
	switch {
	case res.Err == nil:
		app.metrics.RecordRender(res.Duration, false)
	case errors.Is(res.Err, pagecache.ErrStale), errors.Is(res.Err, context.Canceled):
		return
	default:
		app.metrics.RecordRender(res.Duration, true)
		// Remember the failure so the page shows a placeholder instead of
		// being requested again on every frame.
		app.failed[res.Key] = res.Err
		app.logger.Warn("page %d: %v", res.Key.Page+1, res.Err)
	}
	app.dirty = true
}

func (app *Application) handleSearchEvent(ev search.Event) {
	if app.session == nil || ev.Session != app.session.ID() {
		return
	}
	app.showSearchProgress(ev.Progress)
	// The first jump waits for a match at or past the origin page, or
	// for the scan to end and wrap.
	if app.ui.jumpOnMatch && (len(ev.Matches) > 0 || ev.State.Terminal()) {
		app.moveMatch(1)
		if ev.State.Terminal() {
			app.ui.jumpOnMatch = false
		}
	}
	app.dirty = true
}

func (app *Application) showSearchProgress(p search.Progress) {
	// A notice such as the reload message outlives a restarted scan.
	if app.ui.msgKind == msgInfo {
		return
	}
	msg := fmt.Sprintf("Results for '%s': %d (searched: %d%%)", app.session.Query(), p.Matches, p.Percent())
	if p.Unscannable > 0 {
		msg += fmt.Sprintf(", %d unreadable", p.Unscannable)
	}
	app.ui.setMessage(msgSearch, msg)
}

// handleReload swaps in a reopened document. A failed reopen keeps the
// current document and only shows a notice.
func (app *Application) handleReload(res reload.Result) {
	app.dirty = true
	if res.Err != nil {
		app.metrics.RecordReload(true)
		kind := "failed"
		if document.IsTransient(res.Err) {
			kind = "unavailable"
		}
		app.ui.setMessage(msgError, fmt.Sprintf("Reload %s: %v", kind, res.Err))
		return
	}
	app.metrics.RecordReload(false)
	app.swapDocument(res.Doc)
	app.ui.setMessage(msgInfo, "Document was reloaded!")
}

func (app *Application) swapDocument(doc *document.Document) {
	old := app.doc
	app.doc = doc

	app.sched.SetSource(doc)
	app.sched.CancelAll()
	gen := app.cache.InvalidateDocument()
	clear(app.failed)
	app.vp.SetPageCount(doc.PageCount())
	app.logger.Info("reloaded as version %d (%d pages, cache generation %d)", doc.Version, doc.PageCount(), gen)

	// The old scan still reads from old; stop it before closing.
	app.search.Cancel()
	if err := old.Close(); err != nil {
		app.logger.Debug("close version %d: %v", old.Version, err)
	}

	if app.session != nil {
		app.restartSearch()
	}
}

// prewarm runs on a search session goroutine. It queues a render for a
// page with matches at the size the page would have if the user jumped
// to it.
func (app *Application) prewarm(page int) {
	f := app.frame.Load()
	if f == nil {
		return
	}
	key, ok := layout.KeyFor(app.vp.State(), f.term, f.pages, page, f.version)
	if !ok {
		return
	}
	app.sched.Request(key, scheduler.PrioritySearch)
}
