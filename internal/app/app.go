// Package app is the viewer's single coordinating goroutine. It owns the
// viewport, the current document version and the page cache index, and
// drives the render scheduler, search coordinator and reloader from one
// event loop.
package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/docview/internal/config"
	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/document/poppler"
	"github.com/dshills/docview/internal/document/textdoc"
	"github.com/dshills/docview/internal/logging"
	"github.com/dshills/docview/internal/reload"
	"github.com/dshills/docview/internal/renderer/backend"
	"github.com/dshills/docview/internal/renderer/graphics"
	"github.com/dshills/docview/internal/renderer/layout"
	"github.com/dshills/docview/internal/renderer/pagecache"
	"github.com/dshills/docview/internal/renderer/scheduler"
	"github.com/dshills/docview/internal/renderer/viewport"
	"github.com/dshills/docview/internal/search"
	"github.com/dshills/docview/internal/watcher"
)

// Options configures the application.
type Options struct {
	// Path is the document to view.
	Path string

	// Config is the validated configuration.
	Config config.Config

	// Logger receives all component logs. Nil disables logging.
	Logger *logging.Logger

	// Backend is the terminal. Required by Run.
	Backend backend.Backend

	// Watcher enables live reload when set. The caller owns it.
	Watcher watcher.Watcher

	// Engine overrides the engine picked from the file extension.
	Engine document.Engine

	// History restores and records the last page. May be nil.
	History *History
}

// frameSnapshot is what the last frame was laid out with. Search prewarm
// reads it from the session goroutine.
type frameSnapshot struct {
	term    layout.Terminal
	pages   []document.PageDescriptor
	version uint64
}

// Application is the central coordinator for all viewer components.
type Application struct {
	opts    Options
	cfg     config.Config
	path    string
	runID   uuid.UUID
	logger  *logging.Logger
	metrics *Metrics

	engine  document.Engine
	doc     *document.Document
	vp      *viewport.Viewport
	cache   *pagecache.Cache
	gate    *semaphore.Weighted
	sched   *scheduler.Scheduler
	search  *search.Coordinator
	history *History

	reloader *reload.Reloader
	backend  backend.Backend
	display  graphics.Display

	// Loop state. Touched only by the coordinating goroutine.
	ctx          context.Context
	session      *search.Session
	searchEvents <-chan search.Event
	failed       map[document.RenderKey]error
	last         layout.Result
	ui           uiState
	dirty        bool

	frame   atomic.Pointer[frameSnapshot]
	running atomic.Bool
}

// EngineFor picks the document engine for path.
func EngineFor(path string, cfg config.EngineConfig) document.Engine {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return poppler.New(poppler.DefaultConfig())
	}
	return textdoc.New(textdoc.Config{Columns: cfg.TextColumns, Lines: cfg.TextLines})
}

// New opens the document and builds every component. A document that
// cannot be opened is returned as an OperationError wrapping the
// document error, so document.IsFatal and IsTransient still apply.
func New(ctx context.Context, opts Options) (*Application, error) {
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, NewOperationError("open", opts.Path, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	app := &Application{
		opts:    opts,
		cfg:     opts.Config,
		path:    path,
		runID:   uuid.New(),
		metrics: NewMetrics(),
		engine:  opts.Engine,
		history: opts.History,
		backend: opts.Backend,
		failed:  make(map[document.RenderKey]error),
	}
	logger = logger.WithField("run", app.runID.String())
	app.logger = logger.WithComponent("app")

	if app.engine == nil {
		app.engine = EngineFor(path, app.cfg.Engine)
	}
	app.doc, err = document.Open(ctx, app.engine, path, 1)
	if err != nil {
		return nil, NewOperationError("open", path, err).AtVersion(1)
	}

	st, err := app.cfg.InitialState()
	if err != nil {
		app.doc.Close()
		return nil, NewOperationError("configure", path, err)
	}
	if app.history != nil {
		if page, ok := app.history.Page(path); ok {
			st.Page = page
		}
	}
	app.vp = viewport.New(st, app.doc.PageCount())
	app.vp.SetZoomStep(app.cfg.View.ZoomStep)

	app.cache, err = pagecache.New(pagecache.Config{
		MaxEntries: app.cfg.Cache.MaxEntries,
		MaxBytes:   app.cfg.Cache.MaxBytes,
	})
	if err != nil {
		app.doc.Close()
		return nil, NewComponentError("pagecache", "create", err)
	}

	workers := app.cfg.Render.Workers
	if workers <= 0 {
		workers = scheduler.DefaultWorkers()
	}
	app.gate = semaphore.NewWeighted(int64(workers))
	app.sched = scheduler.New(app.cache,
		scheduler.WithWorkers(workers),
		scheduler.WithGate(app.gate),
		scheduler.WithLogger(logger),
	)
	app.sched.SetSource(app.doc)

	app.search = search.NewCoordinator(
		search.WithChunkPages(app.cfg.Search.ChunkPages),
		search.WithPause(app.cfg.Search.Pause.Std()),
		search.WithGate(app.gate),
		search.WithIdleWaiter(app.sched),
		search.WithLogger(logger),
		search.WithPrewarm(app.prewarm),
	)

	if opts.Watcher != nil {
		app.reloader = reload.New(path, opts.Watcher, app.openVersion, app.doc.Version,
			reload.WithQuietPeriod(app.cfg.Reload.QuietPeriod.Std()),
			reload.WithLogger(logger),
		)
	}

	app.ui.setMessage(msgInfo, helpHint)
	app.logger.Info("opened %s with %s engine: %d pages", path, app.engine.Name(), app.doc.PageCount())
	return app, nil
}

func (app *Application) openVersion(ctx context.Context, path string, version uint64) (*document.Document, error) {
	return document.Open(ctx, app.engine, path, version)
}

// Run takes over the terminal and runs the event loop until the user
// quits or ctx is cancelled. A user quit returns nil.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.backend == nil {
		return ErrNoBackend
	}
	if err := app.backend.Init(); err != nil {
		return NewComponentError("backend", "init", err)
	}
	defer app.backend.Shutdown()

	cw, ch := app.cellSize()
	display, err := graphics.Select(app.cfg.Graphics.Protocol, app.backend, cw, ch)
	if err != nil {
		return NewComponentError("graphics", "select", err)
	}
	app.display = display

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := app.sched.Start(ctx); err != nil {
		return NewComponentError("scheduler", "start", err)
	}
	defer app.sched.Stop()
	defer app.search.Cancel()

	if app.reloader != nil {
		if err := app.reloader.Start(ctx); err != nil {
			// Viewing still works without live reload.
			app.logger.Warn("live reload disabled: %v", err)
			app.reloader = nil
		} else {
			defer app.reloader.Stop()
		}
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	g, gctx := errgroup.WithContext(loopCtx)
	input := make(chan backend.Event, 16)
	g.Go(func() error {
		return app.pollInput(gctx, input)
	})
	g.Go(func() error {
		err := app.loop(gctx, input)
		// The poller is blocked in PollEvent; cancel first so it exits
		// on the interrupt instead of forwarding it.
		stopLoop()
		app.backend.PostEvent(backend.Event{Type: backend.EventInterrupt})
		return err
	})

	err = g.Wait()
	app.recordHistory()
	app.logSummary()
	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}

// Close releases the current document. Call it after Run returns.
func (app *Application) Close() error {
	return app.doc.Close()
}

// cellSize resolves the pixel size of one terminal cell: configuration
// first, then the terminal, then a default.
func (app *Application) cellSize() (int, int) {
	w, h := app.cfg.Graphics.CellWidth, app.cfg.Graphics.CellHeight
	if w <= 0 || h <= 0 {
		w, h = app.backend.CellPixelSize()
	}
	if w <= 0 || h <= 0 {
		w, h = graphics.DefaultCellWidth, graphics.DefaultCellHeight
	}
	return w, h
}

func (app *Application) recordHistory() {
	if app.history == nil {
		return
	}
	app.history.Record(app.path, app.vp.State().Page)
	if err := app.history.Save(); err != nil {
		app.logger.Warn("save history: %v", err)
	}
}

func (app *Application) logSummary() {
	m := app.metrics.Snapshot()
	s := app.sched.Stats()
	c := app.cache.Stats()
	app.logger.Info("frames=%d avg=%v renders=%d failed=%d dispatched=%d deduped=%d cache hit rate=%.2f reloads=%d searches=%d",
		m.Frames.Count, m.Frames.Avg(), m.Renders.Count, m.RenderFailures, s.Dispatched, s.Deduped, c.HitRate(), m.Reloads, m.Searches)
}

// IsRunning returns true if the event loop is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Document returns the current document version.
func (app *Application) Document() *document.Document {
	return app.doc
}

// Viewport returns the navigation state owner.
func (app *Application) Viewport() *viewport.Viewport {
	return app.vp
}

// Metrics returns the metrics tracker.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// RunID identifies this viewer run in logs.
func (app *Application) RunID() uuid.UUID {
	return app.runID
}
