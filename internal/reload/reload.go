package reload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/logging"
	"github.com/dshills/docview/internal/watcher"
)

// Errors returned by the reloader.
var (
	ErrAlreadyRunning = errors.New("reloader already running")
	ErrStopped        = errors.New("reloader stopped")
)

// Opener opens path as a new document version.
type Opener func(ctx context.Context, path string, version uint64) (*document.Document, error)

// Result is the outcome of one reload. On failure Doc is nil and the
// caller keeps its current document.
type Result struct {
	Doc     *document.Document
	Version uint64
	Err     error
	// Events is the number of file events coalesced into this reload.
	Events   int
	Duration time.Duration
}

// Stats contains reloader statistics.
type Stats struct {
	Triggers  uint64
	Reloads   uint64
	Failures  uint64
	Coalesced uint64
}

// Reloader watches one file and reopens it after each burst of changes.
// Reopening happens off the caller's goroutine; a failed reopen is not
// retried until the next file event.
type Reloader struct {
	path    string
	watcher watcher.Watcher
	open    Opener
	logger  *logging.Logger
	deb     *Debouncer

	version atomic.Uint64
	results chan Result

	mu      sync.Mutex
	running bool
	busy    bool
	again   int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	triggers  atomic.Uint64
	reloads   atomic.Uint64
	failures  atomic.Uint64
	coalesced atomic.Uint64
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithQuietPeriod sets the debounce quiet period.
func WithQuietPeriod(d time.Duration) Option {
	return func(r *Reloader) {
		r.deb = NewDebouncer(d, r.trigger)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a reloader for path. version is the version of the
// currently open document; reloads use strictly greater versions.
func New(path string, w watcher.Watcher, open Opener, version uint64, opts ...Option) *Reloader {
	r := &Reloader{
		path:    path,
		watcher: w,
		open:    open,
		logger:  logging.Nop(),
		results: make(chan Result, 1),
	}
	r.version.Store(version)
	r.deb = NewDebouncer(DefaultQuietPeriod, r.trigger)
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("reload")
	return r
}

// Start watches the file and begins forwarding events to the debouncer.
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	if r.ctx != nil {
		return ErrStopped
	}
	if err := r.watcher.Watch(r.path); err != nil {
		return err
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop stops watching and waits for an in-flight reopen to finish.
func (r *Reloader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.deb.Stop()
	if err := r.watcher.Unwatch(r.path); err != nil && !errors.Is(err, watcher.ErrWatcherClosed) {
		r.logger.Debug("unwatch: %v", err)
	}
	r.wg.Wait()
}

// Results delivers reload outcomes.
func (r *Reloader) Results() <-chan Result {
	return r.results
}

// Debouncer exposes the debounce state.
func (r *Reloader) Debouncer() *Debouncer {
	return r.deb
}

// Stats returns reloader statistics.
func (r *Reloader) Stats() Stats {
	return Stats{
		Triggers:  r.triggers.Load(),
		Reloads:   r.reloads.Load(),
		Failures:  r.failures.Load(),
		Coalesced: r.coalesced.Load(),
	}
}

func (r *Reloader) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-r.watcher.Events():
			if !ok {
				return
			}
			r.logger.Debug("%s %s", ev.Op, ev.Path)
			r.deb.OnEvent(r.path)
		case err, ok := <-r.watcher.Errors():
			if !ok {
				return
			}
			r.logger.Warn("watch %s: %v", r.path, err)
		}
	}
}

// trigger runs on the debouncer's timer goroutine.
func (r *Reloader) trigger(_ string, events int) {
	r.triggers.Add(1)
	r.coalesced.Add(uint64(events))

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	if r.busy {
		// Reopen once more after the current one finishes.
		r.again += events
		r.mu.Unlock()
		return
	}
	r.busy = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.reopen(events)
}

func (r *Reloader) reopen(events int) {
	defer r.wg.Done()
	for {
		res := r.reopenOnce(events)
		select {
		case r.results <- res:
		case <-r.ctx.Done():
			if res.Doc != nil {
				_ = res.Doc.Close()
			}
			r.mu.Lock()
			r.busy = false
			r.mu.Unlock()
			return
		}

		r.mu.Lock()
		events = r.again
		r.again = 0
		if events == 0 || !r.running {
			r.busy = false
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
}

func (r *Reloader) reopenOnce(events int) Result {
	version := r.version.Add(1)
	start := time.Now()
	doc, err := r.open(r.ctx, r.path, version)
	res := Result{Doc: doc, Version: version, Err: err, Events: events, Duration: time.Since(start)}
	if err != nil {
		r.failures.Add(1)
		r.logger.Warn("reload %s failed (%d events): %v", r.path, events, err)
		return res
	}
	r.reloads.Add(1)
	r.logger.Info("reloaded %s as version %d after %d events in %s", r.path, version, events, res.Duration)
	return res
}
