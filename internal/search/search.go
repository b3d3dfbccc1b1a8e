// Package search runs incremental full-document text search. A session
// scans pages in bounded chunks, pausing between chunks while visible pages
// are rendering, and releases matches strictly in document order.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/logging"
)

// Common errors.
var (
	ErrEndOfScan = errors.New("end of scan")
	ErrCancelled = errors.New("search cancelled")
)

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Scanning
	Paused
	Completed
	Cancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled
}

// Match is one occurrence of the query.
type Match struct {
	// Page is the zero-based page index.
	Page int
	// Ordinal is the position of the match within its page.
	Ordinal int
	// Rect is the match bounding box in page space.
	Rect document.Rect
}

// Less orders matches by document position.
func (m Match) Less(o Match) bool {
	if m.Page != o.Page {
		return m.Page < o.Page
	}
	return m.Ordinal < o.Ordinal
}

func (m Match) String() string {
	return fmt.Sprintf("page %d #%d", m.Page+1, m.Ordinal)
}

// Source extracts match boxes for one page. *document.Document implements it.
type Source interface {
	FindText(ctx context.Context, page int, query string) ([]document.Rect, error)
}

// IdleWaiter blocks until no visible page is waiting to render.
// *scheduler.Scheduler implements it.
type IdleWaiter interface {
	WaitVisibleIdle(ctx context.Context) error
}

const (
	// DefaultChunkPages is the number of pages scanned between pauses.
	DefaultChunkPages = 8
	// DefaultPause is the minimum yield between chunks.
	DefaultPause = 10 * time.Millisecond
)

type options struct {
	chunkPages int
	pause      time.Duration
	gate       *semaphore.Weighted
	idle       IdleWaiter
	logger     *logging.Logger
	prewarm    func(page int)
	eventLen   int
}

// Option configures a Coordinator.
type Option func(*options)

// WithChunkPages sets how many pages are scanned before pausing.
func WithChunkPages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkPages = n
		}
	}
}

// WithPause sets the minimum pause between chunks.
func WithPause(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.pause = d
		}
	}
}

// WithGate bounds concurrent engine calls. Share it with the scheduler.
func WithGate(g *semaphore.Weighted) Option {
	return func(o *options) { o.gate = g }
}

// WithIdleWaiter makes paused sessions wait for visible renders.
func WithIdleWaiter(w IdleWaiter) Option {
	return func(o *options) { o.idle = w }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrewarm registers fn to be called once for each page that gains
// its first match.
func WithPrewarm(fn func(page int)) Option {
	return func(o *options) { o.prewarm = fn }
}

// Coordinator owns the current search session. Starting a new query
// cancels the previous session.
type Coordinator struct {
	opts options

	mu      sync.Mutex
	current *Session
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	o := options{
		chunkPages: DefaultChunkPages,
		pause:      DefaultPause,
		logger:     logging.Nop(),
		eventLen:   16,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator{opts: o}
}

// Start cancels the current session and begins scanning pageCount pages
// of src for query. origin is the page the cursor starts from. An empty
// query only clears the current session and returns nil.
func (c *Coordinator) Start(ctx context.Context, src Source, pageCount int, query string, origin int) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
	if query == "" {
		return nil
	}

	s := newSession(ctx, c.opts, src, pageCount, query, origin)
	c.current = s
	go s.run()
	return s
}

// Current returns the active session, or nil.
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Cancel cancels and clears the current session.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
}
