// Package scheduler runs page render jobs on a small worker pool. It
// deduplicates requests per render key, orders work by priority, and
// discards results of jobs that were cancelled or superseded after they
// were dispatched.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/logging"
	"github.com/dshills/docview/internal/renderer/pagecache"
)

// Priority orders queued jobs. Higher values run first.
type Priority int

const (
	// PrioritySearch is for renders wanted only by a background search.
	PrioritySearch Priority = iota
	// PriorityPrefetch is for neighbours of the visible pages.
	PriorityPrefetch
	// PriorityVisible is for pages on screen.
	PriorityVisible
)

func (p Priority) String() string {
	switch p {
	case PriorityVisible:
		return "visible"
	case PriorityPrefetch:
		return "prefetch"
	default:
		return "search"
	}
}

// Errors reported on job handles.
var (
	ErrCancelled      = errors.New("render job cancelled")
	ErrSuperseded     = errors.New("render job superseded")
	ErrStopped        = errors.New("scheduler stopped")
	ErrNotRunning     = errors.New("scheduler not running")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNoSource       = errors.New("no document to render")
)

// Rasterizer renders one key. *document.Document implements it.
type Rasterizer interface {
	Rasterize(ctx context.Context, key document.RenderKey) (*image.RGBA, error)
}

type job struct {
	key    document.RenderKey
	prio   Priority
	seq    uint64
	index  int
	ctx    context.Context
	cancel context.CancelFunc
	handle *Handle

	// dispatch is the generation assigned when a worker picks the job up.
	dispatch uint64
	// cacheGen is the cache generation at dispatch.
	cacheGen uint64
}

// Stats contains scheduler statistics.
type Stats struct {
	Workers    int
	Queued     int
	Running    int
	Requested  uint64
	CacheHits  uint64
	Deduped    uint64
	Dispatched uint64
	Completed  uint64
	Failed     uint64
	Cancelled  uint64
	Discarded  uint64
}

// Scheduler is safe for concurrent use, though the viewer drives it from a
// single coordinating goroutine.
type Scheduler struct {
	workers   int
	gate      *semaphore.Weighted
	cache     *pagecache.Cache
	logger    *logging.Logger
	bufferLen int

	mu       sync.Mutex
	cond     *sync.Cond
	source   Rasterizer
	queue    jobQueue
	jobs     map[document.RenderKey]*job
	running  int
	seq      uint64
	started  bool
	stopping bool
	ctx      context.Context
	cancel   context.CancelFunc

	visible        int
	visibleChanged chan struct{}

	dispatchGen atomic.Uint64
	completions chan Result
	stopCh      chan struct{}
	wg          sync.WaitGroup

	requested  atomic.Uint64
	cacheHits  atomic.Uint64
	deduped    atomic.Uint64
	dispatched atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64
	cancelled  atomic.Uint64
	discarded  atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the worker count.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithGate shares an engine-call semaphore with other users of the
// document engine.
func WithGate(g *semaphore.Weighted) Option {
	return func(s *Scheduler) {
		s.gate = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCompletionBuffer sets the completion channel capacity.
func WithCompletionBuffer(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.bufferLen = n
		}
	}
}

// DefaultWorkers bounds concurrency by available parallelism.
func DefaultWorkers() int {
	return min(4, runtime.GOMAXPROCS(0))
}

// New creates a scheduler that stores results in cache.
func New(cache *pagecache.Cache, opts ...Option) *Scheduler {
	s := &Scheduler{
		workers:        DefaultWorkers(),
		cache:          cache,
		logger:         logging.Nop(),
		bufferLen:      64,
		jobs:           make(map[document.RenderKey]*job),
		visibleChanged: make(chan struct{}),
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cond = sync.NewCond(&s.mu)
	s.completions = make(chan Result, s.bufferLen)
	return s
}

// Start starts the worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyRunning
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return nil
}

// Stop cancels all jobs and waits for the workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	for _, j := range s.jobs {
		s.discard(j, ErrStopped)
	}
	s.cancel()
	close(s.stopCh)
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// SetSource replaces the document jobs render from. Jobs already running
// keep the source they started with.
func (s *Scheduler) SetSource(r Rasterizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = r
}

// Completions delivers the result of every dispatched job that was not
// cancelled or superseded.
func (s *Scheduler) Completions() <-chan Result {
	return s.completions
}

// Request returns a handle for key. A cached bitmap completes the handle
// immediately; an in-flight job for the same key is shared and its
// priority raised if needed.
func (s *Scheduler) Request(key document.RenderKey, prio Priority) *Handle {
	s.requested.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopping {
		return completedHandle(Result{Key: key, Err: ErrNotRunning})
	}
	if e, ok := s.cache.Get(key); ok {
		s.cacheHits.Add(1)
		return completedHandle(Result{Key: key, Entry: e, CacheHit: true})
	}
	if j, ok := s.jobs[key]; ok {
		s.deduped.Add(1)
		if prio > j.prio {
			s.setPriority(j, prio)
		}
		return j.handle
	}

	for _, j := range s.jobs {
		if j.key.SamePage(key) && j.prio <= prio {
			s.discard(j, ErrSuperseded)
		}
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.seq++
	j := &job{
		key:    key,
		prio:   prio,
		seq:    s.seq,
		index:  -1,
		ctx:    ctx,
		cancel: cancel,
		handle: newHandle(key),
	}
	s.jobs[key] = j
	heap.Push(&s.queue, j)
	if prio == PriorityVisible {
		s.addVisible(1)
	}
	s.cond.Signal()
	return j.handle
}

// Cancel cancels the job for key, if any. It never blocks on the engine.
func (s *Scheduler) Cancel(key document.RenderKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[key]; ok {
		s.discard(j, ErrCancelled)
	}
}

// CancelAll cancels every job.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		s.discard(j, ErrCancelled)
	}
}

// OnViewportChange cancels jobs for keys that are neither visible nor
// prefetched and re-prioritizes the rest. Search jobs not in either set
// are left alone.
func (s *Scheduler) OnViewportChange(visible, prefetch []document.RenderKey) {
	keep := make(map[document.RenderKey]Priority, len(visible)+len(prefetch))
	for _, k := range prefetch {
		keep[k] = PriorityPrefetch
	}
	for _, k := range visible {
		keep[k] = PriorityVisible
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, j := range s.jobs {
		p, ok := keep[key]
		switch {
		case !ok && j.prio == PrioritySearch:
		case !ok:
			s.discard(j, ErrCancelled)
		case p != j.prio:
			s.setPriority(j, p)
		}
	}
}

// WaitVisibleIdle blocks until no visible-priority job is queued or running.
func (s *Scheduler) WaitVisibleIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		n, ch := s.visible, s.visibleChanged
		s.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return ErrStopped
		}
	}
}

// Pending reports whether key has a queued or running job.
func (s *Scheduler) Pending(key document.RenderKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[key]
	return ok
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := Stats{Workers: s.workers, Queued: s.queue.Len(), Running: s.running}
	s.mu.Unlock()
	st.Requested = s.requested.Load()
	st.CacheHits = s.cacheHits.Load()
	st.Deduped = s.deduped.Load()
	st.Dispatched = s.dispatched.Load()
	st.Completed = s.completed.Load()
	st.Failed = s.failed.Load()
	st.Cancelled = s.cancelled.Load()
	st.Discarded = s.discarded.Load()
	return st
}

// setPriority must be called with s.mu held.
func (s *Scheduler) setPriority(j *job, p Priority) {
	if j.prio == PriorityVisible {
		s.addVisible(-1)
	}
	if p == PriorityVisible {
		s.addVisible(1)
	}
	j.prio = p
	if j.index >= 0 {
		heap.Fix(&s.queue, j.index)
	}
}

// discard cancels j and resolves its handle with reason. A running job's
// engine call is left to finish; its result is dropped by the dispatch
// check. Must be called with s.mu held.
func (s *Scheduler) discard(j *job, reason error) {
	if s.jobs[j.key] != j {
		return
	}
	j.cancel()
	if j.index >= 0 {
		heap.Remove(&s.queue, j.index)
	}
	if reason == ErrCancelled || reason == ErrSuperseded {
		s.cancelled.Add(1)
	}
	s.finish(j, Result{Key: j.key, Err: reason})
}

// finish must be called with s.mu held.
func (s *Scheduler) finish(j *job, res Result) {
	delete(s.jobs, j.key)
	if j.prio == PriorityVisible {
		s.addVisible(-1)
	}
	j.handle.complete(res)
}

func (s *Scheduler) addVisible(delta int) {
	s.visible += delta
	close(s.visibleChanged)
	s.visibleChanged = make(chan struct{})
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && !s.stopping {
			s.cond.Wait()
		}
		if s.stopping {
			s.mu.Unlock()
			return
		}
		j := heap.Pop(&s.queue).(*job)
		j.dispatch = s.dispatchGen.Add(1)
		j.cacheGen = s.cache.Generation()
		src := s.source
		s.running++
		s.mu.Unlock()

		s.dispatched.Add(1)
		start := time.Now()
		img, err := s.render(j, src)
		res := Result{Key: j.key, Err: err, Duration: time.Since(start)}

		s.mu.Lock()
		s.running--
		cur, ok := s.jobs[j.key]
		if !ok || cur.dispatch != j.dispatch {
			// Cancelled or superseded since dispatch.
			s.discarded.Add(1)
			s.mu.Unlock()
			continue
		}
		if err == nil {
			if e, ok := s.cache.Insert(j.key, img, j.cacheGen); ok {
				res.Entry = e
			} else {
				res.Err = pagecache.ErrStale
			}
		}
		if res.Err != nil {
			s.failed.Add(1)
			s.logger.Debug("render %s failed: %v", j.key, res.Err)
		} else {
			s.completed.Add(1)
		}
		s.finish(j, res)
		s.mu.Unlock()

		select {
		case s.completions <- res:
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) render(j *job, src Rasterizer) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	if src == nil {
		return nil, ErrNoSource
	}
	if s.gate != nil {
		if err := s.gate.Acquire(j.ctx, 1); err != nil {
			return nil, err
		}
		defer s.gate.Release(1)
	}
	if err := j.ctx.Err(); err != nil {
		return nil, err
	}
	return src.Rasterize(j.ctx, j.key)
}
