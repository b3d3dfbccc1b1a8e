package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/logging"
	"github.com/dshills/docview/internal/renderer/viewport"
)

// Event reports matches released by a session and its progress.
type Event struct {
	Session uuid.UUID
	State   State
	// Matches holds only the matches released since the previous event.
	Matches  []Match
	Progress Progress
}

// Progress summarizes a session.
type Progress struct {
	Scanned     int
	Total       int
	Matches     int
	Unscannable int
}

// Percent returns the scanned share of the document in [0, 100].
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Scanned * 100 / p.Total
}

type pageResult struct {
	rects []document.Rect
	err   error
}

// Session is one query's scan over one document version.
type Session struct {
	id     uuid.UUID
	query  string
	total  int
	origin int
	src    Source
	opts   options
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu          sync.Mutex
	state       State
	matches     []Match
	byPage      map[int][]Match
	scanned     int
	unscannable []int
	pending     map[int]pageResult
	cursor      int
	readPos     int
	changed     chan struct{}
}

func newSession(parent context.Context, o options, src Source, total int, query string, origin int) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New()
	return &Session{
		id:      id,
		query:   query,
		total:   max(0, total),
		origin:  origin,
		src:     src,
		opts:    o,
		logger:  o.logger.WithComponent("search").WithField("session", id.String()),
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, o.eventLen),
		done:    make(chan struct{}),
		state:   Idle,
		byPage:  make(map[int][]Match),
		pending: make(map[int]pageResult),
		cursor:  -1,
		changed: make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Query returns the query string.
func (s *Session) Query() string { return s.query }

// Events delivers released matches and state changes. It is closed when
// the scan ends.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the scan goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns a progress snapshot.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	return Progress{
		Scanned:     s.scanned,
		Total:       s.total,
		Matches:     len(s.matches),
		Unscannable: len(s.unscannable),
	}
}

// Matches returns a copy of the released matches in document order.
func (s *Session) Matches() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Match(nil), s.matches...)
}

// MatchesOnPage returns the released matches on page.
func (s *Session) MatchesOnPage(page int) []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Match(nil), s.byPage[page]...)
}

// Unscannable returns pages whose text could not be extracted.
func (s *Session) Unscannable() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.unscannable...)
}

// Cancel stops the scan. Matches already released stay readable.
func (s *Session) Cancel() {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.setStateLocked(Cancelled)
	}
	s.mu.Unlock()
	s.cancel()
}

// Advance returns the next released match, waiting for the scan if none
// is available yet. It returns ErrEndOfScan once a completed scan has no
// further matches and ErrCancelled after cancellation.
func (s *Session) Advance(ctx context.Context) (Match, error) {
	for {
		s.mu.Lock()
		if s.readPos < len(s.matches) {
			m := s.matches[s.readPos]
			s.readPos++
			s.mu.Unlock()
			return m, nil
		}
		state, ch := s.state, s.changed
		s.mu.Unlock()

		switch state {
		case Completed:
			return Match{}, ErrEndOfScan
		case Cancelled:
			return Match{}, ErrCancelled
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return Match{}, ctx.Err()
		}
	}
}

// Current returns the match under the cursor.
func (s *Session) Current() (Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 || s.cursor >= len(s.matches) {
		return Match{}, false
	}
	return s.matches[s.cursor], true
}

// Next moves the cursor to the next match, wrapping at the end, and
// returns the command that brings it into view. Before the first move the
// cursor starts at the session origin page. It reports false while no
// match at or past the origin is known and the scan is still running.
func (s *Session) Next() (Match, viewport.Command, bool) {
	return s.move(1)
}

// Prev moves the cursor to the previous match, wrapping at the start.
// Before the first move it reports false until the origin page is scanned.
func (s *Session) Prev() (Match, viewport.Command, bool) {
	return s.move(-1)
}

func (s *Session) move(dir int) (Match, viewport.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.matches)
	if n == 0 {
		return Match{}, viewport.Command{}, false
	}
	// The first move looks from the origin page. Matches are released in
	// page order, so a miss while scanning only means the match past the
	// origin has not been found yet; wrapping waits for the scan to end.
	switch {
	case s.cursor < 0 && dir > 0:
		i := sort.Search(n, func(i int) bool { return s.matches[i].Page >= s.origin })
		if i == n {
			if !s.state.Terminal() {
				return Match{}, viewport.Command{}, false
			}
			i = 0
		}
		s.cursor = i
	case s.cursor < 0:
		if s.scanned <= s.origin && !s.state.Terminal() {
			return Match{}, viewport.Command{}, false
		}
		i := sort.Search(n, func(i int) bool { return s.matches[i].Page > s.origin }) - 1
		if i < 0 {
			if !s.state.Terminal() {
				return Match{}, viewport.Command{}, false
			}
			i = n - 1
		}
		s.cursor = i
	default:
		s.cursor = (s.cursor + dir + n) % n
	}
	m := s.matches[s.cursor]
	return m, viewport.GotoPage(m.Page), true
}

// setStateLocked must be called with s.mu held.
func (s *Session) setStateLocked(st State) {
	if s.state == st || s.state.Terminal() {
		return
	}
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) setState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.setStateLocked(st)
	return true
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	start := time.Now()
	s.logger.Debug("scanning %d pages for %q", s.total, s.query)
	if !s.setState(Scanning) {
		return
	}

	for first := 0; first < s.total; first += s.opts.chunkPages {
		last := min(first+s.opts.chunkPages, s.total)
		err := s.scanChunk(first, last)
		if err == nil && last < s.total {
			err = s.pause()
		}
		if err != nil {
			s.setState(Cancelled)
			s.logger.Debug("scan stopped after page %d: %v", s.Progress().Scanned, err)
			return
		}
	}

	s.mu.Lock()
	completed := !s.state.Terminal()
	if completed {
		s.setStateLocked(Completed)
	}
	ev := s.eventLocked(nil)
	s.mu.Unlock()
	if completed {
		s.send(ev)
		s.logger.Info("search %q: %d matches, %d unscannable, %s",
			s.query, ev.Progress.Matches, ev.Progress.Unscannable, time.Since(start))
	}
}

// scanChunk scans pages [first, last) concurrently and releases results
// in page order as the completed prefix grows.
func (s *Session) scanChunk(first, last int) error {
	ready := make(chan struct{}, last-first)
	var g errgroup.Group
	g.SetLimit(last - first)
	for p := first; p < last; p++ {
		p := p
		g.Go(func() error {
			rects, err := s.find(p)
			s.mu.Lock()
			s.pending[p] = pageResult{rects: rects, err: err}
			s.mu.Unlock()
			ready <- struct{}{}
			return nil
		})
	}
	defer func() { _ = g.Wait() }()

	for done := first; done < last; {
		select {
		case <-ready:
		case <-s.ctx.Done():
			return ErrCancelled
		}
		released, n := s.release()
		done += n
		if n > 0 {
			s.prewarm(released)
			s.mu.Lock()
			ev := s.eventLocked(released)
			s.mu.Unlock()
			if !s.send(ev) {
				return ErrCancelled
			}
		}
	}
	return nil
}

func (s *Session) find(page int) ([]document.Rect, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if s.opts.gate != nil {
		if err := s.opts.gate.Acquire(s.ctx, 1); err != nil {
			return nil, err
		}
		defer s.opts.gate.Release(1)
	}
	return s.src.FindText(s.ctx, page, s.query)
}

// release moves every pending page contiguous with the scan marker into
// the match list. It returns the new matches and the number of pages
// released.
func (s *Session) release() ([]Match, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return nil, 0
	}

	var out []Match
	n := 0
	for {
		r, ok := s.pending[s.scanned]
		if !ok {
			break
		}
		if r.err != nil && s.ctx.Err() != nil {
			break
		}
		delete(s.pending, s.scanned)
		page := s.scanned
		switch {
		case r.err != nil:
			s.unscannable = append(s.unscannable, page)
			s.logger.Warn("page %d unscannable: %v", page+1, r.err)
		default:
			for i, rect := range r.rects {
				m := Match{Page: page, Ordinal: i, Rect: rect}
				s.matches = append(s.matches, m)
				s.byPage[page] = append(s.byPage[page], m)
				out = append(out, m)
			}
		}
		s.scanned++
		n++
	}
	if n > 0 {
		close(s.changed)
		s.changed = make(chan struct{})
	}
	return out, n
}

func (s *Session) prewarm(released []Match) {
	if s.opts.prewarm == nil {
		return
	}
	last := -1
	for _, m := range released {
		if m.Page != last {
			s.opts.prewarm(m.Page)
			last = m.Page
		}
	}
}

// pause yields to visible rendering between chunks.
func (s *Session) pause() error {
	if !s.setState(Paused) {
		return ErrCancelled
	}
	if s.opts.idle != nil {
		if err := s.opts.idle.WaitVisibleIdle(s.ctx); err != nil {
			return err
		}
	}
	if s.opts.pause > 0 {
		t := time.NewTimer(s.opts.pause)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.ctx.Done():
			return ErrCancelled
		}
	}
	if !s.setState(Scanning) {
		return ErrCancelled
	}
	return nil
}

// eventLocked must be called with s.mu held.
func (s *Session) eventLocked(released []Match) Event {
	return Event{
		Session:  s.id,
		State:    s.state,
		Matches:  released,
		Progress: s.progressLocked(),
	}
}

func (s *Session) send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}
