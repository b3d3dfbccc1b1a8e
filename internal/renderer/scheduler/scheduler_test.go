package scheduler

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/renderer/pagecache"
)

// fakeRasterizer counts calls per key. When gated, calls block until
// release is closed or their context is cancelled.
type fakeRasterizer struct {
	mu      sync.Mutex
	calls   map[document.RenderKey]int
	order   []int
	fail    map[int]error
	release chan struct{}
	started chan document.RenderKey

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFake(gated bool) *fakeRasterizer {
	f := &fakeRasterizer{
		calls:   make(map[document.RenderKey]int),
		fail:    make(map[int]error),
		started: make(chan document.RenderKey, 100),
	}
	if gated {
		f.release = make(chan struct{})
	}
	return f
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, key document.RenderKey) (*image.RGBA, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[key]++
	f.order = append(f.order, key.Page)
	err := f.fail[key.Page]
	f.mu.Unlock()
	f.started <- key

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, key.Width, key.Height)), nil
}

func (f *fakeRasterizer) callCount(key document.RenderKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeRasterizer) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.order...)
}

func rk(page int) document.RenderKey {
	return document.RenderKey{Version: 1, Page: page, Width: 4, Height: 4}
}

func start(t *testing.T, src Rasterizer, opts ...Option) (*Scheduler, *pagecache.Cache) {
	t.Helper()
	cache, err := pagecache.New(pagecache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := New(cache, opts...)
	s.SetSource(src)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s, cache
}

func wait(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait(%v): %v", h.Key(), err)
	}
	return res
}

func waitStarted(t *testing.T, f *fakeRasterizer) document.RenderKey {
	t.Helper()
	select {
	case k := <-f.started:
		return k
	case <-time.After(2 * time.Second):
		t.Fatal("render never started")
	}
	return document.RenderKey{}
}

func TestRequestDeduplicates(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(4))

	const n = 10
	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = s.Request(rk(1), PriorityVisible)
		}(i)
	}
	wg.Wait()
	waitStarted(t, f)
	close(f.release)

	first := wait(t, handles[0])
	if first.Err != nil || first.Entry == nil {
		t.Fatalf("result = %+v", first)
	}
	for i := 1; i < n; i++ {
		if handles[i] != handles[0] {
			t.Errorf("request %d got its own handle", i)
		}
	}
	if got := f.callCount(rk(1)); got != 1 {
		t.Errorf("rasterize calls = %d, want 1", got)
	}
	if st := s.Stats(); st.Deduped != n-1 {
		t.Errorf("Deduped = %d, want %d", st.Deduped, n-1)
	}
}

func TestRequestServesFromCache(t *testing.T) {
	f := newFake(false)
	s, _ := start(t, f)

	wait(t, s.Request(rk(2), PriorityVisible))
	h := s.Request(rk(2), PriorityVisible)
	res, ok := h.Result()
	if !ok || !res.CacheHit || res.Entry == nil {
		t.Errorf("second request = %+v, %v; want immediate cache hit", res, ok)
	}
	if got := f.callCount(rk(2)); got != 1 {
		t.Errorf("rasterize calls = %d, want 1", got)
	}
}

func TestPriorityOrder(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(1))

	blocker := s.Request(rk(0), PriorityVisible)
	waitStarted(t, f)

	search := s.Request(rk(1), PrioritySearch)
	prefetch := s.Request(rk(2), PriorityPrefetch)
	visible := s.Request(rk(3), PriorityVisible)
	close(f.release)

	for _, h := range []*Handle{blocker, search, prefetch, visible} {
		if res := wait(t, h); res.Err != nil {
			t.Fatalf("%v: %v", h.Key(), res.Err)
		}
	}
	got := f.pages()
	want := []int{0, 3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("render order = %v, want %v", got, want)
		}
	}
}

func TestPriorityRaisedOnAttach(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(1))

	s.Request(rk(0), PriorityVisible)
	waitStarted(t, f)
	s.Request(rk(1), PriorityPrefetch)
	s.Request(rk(2), PrioritySearch)
	s.Request(rk(2), PriorityVisible)
	close(f.release)

	wait(t, s.Request(rk(1), PriorityPrefetch))
	got := f.pages()
	if len(got) < 2 || got[1] != 2 {
		t.Errorf("render order = %v, want page 2 second", got)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(1))

	s.Request(rk(0), PriorityVisible)
	waitStarted(t, f)
	h := s.Request(rk(1), PriorityPrefetch)
	s.Cancel(rk(1))

	if res := wait(t, h); !errors.Is(res.Err, ErrCancelled) {
		t.Errorf("Err = %v, want ErrCancelled", res.Err)
	}
	close(f.release)
	wait(t, s.Request(rk(0), PriorityVisible))
	if got := f.callCount(rk(1)); got != 0 {
		t.Errorf("cancelled queued job rendered %d times", got)
	}
}

func TestCancelRunningJobDiscardsResult(t *testing.T) {
	f := newFake(true)
	s, cache := start(t, f, WithWorkers(1))

	h := s.Request(rk(5), PriorityVisible)
	waitStarted(t, f)
	s.Cancel(rk(5))

	if res := wait(t, h); !errors.Is(res.Err, ErrCancelled) {
		t.Errorf("Err = %v, want ErrCancelled", res.Err)
	}
	close(f.release)

	deadline := time.Now().Add(2 * time.Second)
	for s.Stats().Discarded == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Stats().Discarded != 1 {
		t.Errorf("Discarded = %d, want 1", s.Stats().Discarded)
	}
	if cache.Contains(rk(5)) {
		t.Error("cancelled job's bitmap reached the cache")
	}
}

func TestOnViewportChange(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(1))

	s.Request(rk(0), PriorityVisible)
	waitStarted(t, f)
	stale := s.Request(rk(1), PriorityVisible)
	neighbour := s.Request(rk(2), PriorityVisible)
	search := s.Request(rk(3), PrioritySearch)

	s.OnViewportChange([]document.RenderKey{rk(0)}, []document.RenderKey{rk(2)})

	if res := wait(t, stale); !errors.Is(res.Err, ErrCancelled) {
		t.Errorf("stale Err = %v, want ErrCancelled", res.Err)
	}
	if !s.Pending(rk(2)) || !s.Pending(rk(3)) {
		t.Error("kept jobs were cancelled")
	}
	close(f.release)
	if res := wait(t, neighbour); res.Err != nil {
		t.Errorf("neighbour Err = %v", res.Err)
	}
	if res := wait(t, search); res.Err != nil {
		t.Errorf("search Err = %v", res.Err)
	}
}

func TestSupersededJobDiscarded(t *testing.T) {
	f := newFake(true)
	s, cache := start(t, f, WithWorkers(2))

	old := s.Request(rk(7), PriorityVisible)
	waitStarted(t, f)
	newer := rk(7)
	newer.Width = 8
	h := s.Request(newer, PriorityVisible)

	if res := wait(t, old); !errors.Is(res.Err, ErrSuperseded) {
		t.Errorf("old Err = %v, want ErrSuperseded", res.Err)
	}
	close(f.release)
	if res := wait(t, h); res.Err != nil {
		t.Fatalf("newer Err = %v", res.Err)
	}
	if cache.Contains(rk(7)) {
		t.Error("superseded bitmap cached")
	}
	if !cache.Contains(newer) {
		t.Error("newer bitmap not cached")
	}
}

func TestFailureIsolatedToJob(t *testing.T) {
	f := newFake(false)
	f.fail[1] = document.PageError("rasterize", "x.pdf", 1, errors.New("corrupt"))
	s, _ := start(t, f, WithWorkers(2))

	bad := s.Request(rk(1), PriorityVisible)
	good := s.Request(rk(2), PriorityVisible)

	if res := wait(t, bad); !document.IsEngineFailure(res.Err) {
		t.Errorf("bad Err = %v, want engine failure", res.Err)
	}
	if res := wait(t, good); res.Err != nil {
		t.Errorf("good Err = %v", res.Err)
	}

	var failed, ok int
	for i := 0; i < 2; i++ {
		select {
		case c := <-s.Completions():
			if c.Err != nil {
				failed++
			} else {
				ok++
			}
		case <-time.After(2 * time.Second):
			t.Fatal("missing completion")
		}
	}
	if failed != 1 || ok != 1 {
		t.Errorf("completions failed=%d ok=%d", failed, ok)
	}
}

func TestReloadDuringRenderIsStale(t *testing.T) {
	f := newFake(true)
	s, cache := start(t, f, WithWorkers(1))

	h := s.Request(rk(4), PriorityVisible)
	waitStarted(t, f)
	cache.InvalidateDocument()
	close(f.release)

	if res := wait(t, h); !errors.Is(res.Err, pagecache.ErrStale) {
		t.Errorf("Err = %v, want ErrStale", res.Err)
	}
	if cache.Len() != 0 {
		t.Error("pre-reload bitmap cached")
	}
}

func TestConcurrencyBound(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(2))

	var handles []*Handle
	for i := 0; i < 6; i++ {
		handles = append(handles, s.Request(rk(i), PriorityVisible))
	}
	waitStarted(t, f)
	waitStarted(t, f)
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	for _, h := range handles {
		wait(t, h)
	}
	if got := f.maxActive.Load(); got > 2 {
		t.Errorf("max concurrent renders = %d, want <= 2", got)
	}
}

func TestGateBoundsAcrossWorkers(t *testing.T) {
	f := newFake(true)
	gate := semaphore.NewWeighted(1)
	s, _ := start(t, f, WithWorkers(3), WithGate(gate))

	var handles []*Handle
	for i := 0; i < 3; i++ {
		handles = append(handles, s.Request(rk(i), PriorityVisible))
	}
	waitStarted(t, f)
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	for _, h := range handles {
		wait(t, h)
	}
	if got := f.maxActive.Load(); got != 1 {
		t.Errorf("max concurrent renders = %d, want 1", got)
	}
}

func TestWaitVisibleIdle(t *testing.T) {
	f := newFake(true)
	s, _ := start(t, f, WithWorkers(1))

	if err := s.WaitVisibleIdle(context.Background()); err != nil {
		t.Fatalf("idle scheduler: %v", err)
	}

	s.Request(rk(0), PriorityVisible)
	waitStarted(t, f)

	done := make(chan error, 1)
	go func() { done <- s.WaitVisibleIdle(context.Background()) }()
	select {
	case <-done:
		t.Fatal("WaitVisibleIdle returned with visible work pending")
	case <-time.After(20 * time.Millisecond):
	}

	close(f.release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitVisibleIdle: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitVisibleIdle never returned")
	}
}

func TestStopResolvesPending(t *testing.T) {
	f := newFake(true)
	cache, _ := pagecache.New(pagecache.DefaultConfig())
	s := New(cache, WithWorkers(1))
	s.SetSource(f)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	running := s.Request(rk(0), PriorityVisible)
	waitStarted(t, f)
	queued := s.Request(rk(1), PriorityVisible)

	s.Stop()

	for _, h := range []*Handle{running, queued} {
		if res := wait(t, h); !errors.Is(res.Err, ErrStopped) {
			t.Errorf("%v Err = %v, want ErrStopped", h.Key(), res.Err)
		}
	}
	if res := wait(t, s.Request(rk(2), PriorityVisible)); !errors.Is(res.Err, ErrNotRunning) {
		t.Errorf("request after stop Err = %v", res.Err)
	}
}

func TestNoSource(t *testing.T) {
	cache, _ := pagecache.New(pagecache.DefaultConfig())
	s := New(cache, WithWorkers(1))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if res := wait(t, s.Request(rk(0), PriorityVisible)); !errors.Is(res.Err, ErrNoSource) {
		t.Errorf("Err = %v, want ErrNoSource", res.Err)
	}
}
