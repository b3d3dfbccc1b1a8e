package pagecache

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/docview/internal/document"
)

func key(page, w int) document.RenderKey {
	return document.RenderKey{Version: 1, Page: page, Width: w, Height: w, Crop: document.Rect{X1: 1, Y1: 1}}
}

func bitmap(w int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, w))
}

func producerFor(w int, calls *atomic.Int32) Producer {
	return func(context.Context) (*image.RGBA, error) {
		calls.Add(1)
		return bitmap(w), nil
	}
}

func newCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGetOrInsertCaches(t *testing.T) {
	c := newCache(t, DefaultConfig())
	var calls atomic.Int32

	e1, err := c.GetOrInsert(context.Background(), key(0, 4), producerFor(4, &calls))
	if err != nil {
		t.Fatalf("GetOrInsert: %v", err)
	}
	e2, err := c.GetOrInsert(context.Background(), key(0, 4), producerFor(4, &calls))
	if err != nil {
		t.Fatal(err)
	}
	if e1 != e2 {
		t.Error("second lookup returned a different entry")
	}
	if calls.Load() != 1 {
		t.Errorf("producer calls = %d, want 1", calls.Load())
	}
	if s := c.Stats(); s.Hits != 1 || s.Entries != 1 || s.Bytes != 4*4*4 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGetOrInsertConcurrentSingleProducer(t *testing.T) {
	c := newCache(t, DefaultConfig())
	var calls atomic.Int32
	release := make(chan struct{})
	produce := func(context.Context) (*image.RGBA, error) {
		calls.Add(1)
		<-release
		return bitmap(2), nil
	}

	const n = 16
	var wg sync.WaitGroup
	entries := make([]*Entry, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.GetOrInsert(context.Background(), key(1, 2), produce)
			if err != nil {
				t.Errorf("GetOrInsert: %v", err)
			}
			entries[i] = e
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("producer calls = %d, want 1", calls.Load())
	}
	for i := 1; i < n; i++ {
		if entries[i] != entries[0] {
			t.Fatalf("caller %d got a different entry", i)
		}
	}
}

func TestGetOrInsertProducerError(t *testing.T) {
	c := newCache(t, DefaultConfig())
	boom := errors.New("corrupt page")
	_, err := c.GetOrInsert(context.Background(), key(0, 1), func(context.Context) (*image.RGBA, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Error("failed render was cached")
	}
}

func TestInvalidateDocumentDropsEverything(t *testing.T) {
	c := newCache(t, DefaultConfig())
	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		if _, err := c.GetOrInsert(context.Background(), key(i, 2), producerFor(2, &calls)); err != nil {
			t.Fatal(err)
		}
	}
	before, _ := c.Get(key(0, 2))

	gen := c.InvalidateDocument()
	if gen != 2 {
		t.Errorf("generation = %d, want 2", gen)
	}
	if c.Len() != 0 || c.Bytes() != 0 {
		t.Errorf("after invalidate: len=%d bytes=%d", c.Len(), c.Bytes())
	}
	if _, ok := c.Get(key(0, 2)); ok {
		t.Error("Get returned pre-invalidation entry")
	}
	after, err := c.GetOrInsert(context.Background(), key(0, 2), producerFor(2, &calls))
	if err != nil {
		t.Fatal(err)
	}
	if after == before || after.Generation != gen {
		t.Errorf("GetOrInsert returned stale entry (generation %d)", after.Generation)
	}
	if s := c.Stats(); s.Evictions != 0 {
		t.Errorf("invalidation counted as %d evictions", s.Evictions)
	}
}

func TestInvalidateDuringProduceIsStale(t *testing.T) {
	c := newCache(t, DefaultConfig())
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrInsert(context.Background(), key(3, 2), func(context.Context) (*image.RGBA, error) {
			close(started)
			<-release
			return bitmap(2), nil
		})
		done <- err
	}()

	<-started
	c.InvalidateDocument()

	// A lookup after invalidation must not join the old render.
	var calls atomic.Int32
	e, err := c.GetOrInsert(context.Background(), key(3, 2), producerFor(2, &calls))
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("post-invalidation lookup produced %d times, want 1", calls.Load())
	}

	close(release)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Errorf("old render err = %v, want ErrStale", err)
	}
	got, ok := c.Get(key(3, 2))
	if !ok || got != e {
		t.Error("stale render replaced the fresh entry")
	}
	if c.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", c.Stats().Rejected)
	}
}

func TestInsertRejectsOldGeneration(t *testing.T) {
	c := newCache(t, DefaultConfig())
	gen := c.Generation()
	c.InvalidateDocument()
	if _, ok := c.Insert(key(0, 1), bitmap(1), gen); ok {
		t.Error("Insert accepted an old generation")
	}
	e, ok := c.Insert(key(0, 1), bitmap(1), c.Generation())
	if !ok || e.Generation != c.Generation() {
		t.Error("Insert rejected the current generation")
	}
}

func TestEvictsLeastRecentlyUsedByCount(t *testing.T) {
	c := newCache(t, Config{MaxEntries: 2})
	gen := c.Generation()
	c.Insert(key(0, 1), bitmap(1), gen)
	c.Insert(key(1, 1), bitmap(1), gen)
	c.Get(key(0, 1))
	c.Insert(key(2, 1), bitmap(1), gen)

	if !c.Contains(key(0, 1)) || c.Contains(key(1, 1)) || !c.Contains(key(2, 1)) {
		t.Error("wrong entry evicted")
	}
	if s := c.Stats(); s.Evictions != 1 || s.Bytes != 2*4 {
		t.Errorf("stats = %+v", s)
	}
}

func TestEvictsByByteBudget(t *testing.T) {
	// Each 4x4 bitmap is 64 bytes.
	c := newCache(t, Config{MaxEntries: 100, MaxBytes: 150})
	gen := c.Generation()
	for i := 0; i < 3; i++ {
		c.Insert(key(i, 4), bitmap(4), gen)
	}
	if c.Len() != 2 || c.Contains(key(0, 4)) {
		t.Errorf("len = %d, contains oldest = %v", c.Len(), c.Contains(key(0, 4)))
	}
	if c.Bytes() > 150 {
		t.Errorf("Bytes = %d, over budget", c.Bytes())
	}

	c.Insert(key(9, 10), bitmap(10), gen)
	if c.Len() != 1 || !c.Contains(key(9, 10)) {
		t.Error("oversized entry not kept alone")
	}
}

func TestReinsertReplacesBytes(t *testing.T) {
	c := newCache(t, DefaultConfig())
	gen := c.Generation()
	c.Insert(key(0, 2), bitmap(2), gen)
	c.Insert(key(0, 2), bitmap(2), gen)
	if c.Bytes() != 16 || c.Stats().Evictions != 0 {
		t.Errorf("bytes = %d evictions = %d", c.Bytes(), c.Stats().Evictions)
	}
}

func TestLatestForPage(t *testing.T) {
	c := newCache(t, DefaultConfig())
	gen := c.Generation()
	c.Insert(key(5, 2), bitmap(2), gen)
	c.Insert(key(5, 8), bitmap(8), gen)
	c.Insert(key(6, 2), bitmap(2), gen)

	e, ok := c.LatestForPage(1, 5)
	if !ok || e.Key.Width != 8 {
		t.Errorf("LatestForPage = %+v, %v", e, ok)
	}
	if _, ok := c.LatestForPage(2, 5); ok {
		t.Error("LatestForPage matched another version")
	}
}

func TestStatsHitRate(t *testing.T) {
	var s Stats
	if s.HitRate() != 0 {
		t.Error("empty hit rate != 0")
	}
	s.Hits, s.Misses = 3, 1
	if s.HitRate() != 0.75 {
		t.Errorf("HitRate = %v", s.HitRate())
	}
}

func TestNewRejectsNegativeBudget(t *testing.T) {
	if _, err := New(Config{MaxBytes: -1}); err == nil {
		t.Error("expected error")
	}
}
