// Package pagecache stores rendered page bitmaps keyed by render key, with
// least-recently-used eviction bounded by entry count and bytes.
package pagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/docview/internal/document"
)

// ErrStale is returned by GetOrInsert when the document was invalidated
// while the producer ran. The bitmap is dropped.
var ErrStale = errors.New("pagecache: document invalidated during render")

// Producer renders the bitmap for a key. It runs outside the cache lock.
type Producer func(ctx context.Context) (*image.RGBA, error)

// Entry is a cached bitmap.
type Entry struct {
	Key        document.RenderKey
	Image      *image.RGBA
	Generation uint64
	Bytes      int64
	Inserted   time.Time
}

// Config configures the cache.
type Config struct {
	// MaxEntries is the maximum number of bitmaps kept.
	MaxEntries int
	// MaxBytes is the pixel budget in bytes. Zero means unlimited. The
	// most recent entry is always kept even if it alone exceeds the budget.
	MaxBytes int64
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 64,
		MaxBytes:   256 << 20,
	}
}

// Stats contains cache statistics.
type Stats struct {
	Entries    int
	Bytes      int64
	MaxEntries int
	MaxBytes   int64
	Generation uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Rejected   uint64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is safe for concurrent use. Critical sections cover map operations
// only.
type Cache struct {
	mu sync.Mutex

	config     Config
	entries    *lru.Cache[document.RenderKey, *Entry]
	bytes      int64
	generation uint64
	// dropping is set while entries are removed on purpose so the evict
	// callback does not count them as evictions.
	dropping bool

	flight singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a cache.
func New(config Config) (*Cache, error) {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.MaxBytes < 0 {
		return nil, fmt.Errorf("pagecache: negative byte budget %d", config.MaxBytes)
	}
	c := &Cache{config: config, generation: 1}
	entries, err := lru.NewWithEvict[document.RenderKey, *Entry](config.MaxEntries, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("pagecache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// onEvict runs synchronously inside Add/Remove/Purge, with c.mu held by
// the caller.
func (c *Cache) onEvict(_ document.RenderKey, e *Entry) {
	c.bytes -= e.Bytes
	if !c.dropping {
		c.evictions.Add(1)
	}
}

// Get returns the entry for key and marks it most recently used.
func (c *Cache) Get(key document.RenderKey) (*Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries.Get(key)
	ok = ok && e.Generation == c.generation
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
		return e, true
	}
	c.misses.Add(1)
	return nil, false
}

// Contains reports whether key is cached without touching recency or
// statistics.
func (c *Cache) Contains(key document.RenderKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

// GetOrInsert returns the cached entry for key or runs produce and caches
// its result. Concurrent callers for the same key share one producer call,
// which runs with the first caller's context.
func (c *Cache) GetOrInsert(ctx context.Context, key document.RenderKey, produce Producer) (*Entry, error) {
	if e, ok := c.Get(key); ok {
		return e, nil
	}
	gen := c.Generation()

	// The generation is part of the flight key so lookups that start after
	// an invalidation never join a pre-invalidation render.
	v, err, _ := c.flight.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		c.mu.Lock()
		e, ok := c.entries.Peek(key)
		c.mu.Unlock()
		if ok && e.Generation == gen {
			return e, nil
		}

		img, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		e, ok = c.insert(key, img, gen)
		if !ok {
			return nil, ErrStale
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Insert caches img for key if gen is still the current generation and
// returns the new entry.
func (c *Cache) Insert(key document.RenderKey, img *image.RGBA, gen uint64) (*Entry, bool) {
	return c.insert(key, img, gen)
}

func (c *Cache) insert(key document.RenderKey, img *image.RGBA, gen uint64) (*Entry, bool) {
	if img == nil {
		return nil, false
	}
	e := &Entry{
		Key:        key,
		Image:      img,
		Generation: gen,
		Bytes:      int64(len(img.Pix)),
		Inserted:   time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.rejected.Add(1)
		return nil, false
	}
	if c.entries.Contains(key) {
		c.dropping = true
		c.entries.Remove(key)
		c.dropping = false
	}
	c.entries.Add(key, e)
	c.bytes += e.Bytes
	for c.config.MaxBytes > 0 && c.bytes > c.config.MaxBytes && c.entries.Len() > 1 {
		c.entries.RemoveOldest()
	}
	return e, true
}

// InvalidateDocument drops every entry and starts a new generation. It
// returns the new generation.
func (c *Cache) InvalidateDocument() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.dropping = true
	c.entries.Purge()
	c.dropping = false
	c.bytes = 0
	return c.generation
}

// Generation returns the current generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// LatestForPage returns the most recently used bitmap of any size for a
// page. It is used as a placeholder while the exact key renders.
func (c *Cache) LatestForPage(version uint64, page int) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.entries.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		if k.Version != version || k.Page != page {
			continue
		}
		if e, ok := c.entries.Peek(k); ok && e.Generation == c.generation {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Bytes returns the total size of cached bitmaps.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		Entries:    c.entries.Len(),
		Bytes:      c.bytes,
		MaxEntries: c.config.MaxEntries,
		MaxBytes:   c.config.MaxBytes,
		Generation: c.generation,
	}
	c.mu.Unlock()
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Evictions = c.evictions.Load()
	s.Rejected = c.rejected.Load()
	return s
}
