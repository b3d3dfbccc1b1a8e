package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/renderer/pagecache"
)

// Result is the outcome of a render request.
type Result struct {
	Key   document.RenderKey
	Entry *pagecache.Entry
	Err   error
	// CacheHit is set when the request was served without a job.
	CacheHit bool
	Duration time.Duration
}

// Handle is shared by every request attached to the same job.
type Handle struct {
	key  document.RenderKey
	done chan struct{}
	once sync.Once
	res  Result
}

func newHandle(key document.RenderKey) *Handle {
	return &Handle{key: key, done: make(chan struct{})}
}

func completedHandle(res Result) *Handle {
	h := newHandle(res.Key)
	h.complete(res)
	return h
}

func (h *Handle) complete(res Result) {
	h.once.Do(func() {
		h.res = res
		close(h.done)
	})
}

// Key returns the requested render key.
func (h *Handle) Key() document.RenderKey { return h.key }

// Done is closed when the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the result if the job has finished.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
