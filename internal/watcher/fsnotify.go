package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultBufferSize = 64

// Stats counts what a watcher has seen.
type Stats struct {
	Files     int
	Delivered int64
	// Dropped events found the channel full.
	Dropped int64
	Errors  int64
}

// FSNotifyWatcher implements Watcher on fsnotify directory watches.
type FSNotifyWatcher struct {
	fs     *fsnotify.Watcher
	filter Filter
	buffer int

	mu    sync.Mutex
	files map[string]struct{}
	// dirs counts watched files per parent directory.
	dirs map[string]int

	events chan Event
	errs   chan error

	quit      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	delivered atomic.Int64
	dropped   atomic.Int64
	failures  atomic.Int64
}

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithBufferSize sets the capacity of the event and error channels.
func WithBufferSize(n int) Option {
	return func(w *FSNotifyWatcher) {
		if n > 0 {
			w.buffer = n
		}
	}
}

// WithFilter discards events the filter rejects.
func WithFilter(f Filter) Option {
	return func(w *FSNotifyWatcher) { w.filter = f }
}

// NewFSNotifyWatcher creates a watcher and starts its event goroutine.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	w := &FSNotifyWatcher{
		buffer:   defaultBufferSize,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fs = fsw
	w.events = make(chan Event, w.buffer)
	w.errs = make(chan error, w.buffer)

	go w.run()
	return w, nil
}

func (w *FSNotifyWatcher) closed() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

// Watch starts watching an existing file.
func (w *FSNotifyWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed() {
		return ErrWatcherClosed
	}
	if _, ok := w.files[abs]; ok {
		return ErrAlreadyWatching
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	return nil
}

// Unwatch stops watching a file. The directory watch is dropped with its
// last file.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed() {
		return ErrWatcherClosed
	}
	if _, ok := w.files[abs]; !ok {
		return ErrNotWatching
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	if w.dirs[dir]--; w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	return w.fs.Remove(dir)
}

func (w *FSNotifyWatcher) Events() <-chan Event { return w.events }

func (w *FSNotifyWatcher) Errors() <-chan error { return w.errs }

// Close stops the watcher. It is safe to call more than once.
func (w *FSNotifyWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		close(w.quit)
		w.mu.Unlock()

		err = w.fs.Close()
		<-w.loopDone
		close(w.events)
		close(w.errs)
	})
	return err
}

// Stats returns a snapshot of the watcher counters.
func (w *FSNotifyWatcher) Stats() Stats {
	w.mu.Lock()
	files := len(w.files)
	w.mu.Unlock()
	return Stats{
		Files:     files,
		Delivered: w.delivered.Load(),
		Dropped:   w.dropped.Load(),
		Errors:    w.failures.Load(),
	}
}

// IsWatching reports whether path is watched.
func (w *FSNotifyWatcher) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

func (w *FSNotifyWatcher) run() {
	defer close(w.loopDone)
	for {
		select {
		case <-w.quit:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.forward(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.failures.Add(1)
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// forward delivers a directory event if it names a watched file.
func (w *FSNotifyWatcher) forward(ev fsnotify.Event) {
	op := fromFSNotify(ev.Op)
	if op == 0 {
		return
	}
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	_, watched := w.files[path]
	w.mu.Unlock()
	if !watched {
		return
	}

	event := Event{Path: path, Op: op, Timestamp: time.Now()}
	if w.filter != nil && !w.filter(event) {
		return
	}
	select {
	case w.events <- event:
		w.delivered.Add(1)
	default:
		// Consumers debounce; one delivered event per burst is enough.
		w.dropped.Add(1)
	}
}

var fsOps = []struct {
	from fsnotify.Op
	to   Op
}{
	{fsnotify.Create, OpCreate},
	{fsnotify.Write, OpWrite},
	{fsnotify.Remove, OpRemove},
	{fsnotify.Rename, OpRename},
	{fsnotify.Chmod, OpChmod},
}

func fromFSNotify(o fsnotify.Op) Op {
	var op Op
	for _, m := range fsOps {
		if o.Has(m.from) {
			op |= m.to
		}
	}
	return op
}

var _ Watcher = (*FSNotifyWatcher)(nil)
