// Package reload turns bursts of file change events into single document
// reloads.
package reload

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the wait after the last event before reloading.
const DefaultQuietPeriod = 300 * time.Millisecond

// TriggerFunc receives the path and the number of events coalesced into
// the trigger.
type TriggerFunc func(path string, events int)

// Debouncer fires once per quiet period after the last observed event.
// An event arriving inside the quiet window restarts the window.
//
// Thread-safety: all methods are safe for concurrent use. The callback is
// never called concurrently with itself.
type Debouncer struct {
	mu        sync.Mutex
	quiet     time.Duration
	timer     *time.Timer
	pending   bool
	path      string
	events    int
	lastEvent time.Time
	seq       uint64 // detects stale timer callbacks
	stopped   bool
	callback  TriggerFunc

	fireMu sync.Mutex
}

// NewDebouncer creates a debouncer. A non-positive quiet period uses
// DefaultQuietPeriod.
func NewDebouncer(quiet time.Duration, callback TriggerFunc) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{quiet: quiet, callback: callback}
}

// OnEvent records an event for path and restarts the quiet window.
func (d *Debouncer) OnEvent(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending = true
	d.path = path
	d.events++
	d.lastEvent = time.Now()
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.fireMu.Lock()
	defer d.fireMu.Unlock()

	d.mu.Lock()
	if !d.pending || d.seq != seq || d.stopped {
		d.mu.Unlock()
		return
	}
	path, n := d.path, d.events
	d.pending = false
	d.events = 0
	d.timer = nil
	d.mu.Unlock()

	if d.callback != nil {
		d.callback(path, n)
	}
}

// Flush fires a pending trigger immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	seq := d.seq
	d.mu.Unlock()
	d.fire(seq)
}

// Pending reports whether a trigger is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// LastEvent returns the time of the most recent event.
func (d *Debouncer) LastEvent() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastEvent
}

// QuietPeriod returns the configured quiet period.
func (d *Debouncer) QuietPeriod() time.Duration {
	return d.quiet
}

// Stop cancels any pending trigger and ignores further events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
	d.events = 0
	d.stopped = true
}
