package app

import (
	"sync/atomic"
	"time"
)

// timing accumulates durations lock-free.
type timing struct {
	count atomic.Uint64
	total atomic.Int64
	max   atomic.Int64
	last  atomic.Int64
}

func (t *timing) record(d time.Duration) {
	ns := d.Nanoseconds()
	t.count.Add(1)
	t.total.Add(ns)
	t.last.Store(ns)
	for {
		old := t.max.Load()
		if ns <= old || t.max.CompareAndSwap(old, ns) {
			return
		}
	}
}

func (t *timing) snapshot() Timing {
	return Timing{
		Count: t.count.Load(),
		Total: time.Duration(t.total.Load()),
		Max:   time.Duration(t.max.Load()),
		Last:  time.Duration(t.last.Load()),
	}
}

// Timing summarizes one kind of timed work.
type Timing struct {
	Count uint64
	Total time.Duration
	Max   time.Duration
	Last  time.Duration
}

// Avg returns the mean duration, or zero before the first sample.
func (t Timing) Avg() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Metrics counts what the viewer did during one run. Frame and input
// timings come from the event loop; the counters may be bumped anywhere.
type Metrics struct {
	started time.Time

	frames  timing
	input   timing
	renders timing

	renderFailures atomic.Uint64
	reloads        atomic.Uint64
	reloadFailures atomic.Uint64
	searches       atomic.Uint64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

// RecordFrame records the time taken to draw one frame.
func (m *Metrics) RecordFrame(d time.Duration) { m.frames.record(d) }

// RecordInput records the time taken to handle one input event.
func (m *Metrics) RecordInput(d time.Duration) { m.input.record(d) }

// RecordRender records a render completion delivered to the loop. Failed
// renders are counted but not timed.
func (m *Metrics) RecordRender(d time.Duration, failed bool) {
	if failed {
		m.renderFailures.Add(1)
		return
	}
	m.renders.record(d)
}

func (m *Metrics) RecordReload(failed bool) {
	if failed {
		m.reloadFailures.Add(1)
		return
	}
	m.reloads.Add(1)
}

func (m *Metrics) RecordSearch() { m.searches.Add(1) }

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration
	Frames         Timing
	Input          Timing
	Renders        Timing
	RenderFailures uint64
	Reloads        uint64
	ReloadFailures uint64
	Searches       uint64
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime:         time.Since(m.started),
		Frames:         m.frames.snapshot(),
		Input:          m.input.snapshot(),
		Renders:        m.renders.snapshot(),
		RenderFailures: m.renderFailures.Load(),
		Reloads:        m.reloads.Load(),
		ReloadFailures: m.reloadFailures.Load(),
		Searches:       m.searches.Load(),
	}
}

// RenderFailureRate returns the percentage of failed render jobs.
func (s MetricsSnapshot) RenderFailureRate() float64 {
	total := s.Renders.Count + s.RenderFailures
	if total == 0 {
		return 0
	}
	return float64(s.RenderFailures) / float64(total) * 100
}

// Timer measures elapsed time from its creation.
type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
