package aggregate

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without another Trigger.
// At most one run is pending; a run that already started always completes
// and runs never overlap.
type Debouncer struct {
	delay time.Duration
	fn    func(ctx context.Context)
	ctx   context.Context

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool

	runMu sync.Mutex
}

func NewDebouncer(ctx context.Context, delay time.Duration, fn func(ctx context.Context)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn, ctx: ctx}
}

// Trigger replaces any pending run with one scheduled delay from now.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.run(gen) })
}

// Pending reports whether a run is scheduled but not started.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) run(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed {
		// superseded by a later Trigger
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.fn(d.ctx)
}

// Close drops a pending run and waits for an in-flight one.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.runMu.Lock()
	d.runMu.Unlock()
}
