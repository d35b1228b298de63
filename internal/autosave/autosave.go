// Package autosave coalesces rapid prompt edits into a single deferred save.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaki95/feedback-importer/internal/schedule"
)

// DefaultDelay is the quiescence window after the last edit.
const DefaultDelay = time.Second

// SaveFunc persists an edit.
type SaveFunc[T any] func(ctx context.Context, edit T) error

// Debouncer defers saves until edits stop for the configured delay.
type Debouncer[T any] struct {
	sched schedule.Scheduler
	delay time.Duration
	save  SaveFunc[T]
	ctx   context.Context

	mu       sync.Mutex
	timer    schedule.Timer
	pending  *T
	inflight chan struct{}
}

// New creates a debouncer. Deferred saves run with ctx.
func New[T any](ctx context.Context, sched schedule.Scheduler, delay time.Duration, save SaveFunc[T]) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if sched == nil {
		sched = schedule.Real()
	}
	return &Debouncer[T]{sched: sched, delay: delay, save: save, ctx: ctx}
}

// Schedule records edit as the latest one and restarts the window.
func (d *Debouncer[T]) Schedule(edit T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = &edit
	d.timer = d.sched.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	edit, ok := d.takeLocked()
	if !ok {
		d.mu.Unlock()
		return
	}
	done := make(chan struct{})
	d.inflight = done
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.inflight == done {
			d.inflight = nil
		}
		d.mu.Unlock()
		close(done)
	}()

	if err := d.save(d.ctx, edit); err != nil {
		slog.Warn("Deferred prompt save failed", "error", err)
	}
}

// Flush waits for a deferred save already running, then cancels the window
// and saves the pending edit, if any, before returning.
func (d *Debouncer[T]) Flush(ctx context.Context) error {
	d.mu.Lock()
	done := d.inflight
	d.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	edit, ok := d.take()
	if !ok {
		return nil
	}
	return d.save(ctx, edit)
}

// Cancel drops the pending edit without saving it.
func (d *Debouncer[T]) Cancel() {
	d.take()
}

// Pending reports whether an edit is waiting to be saved.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer[T]) take() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.takeLocked()
}

func (d *Debouncer[T]) takeLocked() (T, bool) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.pending == nil {
		var zero T
		return zero, false
	}
	edit := *d.pending
	d.pending = nil
	return edit, true
}
