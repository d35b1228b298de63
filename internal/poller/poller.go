// Package poller repeatedly fetches the server-side batch status until the
// batch reaches a state that needs no further watching.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/schedule"
)

// DefaultInterval is the delay between two status checks.
const DefaultInterval = 2 * time.Second

// FetchFunc returns the current batch status.
type FetchFunc func(ctx context.Context) (*domain.Status, error)

// Handler receives the outcome of every check of the current run. The run
// generation lets the receiver discard results it no longer expects.
type Handler interface {
	HandleStatus(run uint64, status *domain.Status, stopped bool)
	HandlePollError(run uint64, err error)
}

// Poller owns the single status timer.
type Poller struct {
	sched    schedule.Scheduler
	interval time.Duration
	handler  Handler

	mu      sync.Mutex
	timer   schedule.Timer
	polling bool
	run     uint64
	cancel  context.CancelFunc
}

// New creates a poller. A zero interval uses DefaultInterval.
func New(sched schedule.Scheduler, interval time.Duration, handler Handler) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if sched == nil {
		sched = schedule.Real()
	}
	return &Poller{sched: sched, interval: interval, handler: handler}
}

// Start cancels any current run, performs one check immediately and keeps
// checking every interval until a stopping status or a fetch error. It
// returns the generation of the new run.
func (p *Poller) Start(ctx context.Context, fetch FetchFunc) uint64 {
	p.mu.Lock()
	p.stopLocked()
	p.run++
	run := p.run
	p.polling = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	slog.Debug("Status polling started", "run", run, "interval", p.interval)
	p.check(ctx, run, fetch)
	return run
}

// Stop ends the current run. Checks already in flight are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.polling {
		slog.Debug("Status polling stopped", "run", p.run)
	}
	p.polling = false
}

// Polling reports whether a run is active.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

// Run returns the generation of the latest run.
func (p *Poller) Run() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run
}

func (p *Poller) current(run uint64) bool {
	return p.polling && p.run == run
}

func (p *Poller) check(ctx context.Context, run uint64, fetch FetchFunc) {
	p.mu.Lock()
	if !p.current(run) {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()

	status, err := fetch(ctx)

	p.mu.Lock()
	if !p.current(run) {
		// Stopped or restarted while the fetch was in flight.
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.stopLocked()
		p.mu.Unlock()
		slog.Warn("Status poll failed", "run", run, "error", err)
		p.handler.HandlePollError(run, err)
		return
	}
	stop := status.Status.StopsPolling()
	if stop {
		p.stopLocked()
	} else {
		p.timer = p.sched.AfterFunc(p.interval, func() { p.check(ctx, run, fetch) })
	}
	p.mu.Unlock()

	p.handler.HandleStatus(run, status, stop)
}
