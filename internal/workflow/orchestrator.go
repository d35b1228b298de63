package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaki95/feedback-importer/internal/autosave"
	"github.com/jaki95/feedback-importer/internal/batch"
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/poller"
	"github.com/jaki95/feedback-importer/internal/progress"
	"github.com/jaki95/feedback-importer/internal/schedule"
)

// DefaultUploadCompleteDelay is how long the upload-complete state stays
// visible before the workflow moves on to the preview.
const DefaultUploadCompleteDelay = 600 * time.Millisecond

// API is the batch service as seen by the orchestrator.
type API interface {
	Upload(ctx context.Context, file *batch.File, source string, tracker *progress.Tracker) (*domain.UploadResult, error)
	DataPreview(ctx context.Context, batchID string) (*domain.DataPreview, error)
	BuildPrompt(ctx context.Context, batchID string, dedupColumns []string) (*domain.PromptPreview, error)
	UpdatePrompt(ctx context.Context, batchID, text string) (string, error)
	GenerateMapping(ctx context.Context, batchID string, dedupColumns []string) error
	PromptText(ctx context.Context, batchID string) (*domain.PromptPreview, error)
	MappingPreview(ctx context.Context, batchID string) (*domain.MappingPreview, error)
	ResultPreview(ctx context.Context, batchID string) (*domain.ResultPreview, error)
	Status(ctx context.Context, batchID string) (*domain.Status, error)
	ConfirmMapping(ctx context.Context, batchID string, req domain.ConfirmMappingRequest) error
	ProcessPipeline(ctx context.Context, batchID string) (*domain.PipelineResult, error)
}

// Options tunes the orchestrator. Zero values use the defaults.
type Options struct {
	Scheduler           schedule.Scheduler
	Notifier            notify.Notifier
	PollInterval        time.Duration
	AutosaveDelay       time.Duration
	UploadCompleteDelay time.Duration
}

// Orchestrator is the state machine behind the import wizard.
type Orchestrator struct {
	api         API
	notifier    notify.Notifier
	sched       schedule.Scheduler
	uploadDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	poller   *poller.Poller
	autosave *autosave.Debouncer[promptEdit]

	mu           sync.Mutex
	state        State
	gen          uint64
	pollSess     session
	uploadCancel context.CancelFunc
	listeners    []listener
	nextListener uint64
}

type listener struct {
	id uint64
	fn func(State)
}

// session identifies the batch an asynchronous continuation belongs to.
// Continuations of a status poll also carry the poll run they observed.
type session struct {
	gen     uint64
	batchID string
	run     uint64
	polled  bool
}

// within returns sess bound to poll run.
func (sess session) within(run uint64) session {
	sess.run = run
	sess.polled = true
	return sess
}

// New creates an orchestrator in the start configuration.
func New(api API, opts Options) *Orchestrator {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Real()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if opts.UploadCompleteDelay <= 0 {
		opts.UploadCompleteDelay = DefaultUploadCompleteDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		api:         api,
		notifier:    opts.Notifier,
		sched:       opts.Scheduler,
		uploadDelay: opts.UploadCompleteDelay,
		ctx:         ctx,
		cancel:      cancel,
		state:       initialState(),
	}
	o.poller = poller.New(opts.Scheduler, opts.PollInterval, o)
	o.autosave = autosave.New(ctx, opts.Scheduler, opts.AutosaveDelay, o.savePrompt)
	return o
}

// AddListener registers fn to receive a snapshot after every state change.
// The returned func removes it again.
func (o *Orchestrator) AddListener(fn func(State)) (remove func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextListener++
	id := o.nextListener
	o.listeners = append(o.listeners, listener{id: id, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, l := range o.listeners {
			if l.id == id {
				o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close stops polling and drops any pending prompt save.
func (o *Orchestrator) Close() {
	o.poller.Stop()
	o.autosave.Cancel()
	o.cancel()
}

// live reports whether sess still owns the workflow.
func (o *Orchestrator) live(sess session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen == sess.gen && o.state.BatchID == sess.batchID
}

// current returns the session of the active batch, or false when no batch
// has been uploaded.
func (o *Orchestrator) current() (session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.BatchID == "" {
		return session{}, false
	}
	return session{gen: o.gen, batchID: o.state.BatchID}, true
}

// update runs fn on the state when valid still holds, then notifies listeners.
func (o *Orchestrator) update(valid func() bool, fn func(*State)) bool {
	o.mu.Lock()
	if !valid() {
		o.mu.Unlock()
		return false
	}
	fn(&o.state)
	snap := o.state
	listeners := make([]listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
	return true
}

// apply mutates state on behalf of sess; stale sessions are dropped. A
// session bound to a poll run is also stale once another run has started.
func (o *Orchestrator) apply(sess session, fn func(*State)) bool {
	ok := o.update(func() bool {
		if sess.polled && sess.run != o.poller.Run() {
			return false
		}
		return o.gen == sess.gen && o.state.BatchID == sess.batchID
	}, fn)
	if !ok {
		slog.Debug("Discarding stale workflow update", "batchId", sess.batchID, "generation", sess.gen, "run", sess.run)
	}
	return ok
}

func (o *Orchestrator) applyGen(gen uint64, fn func(*State)) bool {
	return o.update(func() bool { return o.gen == gen }, fn)
}

// guard evaluates check against the current state.
func (o *Orchestrator) guard(check func(State) bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return check(o.state)
}

// fail records err for sess and surfaces it. Errors from a stale session are
// treated as cancellations and swallowed.
func (o *Orchestrator) fail(sess session, title string, err error) error {
	msg := batch.UserMessage(err)
	if !o.apply(sess, func(s *State) { s.ErrorMessage = msg }) {
		return nil
	}
	slog.Error(title, "batchId", sess.batchID, "error", err, "kind", batch.KindOf(err).String())
	o.notify(notify.LevelError, title, msg)
	return err
}

func (o *Orchestrator) notify(level notify.Level, title, message string) {
	o.notifier.Notify(notify.Notification{
		Level:   level,
		Title:   title,
		Message: message,
		Time:    time.Now(),
	})
}
