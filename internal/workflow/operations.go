package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaki95/feedback-importer/internal/batch"
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/progress"
	"github.com/jaki95/feedback-importer/internal/steps"
)

// Upload sends file to the batch service. On success the batch id is stored,
// the upload-complete state is shown briefly and the workflow then moves to
// the preview step. A failed upload leaves the workflow on the upload step.
func (o *Orchestrator) Upload(ctx context.Context, file *batch.File, source string) error {
	if file == nil {
		return ErrNoFile
	}

	o.mu.Lock()
	switch {
	case o.state.Uploading:
		o.mu.Unlock()
		return ErrUploadInProgress
	case o.state.BatchID != "":
		o.mu.Unlock()
		return ErrBatchExists
	}
	gen := o.gen
	ctx, cancel := context.WithCancel(ctx)
	o.uploadCancel = cancel
	o.mu.Unlock()
	defer cancel()

	o.applyGen(gen, func(s *State) {
		s.Uploading = true
		s.UploadPercent = 0
		s.UploadDone = false
		s.ErrorMessage = ""
	})

	tracker := progress.NewTracker()
	tracker.AddListener(func(e progress.Event) {
		if e.Stage != progress.StageUploading {
			return
		}
		o.applyGen(gen, func(s *State) { s.UploadPercent = e.Percent })
	})

	res, err := o.api.Upload(ctx, file, source, tracker)

	o.mu.Lock()
	o.uploadCancel = nil
	o.mu.Unlock()

	if err != nil {
		msg := batch.UserMessage(err)
		if !o.applyGen(gen, func(s *State) {
			s.Uploading = false
			s.UploadPercent = 0
			s.ErrorMessage = msg
		}) {
			return nil
		}
		slog.Error("Upload failed", "file", file.Name, "error", err, "kind", batch.KindOf(err).String())
		o.notify(notify.LevelError, "Upload failed", msg)
		return err
	}

	if !o.applyGen(gen, func(s *State) {
		s.BatchID = res.BatchID
		s.Upload = res
		s.Uploading = false
		s.UploadPercent = 100
		s.UploadDone = true
	}) {
		slog.Warn("Upload finished after reset, ignoring batch", "batchId", res.BatchID)
		return nil
	}
	slog.Info("Upload complete", "batchId", res.BatchID, "file", file.Name, "rows", res.FileInfo.RowCount)

	if res.DuplicateBatchID != "" {
		o.notify(notify.LevelWarning, "Duplicate file",
			fmt.Sprintf("This file has the same content as batch %s. The import continues.", res.DuplicateBatchID))
	}

	sess := session{gen: gen, batchID: res.BatchID}
	o.sched.AfterFunc(o.uploadDelay, func() {
		o.apply(sess, func(s *State) {
			s.UploadDone = false
			s.Steps = s.Steps.Set(steps.Upload, steps.Completed).Set(steps.Preview, steps.Active)
			s.Current = steps.Preview
		})
	})
	return nil
}

// CancelUpload aborts an upload in flight.
func (o *Orchestrator) CancelUpload() {
	o.mu.Lock()
	cancel := o.uploadCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// LoadDataPreview fetches preview rows and column statistics.
func (o *Orchestrator) LoadDataPreview(ctx context.Context) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	preview, err := o.api.DataPreview(ctx, sess.batchID)
	if err != nil {
		return o.fail(sess, "Could not load data preview", err)
	}
	o.apply(sess, func(s *State) { s.DataPreview = preview })
	return nil
}

// BuildPrompt submits the preview step. A cache hit means a confirmed mapping
// template was reused, so the prompt step is skipped and the mapping step
// becomes active straight away.
func (o *Orchestrator) BuildPrompt(ctx context.Context, dedupColumns []string) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	if !o.guard(func(s State) bool { return s.Steps.Get(steps.Preview) == steps.Active }) {
		return fmt.Errorf("build prompt: %w", ErrNotAllowed)
	}

	prompt, err := o.api.BuildPrompt(ctx, sess.batchID, dedupColumns)
	if err != nil {
		return o.fail(sess, "Could not build prompt", err)
	}

	dedup := append([]string(nil), dedupColumns...)
	if !o.apply(sess, func(s *State) {
		s.Prompt = prompt
		s.DedupColumns = dedup
		s.ErrorMessage = ""
		s.Steps = s.Steps.Set(steps.Preview, steps.Completed)
		if prompt.CacheHit {
			s.Steps = s.Steps.Set(steps.Prompting, steps.Completed).Set(steps.Mapping, steps.Active)
			s.Current = steps.Mapping
			return
		}
		s.Steps = s.Steps.Set(steps.Prompting, steps.Active)
		s.Current = steps.Prompting
	}) {
		return nil
	}

	if prompt.CacheHit {
		slog.Info("Prompt cache hit, skipping to mapping", "batchId", sess.batchID, "template", prompt.TemplateName)
		o.notify(notify.LevelInfo, "Mapping template reused",
			fmt.Sprintf("A confirmed mapping (%s) matches these columns.", prompt.TemplateName))
		return o.loadMappingPreview(ctx, sess)
	}
	return nil
}

// UpdatePrompt records an edit of the prompt text. The save is deferred until
// edits pause; TriggerMapping flushes it.
func (o *Orchestrator) UpdatePrompt(text string) {
	sess, ok := o.current()
	if !ok {
		return
	}
	if !o.apply(sess, func(s *State) {
		p := domain.PromptPreview{}
		if s.Prompt != nil {
			p = *s.Prompt
		}
		p.PromptText = text
		s.Prompt = &p
	}) {
		return
	}
	o.autosave.Schedule(promptEdit{sess: sess, text: text})
}

// promptEdit is a prompt text together with the batch it was edited for.
type promptEdit struct {
	sess session
	text string
}

func (o *Orchestrator) savePrompt(ctx context.Context, edit promptEdit) error {
	sess := edit.sess
	if !o.live(sess) {
		slog.Debug("Dropping prompt edit of a previous batch", "batchId", sess.batchID)
		return nil
	}
	saved, err := o.api.UpdatePrompt(ctx, sess.batchID, edit.text)
	if err != nil {
		return o.fail(sess, "Could not save prompt", err)
	}
	slog.Debug("Prompt saved", "batchId", sess.batchID, "length", len(saved))
	return nil
}

// TriggerMapping saves any pending prompt edit and then asks the service to
// generate the column mapping, watching the batch until it is ready.
func (o *Orchestrator) TriggerMapping(ctx context.Context) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	if !o.guard(func(s State) bool { return s.Steps.Get(steps.Prompting) == steps.Active }) {
		return fmt.Errorf("trigger mapping: %w", ErrNotAllowed)
	}

	if err := o.autosave.Flush(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	dedup := o.state.DedupColumns
	o.mu.Unlock()

	if err := o.api.GenerateMapping(ctx, sess.batchID, dedup); err != nil {
		return o.fail(sess, "Could not start mapping generation", err)
	}

	if !o.apply(sess, func(s *State) {
		s.ErrorMessage = ""
		s.Mapping = nil
		s.Steps = s.Steps.Set(steps.Prompting, steps.Loading)
		s.Current = steps.Prompting
	}) {
		return nil
	}
	o.startPolling(sess)
	return nil
}

// ConfirmMapping submits the approved column targets and starts the import.
func (o *Orchestrator) ConfirmMapping(ctx context.Context, targets map[string]string) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	if len(targets) == 0 {
		return ErrEmptyMapping
	}
	if !o.guard(func(s State) bool { return s.Steps.Get(steps.Mapping) == steps.Active }) {
		return fmt.Errorf("confirm mapping: %w", ErrNotAllowed)
	}

	if err := o.api.ConfirmMapping(ctx, sess.batchID, domain.NewConfirmMappingRequest(targets)); err != nil {
		return o.fail(sess, "Could not confirm mapping", err)
	}

	if !o.apply(sess, func(s *State) {
		s.ErrorMessage = ""
		s.Steps = s.Steps.Set(steps.Mapping, steps.Completed).Set(steps.Importing, steps.Loading)
		s.Current = steps.Importing
	}) {
		return nil
	}
	o.startPolling(sess)
	return nil
}

// TriggerPipeline requests semantic processing of an imported batch. It is
// only offered on the result step, so no step changes locally.
func (o *Orchestrator) TriggerPipeline(ctx context.Context) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	if !o.guard(func(s State) bool { return s.Steps.Get(steps.Result).Done() }) {
		return fmt.Errorf("trigger pipeline: %w", ErrNotAllowed)
	}

	res, err := o.api.ProcessPipeline(ctx, sess.batchID)
	if err != nil {
		return o.fail(sess, "Could not start processing pipeline", err)
	}
	if !o.apply(sess, func(s *State) { s.PipelineStatus = res.PipelineStatus }) {
		return nil
	}
	o.startPolling(sess)
	return nil
}

// Resume attaches the workflow to an existing batch and applies its current
// status. Polling continues only while the service is working on the batch
// by itself; a batch waiting for the user is shown as is.
func (o *Orchestrator) Resume(ctx context.Context, batchID string) error {
	var (
		sess     session
		conflict error
		attached bool
	)
	o.update(func() bool {
		switch {
		case o.state.BatchID != "" && o.state.BatchID != batchID:
			conflict = ErrBatchExists
		case o.state.Uploading:
			conflict = ErrUploadInProgress
		}
		return conflict == nil
	}, func(s *State) {
		attached = s.BatchID == ""
		s.BatchID = batchID
		sess = session{gen: o.gen, batchID: batchID}
	})
	if conflict != nil {
		return conflict
	}
	observed := sess.within(o.poller.Run())

	st, err := o.api.Status(ctx, batchID)
	if err != nil {
		err = o.fail(observed, "Could not load batch status", err)
		if attached {
			o.apply(observed, func(s *State) { s.BatchID = "" })
		}
		return err
	}
	watch := st.Status.Progressing()
	o.observe(ctx, observed, st, !watch)
	if watch {
		o.startPolling(sess)
	}
	return nil
}

// Reset stops polling, drops the batch and all payloads and returns to the
// start configuration. Work still in flight for the old batch is discarded
// when it completes.
func (o *Orchestrator) Reset() {
	o.poller.Stop()
	o.autosave.Cancel()
	o.update(func() bool { return true }, func(s *State) {
		o.gen++
		if o.uploadCancel != nil {
			o.uploadCancel()
			o.uploadCancel = nil
		}
		*s = initialState()
	})
	slog.Info("Workflow reset")
}

// HandleStepClick switches the visible step. Earlier steps are always
// reachable; the current or later steps only once completed or skipped, or
// when the step is the live one holding the active status.
func (o *Orchestrator) HandleStepClick(step steps.Step) bool {
	target := steps.Index(step)
	if target < 0 {
		return false
	}
	return o.update(func() bool {
		if target < steps.Index(o.state.Current) {
			return true
		}
		if live, ok := o.state.Steps.Active(); ok && live == step {
			return true
		}
		return o.state.Steps.Get(step).Done()
	}, func(s *State) {
		s.Current = step
	})
}

// LoadPromptText refreshes the prompt from the service.
func (o *Orchestrator) LoadPromptText(ctx context.Context) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	return o.loadPromptText(ctx, sess)
}

// LoadMappingPreview refreshes the suggested mapping from the service.
func (o *Orchestrator) LoadMappingPreview(ctx context.Context) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	return o.loadMappingPreview(ctx, sess)
}

// LoadResultPreview refreshes the imported sample from the service.
func (o *Orchestrator) LoadResultPreview(ctx context.Context) error {
	sess, ok := o.current()
	if !ok {
		return nil
	}
	return o.loadResultPreview(ctx, sess)
}

func (o *Orchestrator) loadPromptText(ctx context.Context, sess session) error {
	prompt, err := o.api.PromptText(ctx, sess.batchID)
	if err != nil {
		return o.fail(sess, "Could not load prompt", err)
	}
	o.apply(sess, func(s *State) { s.Prompt = prompt })
	return nil
}

func (o *Orchestrator) loadMappingPreview(ctx context.Context, sess session) error {
	mapping, err := o.api.MappingPreview(ctx, sess.batchID)
	if err != nil {
		return o.fail(sess, "Could not load mapping preview", err)
	}
	o.apply(sess, func(s *State) { s.Mapping = mapping })
	return nil
}

func (o *Orchestrator) loadResultPreview(ctx context.Context, sess session) error {
	result, err := o.api.ResultPreview(ctx, sess.batchID)
	if err != nil {
		return o.fail(sess, "Could not load import result", err)
	}
	o.apply(sess, func(s *State) { s.Result = result })
	return nil
}
