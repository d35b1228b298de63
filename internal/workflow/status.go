package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/steps"
)

// startPolling watches sess's batch. Any earlier run is cancelled first.
func (o *Orchestrator) startPolling(sess session) {
	if !o.apply(sess, func(s *State) { s.Polling = true }) {
		return
	}
	o.mu.Lock()
	o.pollSess = sess
	o.mu.Unlock()

	o.poller.Start(o.ctx, func(ctx context.Context) (*domain.Status, error) {
		return o.api.Status(ctx, sess.batchID)
	})
}

func (o *Orchestrator) polledSession() session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pollSess
}

// HandleStatus applies a polled status. It implements poller.Handler.
func (o *Orchestrator) HandleStatus(run uint64, st *domain.Status, stopped bool) {
	if run != o.poller.Run() {
		return
	}
	o.observe(o.ctx, o.polledSession().within(run), st, stopped)
}

// HandlePollError surfaces a failed status check. The poller has already
// stopped; callers may start it again through another action.
func (o *Orchestrator) HandlePollError(run uint64, err error) {
	if run != o.poller.Run() {
		return
	}
	sess := o.polledSession().within(run)
	o.fail(sess, "Status check failed", err)
	o.apply(sess, func(s *State) { s.Polling = false })
}

// observe recomputes every step status from st, then loads the payload the
// new status makes available. When sess is bound to a poll run, nothing is
// written once a newer run has started.
func (o *Orchestrator) observe(ctx context.Context, sess session, st *domain.Status, stopped bool) {
	board, current, ok := steps.Derive(st.Status)
	if !ok {
		slog.Warn("Ignoring unknown batch status", "batchId", sess.batchID, "status", st.Status)
		return
	}

	if !o.apply(sess, func(s *State) {
		s.Steps = board
		s.Current = current
		s.BatchStatus = st.Status
		s.Progress = st.Progress
		if st.PipelineStatus != "" {
			s.PipelineStatus = st.PipelineStatus
		}
		s.ErrorMessage = st.ErrorMessage
	}) {
		return
	}
	slog.Debug("Batch status observed", "batchId", sess.batchID, "status", st.Status, "step", current)

	switch {
	case st.Status == domain.BatchPromptReady:
		o.loadPromptText(ctx, sess)
	case st.Status == domain.BatchMapping:
		o.loadMappingPreview(ctx, sess)
	case st.Status.IsTerminal():
		o.loadResultPreview(ctx, sess)
		if stopped {
			o.notifyTerminal(st)
		}
	}

	// A state with Polling false already carries its payload.
	if stopped {
		o.apply(sess, func(s *State) { s.Polling = false })
	}
}

func (o *Orchestrator) notifyTerminal(st *domain.Status) {
	switch st.PipelineStatus {
	case domain.PipelineProcessing:
		o.notify(notify.LevelInfo, "Processing started", "Semantic processing is running for this batch.")
		return
	case domain.PipelineDone:
		o.notify(notify.LevelSuccess, "Processing finished", "Semantic processing finished for this batch.")
		return
	case domain.PipelineFailed:
		o.notify(notify.LevelError, "Processing failed", orDefault(st.ErrorMessage, "Semantic processing failed."))
		return
	}

	counts := "No records were processed."
	if p := st.Progress; p != nil {
		counts = fmt.Sprintf("%d records: %d new, %d duplicate, %d failed.", p.Total, p.New, p.Duplicate, p.Failed)
	}
	switch st.Status {
	case domain.BatchCompleted:
		slog.Info("Import completed", "batchId", st.BatchID)
		o.notify(notify.LevelSuccess, "Import completed", counts)
	case domain.BatchPartiallyCompleted:
		slog.Warn("Import partially completed", "batchId", st.BatchID, "error", st.ErrorMessage)
		o.notify(notify.LevelWarning, "Import partially completed", joinMessage(counts, st.ErrorMessage))
	case domain.BatchFailed:
		slog.Error("Import failed", "batchId", st.BatchID, "error", st.ErrorMessage)
		o.notify(notify.LevelError, "Import failed", orDefault(st.ErrorMessage, "The import failed."))
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func joinMessage(a, b string) string {
	if b == "" {
		return a
	}
	return a + " " + b
}
