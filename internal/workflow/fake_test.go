package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaki95/feedback-importer/internal/batch"
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/progress"
	"github.com/jaki95/feedback-importer/internal/schedule"
)

// fakeAPI is an in-memory batch service with scripted responses.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	uploadResult *domain.UploadResult
	uploadErr    error
	prompt       *domain.PromptPreview
	mapping      *domain.MappingPreview
	result       *domain.ResultPreview
	generateErr  error

	statuses  []domain.Status
	statusErr error
	onStatus  func()

	saved          []string
	savedTo        []string
	onUpdatePrompt func(text string) error

	onMappingPreview func()

	confirmed domain.ConfirmMappingRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		uploadResult: &domain.UploadResult{BatchID: "b1", FileInfo: domain.FileInfo{Name: "feedback.csv", RowCount: 100}},
		prompt:       &domain.PromptPreview{PromptText: "Map the columns", Source: domain.PromptSourceGenerated},
		mapping: &domain.MappingPreview{Mappings: []domain.ColumnMapping{
			{Column: "text", Target: domain.FieldContent, Confidence: 0.95},
		}},
		result: &domain.ResultPreview{Records: []map[string]string{{"content": "great"}}},
	}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// queue scripts the statuses returned by successive Status calls; the last
// one repeats.
func (f *fakeAPI) queue(statuses ...domain.BatchStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = nil
	for _, s := range statuses {
		f.statuses = append(f.statuses, domain.Status{BatchID: "b1", Status: s})
	}
}

func (f *fakeAPI) queueStatus(statuses ...domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

func (f *fakeAPI) Upload(ctx context.Context, file *batch.File, source string, tracker *progress.Tracker) (*domain.UploadResult, error) {
	f.record("upload:" + source)
	if f.uploadErr != nil {
		tracker.SetError(f.uploadErr)
		return nil, f.uploadErr
	}
	tracker.Update(file.Size/2, file.Size, "Uploading")
	tracker.Update(file.Size, file.Size, "Uploading")
	tracker.Complete("done")
	res := *f.uploadResult
	return &res, nil
}

func (f *fakeAPI) DataPreview(ctx context.Context, batchID string) (*domain.DataPreview, error) {
	f.record("data-preview")
	return &domain.DataPreview{Columns: []string{"text"}, TotalRows: 100}, nil
}

func (f *fakeAPI) BuildPrompt(ctx context.Context, batchID string, dedupColumns []string) (*domain.PromptPreview, error) {
	f.record("build-prompt:" + strings.Join(dedupColumns, ","))
	p := *f.prompt
	return &p, nil
}

func (f *fakeAPI) UpdatePrompt(ctx context.Context, batchID, text string) (string, error) {
	f.record("update-prompt")
	f.mu.Lock()
	f.saved = append(f.saved, text)
	f.savedTo = append(f.savedTo, batchID)
	hook := f.onUpdatePrompt
	f.mu.Unlock()
	if hook != nil {
		if err := hook(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (f *fakeAPI) GenerateMapping(ctx context.Context, batchID string, dedupColumns []string) error {
	f.record("generate-mapping")
	return f.generateErr
}

func (f *fakeAPI) PromptText(ctx context.Context, batchID string) (*domain.PromptPreview, error) {
	f.record("prompt-text")
	p := *f.prompt
	return &p, nil
}

func (f *fakeAPI) MappingPreview(ctx context.Context, batchID string) (*domain.MappingPreview, error) {
	f.record("mapping-preview")
	f.mu.Lock()
	hook := f.onMappingPreview
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.mapping, nil
}

func (f *fakeAPI) ResultPreview(ctx context.Context, batchID string) (*domain.ResultPreview, error) {
	f.record("result-preview")
	return f.result, nil
}

func (f *fakeAPI) Status(ctx context.Context, batchID string) (*domain.Status, error) {
	f.record("status")
	f.mu.Lock()
	hook := f.onStatus
	err := f.statusErr
	var st domain.Status
	if len(f.statuses) > 0 {
		st = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (f *fakeAPI) ConfirmMapping(ctx context.Context, batchID string, req domain.ConfirmMappingRequest) error {
	f.record("confirm-mapping")
	f.mu.Lock()
	f.confirmed = req
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) ProcessPipeline(ctx context.Context, batchID string) (*domain.PipelineResult, error) {
	f.record("pipeline")
	return &domain.PipelineResult{BatchID: batchID, PipelineStatus: domain.PipelineProcessing}, nil
}

type harness struct {
	o     *Orchestrator
	api   *fakeAPI
	clock *schedule.Manual
	notes *notify.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{api: newFakeAPI(), clock: schedule.NewManual(), notes: &notify.Recorder{}}
	h.o = New(h.api, Options{
		Scheduler:     h.clock,
		Notifier:      h.notes,
		PollInterval:  2 * time.Second,
		AutosaveDelay: time.Second,
	})
	t.Cleanup(h.o.Close)
	return h
}

func testFile(size int) *batch.File {
	return &batch.File{Name: "feedback.csv", Size: int64(size), Content: strings.NewReader(strings.Repeat("x", size))}
}

// uploaded runs a successful upload and waits out the completion delay.
func (h *harness) uploaded(t *testing.T) {
	t.Helper()
	require.NoError(t, h.o.Upload(context.Background(), testFile(2<<20), "weibo"))
	h.clock.Advance(DefaultUploadCompleteDelay)
}

// prompting brings the workflow to the prompt step without a cache hit.
func (h *harness) prompting(t *testing.T) {
	t.Helper()
	h.uploaded(t)
	require.NoError(t, h.o.BuildPrompt(context.Background(), nil))
}
