package job

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaki95/feedback-importer/internal/dataset"
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/mapping"
	"github.com/jaki95/feedback-importer/internal/storage"
)

var transitions = map[domain.BatchStatus][]domain.BatchStatus{
	domain.BatchPending:           {domain.BatchPromptReady, domain.BatchMapping, domain.BatchFailed},
	domain.BatchPromptReady:       {domain.BatchPromptReady, domain.BatchGeneratingMapping, domain.BatchFailed},
	domain.BatchGeneratingMapping: {domain.BatchMapping, domain.BatchFailed},
	domain.BatchMapping:           {domain.BatchImporting, domain.BatchFailed},
	domain.BatchImporting:         {domain.BatchCompleted, domain.BatchPartiallyCompleted, domain.BatchFailed},
}

// Manager owns every import batch and runs their background work
type Manager struct {
	store  storage.Storage
	mapper mapping.Mapper
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	batches    map[string]*Batch
	byChecksum map[string]string
	templates  map[string]Template
	records    *RecordStore
}

// NewManager creates a new batch manager
func NewManager(store storage.Storage, mapper mapping.Mapper, opts Options) *Manager {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if mapper == nil {
		mapper = mapping.KeywordMapper{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:      store,
		mapper:     mapper,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		batches:    make(map[string]*Batch),
		byChecksum: make(map[string]string),
		templates:  make(map[string]Template),
		records:    NewRecordStore(),
	}
}

// Create parses an uploaded file, stores it and registers a pending batch.
// A file whose content matches an earlier upload is accepted and reported
// through DuplicateBatchID.
func (m *Manager) Create(ctx context.Context, fileName, source string, data []byte) (*domain.UploadResult, error) {
	format, err := dataset.DetectFormat(fileName, data[:min(len(data), 512)])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	table, err := dataset.Parse(format, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	id := uuid.NewString()
	key := path.Join("batches", id, path.Base(fileName))
	if err := m.store.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	checksum := dataset.Fingerprint(data)
	b := &Batch{
		ID:     id,
		Source: source,
		File: domain.FileInfo{
			Name:     path.Base(fileName),
			Size:     int64(len(data)),
			Format:   string(format),
			RowCount: len(table.Rows),
			Checksum: checksum,
		},
		Status:     domain.BatchPending,
		Pipeline:   domain.PipelineIdle,
		StartTime:  time.Now(),
		storageKey: key,
		signature:  table.Signature(),
		table:      table,
	}

	m.mu.Lock()
	duplicate := m.byChecksum[checksum]
	if duplicate == "" {
		m.byChecksum[checksum] = id
	}
	m.batches[id] = b
	m.mu.Unlock()

	slog.Info("Batch created", "batchId", id, "file", b.File.Name, "format", format, "rows", b.File.RowCount, "duplicateOf", duplicate)
	return &domain.UploadResult{BatchID: id, FileInfo: b.File, DuplicateBatchID: duplicate}, nil
}

// Get retrieves a batch by ID
func (m *Manager) Get(id string) (*Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (m *Manager) get(id string) (*Batch, error) {
	b, exists := m.batches[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

// Status returns the polling payload of a batch
func (m *Manager) Status(id string) (*domain.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return b.status(), nil
}

// List lists batches with pagination, newest first
func (m *Manager) List(page, pageSize int) *Response {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	m.mu.RLock()
	batches := make([]*Batch, 0, len(m.batches))
	for _, b := range m.batches {
		cp := *b
		batches = append(batches, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(batches, func(i, j int) bool {
		return batches[i].StartTime.After(batches[j].StartTime)
	})

	total := len(batches)
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	if start >= total {
		batches, start, end = []*Batch{}, 0, 0
	}

	return &Response{
		Batches:    batches[start:end],
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}

// Cancel stops the background work of a batch and marks it failed
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.get(id)
	if err != nil {
		return err
	}
	if b.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrInvalidState, b.Status)
	}
	if b.cancelFunc != nil {
		b.cancelFunc()
		b.cancelFunc = nil
	}
	b.finish(domain.BatchFailed, "Import cancelled by user")
	slog.Info("Batch cancelled", "batchId", id)
	return nil
}

// Wait blocks until all background work has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels background work and waits for it to stop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// transition moves b to status. Callers hold m.mu.
func (m *Manager) transition(b *Batch, status domain.BatchStatus) error {
	for _, allowed := range transitions[b.Status] {
		if allowed == status {
			slog.Debug("Batch status changed", "batchId", b.ID, "from", b.Status, "to", status)
			b.Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, b.Status, status)
}

// background runs fn for batch id with a context that Cancel and Close stop.
func (m *Manager) background(b *Batch, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(m.ctx)
	b.cancelFunc = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		fn(ctx)
	}()
}

// table returns the parsed file of b, reloading it from storage when the
// in-memory copy was dropped.
func (m *Manager) table(ctx context.Context, b *Batch) (*dataset.Table, error) {
	if b.table != nil {
		return b.table, nil
	}
	if b.storageKey == "" {
		return nil, fmt.Errorf("%w: file of batch %s was purged", ErrNotFound, b.ID)
	}
	rc, err := m.store.Open(ctx, b.storageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return dataset.Parse(dataset.Format(b.File.Format), rc)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
