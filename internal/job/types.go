package job

import (
	"context"
	"time"

	"github.com/jaki95/feedback-importer/internal/dataset"
	"github.com/jaki95/feedback-importer/internal/domain"
)

// Batch is the server-side record of one import.
type Batch struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	File      domain.FileInfo    `json:"file_info"`
	Status    domain.BatchStatus `json:"status"`
	Progress  domain.Progress    `json:"progress"`
	Error     string             `json:"error,omitempty"`
	Pipeline  string             `json:"pipeline_status"`
	StartTime time.Time          `json:"start_time"`
	EndTime   *time.Time         `json:"end_time,omitempty"`

	storageKey   string
	signature    string
	prompt       domain.PromptPreview
	dedupColumns []string
	mappings     []domain.ColumnMapping
	confirmed    map[string]string
	records      []map[string]string
	table        *dataset.Table
	cancelFunc   context.CancelFunc
}

// Template is a confirmed mapping remembered for a column layout. A later
// upload with the same layout reuses it instead of generating a new mapping.
type Template struct {
	Name         string
	Prompt       string
	Targets      map[string]string
	DedupColumns []string
}

// Response represents one page of the batch list
type Response struct {
	Batches    []*Batch `json:"batches"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	Total      int      `json:"total"`
	TotalPages int      `json:"total_pages"`
}

// Options tunes the background work of the manager.
type Options struct {
	// Simulated latency before a mapping suggestion is ready
	MappingDelay time.Duration
	// Simulated latency of the import and of the semantic pipeline
	ImportDelay time.Duration
	PreviewRows int
	Workers     int
}

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Constants for configuration
const (
	DefaultPreviewRows = 10
	DefaultWorkers     = 4
	ResultPreviewRows  = 20
)

func (b *Batch) status() *domain.Status {
	st := &domain.Status{
		BatchID:        b.ID,
		Status:         b.Status,
		ErrorMessage:   b.Error,
		PipelineStatus: b.Pipeline,
	}
	if b.Status == domain.BatchImporting || b.Status.IsTerminal() {
		p := b.Progress
		st.Progress = &p
	}
	return st
}

func (b *Batch) finish(status domain.BatchStatus, msg string) {
	b.Status = status
	b.Error = msg
	end := time.Now()
	b.EndTime = &end
}
