package domain

// BatchStatus is the server-reported stage of an import batch.
type BatchStatus string

const (
	BatchPending            BatchStatus = "pending"
	BatchPromptReady        BatchStatus = "prompt_ready"
	BatchGeneratingMapping  BatchStatus = "generating_mapping"
	BatchMapping            BatchStatus = "mapping"
	BatchImporting          BatchStatus = "importing"
	BatchCompleted          BatchStatus = "completed"
	BatchPartiallyCompleted BatchStatus = "partially_completed"
	BatchFailed             BatchStatus = "failed"
)

// IsTerminal reports whether the batch will not progress any further.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchCompleted, BatchPartiallyCompleted, BatchFailed:
		return true
	}
	return false
}

// AwaitsUser reports whether the server is idle until the user acts.
func (s BatchStatus) AwaitsUser() bool {
	return s == BatchMapping || s == BatchPromptReady
}

// Progressing reports whether the service advances the batch without any
// user action.
func (s BatchStatus) Progressing() bool {
	return s == BatchGeneratingMapping || s == BatchImporting
}

// StopsPolling reports whether a status poll observing s should end.
func (s BatchStatus) StopsPolling() bool {
	return s.IsTerminal() || s.AwaitsUser()
}

// Valid reports whether s is part of the known vocabulary.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchPending, BatchPromptReady, BatchGeneratingMapping, BatchMapping,
		BatchImporting, BatchCompleted, BatchPartiallyCompleted, BatchFailed:
		return true
	}
	return false
}

// Pipeline states for the post-import semantic processing.
const (
	PipelineIdle       = "idle"
	PipelineProcessing = "processing"
	PipelineDone       = "done"
	PipelineFailed     = "failed"
)

// Progress holds the ingestion counters of a batch.
type Progress struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

// Status is the payload of GET /{batch}/status.
type Status struct {
	BatchID        string      `json:"batch_id"`
	Status         BatchStatus `json:"status"`
	Progress       *Progress   `json:"progress,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	PipelineStatus string      `json:"pipeline_status,omitempty"`
}

// FileInfo describes an uploaded file.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Format   string `json:"format"`
	RowCount int    `json:"row_count"`
	Checksum string `json:"checksum,omitempty"`
}

// UploadResult is the payload of POST /upload.
type UploadResult struct {
	BatchID          string   `json:"batch_id"`
	FileInfo         FileInfo `json:"file_info"`
	DuplicateBatchID string   `json:"duplicate_batch_id,omitempty"`
}

// PipelineResult is the payload of POST /pipeline/process.
type PipelineResult struct {
	BatchID        string `json:"batch_id"`
	PipelineStatus string `json:"pipeline_status"`
}
