package workflow

import (
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/steps"
)

// State is a snapshot of the workflow used for rendering. Payload pointers
// are replaced wholesale on every load and never mutated afterwards.
type State struct {
	Current     steps.Step
	Steps       steps.Board
	BatchID     string
	BatchStatus domain.BatchStatus

	Uploading     bool
	UploadPercent float64
	UploadDone    bool

	Upload         *domain.UploadResult
	DataPreview    *domain.DataPreview
	Prompt         *domain.PromptPreview
	DedupColumns   []string
	Mapping        *domain.MappingPreview
	Progress       *domain.Progress
	Result         *domain.ResultPreview
	PipelineStatus string

	Polling      bool
	ErrorMessage string
}

func initialState() State {
	return State{Current: steps.Upload, Steps: steps.Initial()}
}

// ReadOnly reports whether the view of step must reject edits: only the step
// holding the active status is editable.
func (s State) ReadOnly(step steps.Step) bool {
	return s.Steps.Get(step) != steps.Active
}

// Terminal reports whether the batch reached a final status.
func (s State) Terminal() bool {
	return s.BatchStatus.IsTerminal()
}
