package domain

// BuildPromptRequest is the body of POST /{batch}/build-prompt.
type BuildPromptRequest struct {
	DedupColumns []string `json:"dedup_columns"`
}

// UpdatePromptRequest is the body of PUT /{batch}/update-prompt.
type UpdatePromptRequest struct {
	PromptText string `json:"prompt_text"`
}

// GenerateMappingRequest is the body of POST /{batch}/generate-mapping.
type GenerateMappingRequest struct {
	DedupColumns []string `json:"dedup_columns"`
}

// TargetSelection is the user-approved target of one column.
type TargetSelection struct {
	Target string `json:"target"`
}

// ConfirmMappingRequest is the body of POST /{batch}/confirm-mapping.
type ConfirmMappingRequest struct {
	ConfirmedMappings map[string]TargetSelection `json:"confirmed_mappings"`
}

// NewConfirmMappingRequest builds a request from a column -> target map.
func NewConfirmMappingRequest(targets map[string]string) ConfirmMappingRequest {
	req := ConfirmMappingRequest{ConfirmedMappings: make(map[string]TargetSelection, len(targets))}
	for col, target := range targets {
		req.ConfirmedMappings[col] = TargetSelection{Target: target}
	}
	return req
}

// PipelineRequest is the body of POST /pipeline/process.
type PipelineRequest struct {
	BatchID string `json:"batch_id"`
}
