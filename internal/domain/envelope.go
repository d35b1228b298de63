package domain

import "encoding/json"

// Envelope wraps every batch service response.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// APIError is the structured failure payload of the batch service.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes emitted by the batch service.
const (
	CodeBadRequest   = "bad_request"
	CodeNotFound     = "not_found"
	CodeInvalidState = "invalid_state"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)
