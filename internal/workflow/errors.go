package workflow

import "errors"

var (
	ErrUploadInProgress = errors.New("upload already in progress")
	ErrBatchExists      = errors.New("workflow already has a batch, reset first")
	ErrNotAllowed       = errors.New("operation not allowed in the current step")
	ErrEmptyMapping     = errors.New("mapping has no columns")
	ErrNoFile           = errors.New("no file to upload")
)
