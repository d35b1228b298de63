package job

import "errors"

var (
	ErrNotFound       = errors.New("batch not found")
	ErrInvalidState   = errors.New("invalid batch state")
	ErrInvalidRequest = errors.New("invalid request")
)
