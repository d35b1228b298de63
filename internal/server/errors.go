package server

import "errors"

var (
	ErrMissingFile  = errors.New("missing file")
	ErrUnauthorized = errors.New("missing or invalid bearer token")
)
