package steps

import "errors"

var ErrUnknownStep = errors.New("unknown step")
