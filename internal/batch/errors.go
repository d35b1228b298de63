package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAborted means the request was cancelled, either by its timeout or by the caller.
	ErrAborted = errors.New("request aborted")
	// ErrNetwork means no HTTP response was obtained.
	ErrNetwork = errors.New("network failure")
	// ErrAuthExpired means the service rejected the session (HTTP 401).
	ErrAuthExpired = errors.New("session expired")
)

// ServiceError is a structured failure returned by the batch service.
type ServiceError struct {
	HTTPStatus int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("batch service: http %d: %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("batch service: %s: %s", e.Code, e.Message)
}

// Kind classifies errors surfaced by the client.
type Kind int

const (
	KindUnknown Kind = iota
	KindAbort
	KindNetwork
	KindService
	KindAuthExpired
)

func (k Kind) String() string {
	switch k {
	case KindAbort:
		return "abort"
	case KindNetwork:
		return "network"
	case KindService:
		return "service"
	case KindAuthExpired:
		return "auth_expired"
	}
	return "unknown"
}

// KindOf returns the classification of err.
func KindOf(err error) Kind {
	var se *ServiceError
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrAborted):
		return KindAbort
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.As(err, &se):
		return KindService
	}
	return KindUnknown
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	var se *ServiceError
	switch KindOf(err) {
	case KindAbort:
		return "The request timed out or was cancelled, please retry."
	case KindNetwork:
		return "The batch service could not be reached, please check your connection."
	case KindAuthExpired:
		return "Your session has expired, please sign in again."
	case KindService:
		errors.As(err, &se)
		return se.Message
	}
	return err.Error()
}

// transportError converts a failed round trip into ErrAborted or ErrNetwork.
func transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		cause := ctx.Err()
		if cause == nil {
			cause = err
		}
		if errors.Is(cause, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w: timed out", op, ErrAborted)
		}
		return fmt.Errorf("%s: %w: cancelled", op, ErrAborted)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "unexpected status"
}
