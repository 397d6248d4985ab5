package tools

import (
	"context"
	"errors"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	"github.com/kungukcm/Hospital-Booking-System/internal/recommend"
	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

// Request is a tool invocation issued by the model.
type Request struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Status is the outcome of a tool call.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Stable error codes surfaced to the model.
const (
	CodeUnknownTool      = "unknown_tool"
	CodeInvalidArguments = "invalid_arguments"
	CodeInvalidInput     = "invalid_input"
	CodeConflict         = "conflict"
	CodeNotFound         = "not_found"
	CodeTimeout          = "timeout"
	CodeCanceled         = "canceled"
	CodeInternal         = "internal"
)

// ErrorDetail describes a failed call.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result answers exactly one Request, matched by ID.
type Result struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Status  Status       `json:"status"`
	Payload any          `json:"payload,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

func (r Result) fail(code, message string) Result {
	r.Status = StatusError
	r.Payload = nil
	r.Error = &ErrorDetail{Code: code, Message: message}
	return r
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

func classify(err error) string {
	var argErr *ArgumentError
	switch {
	case errors.As(err, &argErr):
		return CodeInvalidArguments
	case errors.Is(err, scheduling.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, appointments.ErrConflict):
		return CodeConflict
	case errors.Is(err, appointments.ErrNotFound), errors.Is(err, recommend.ErrNoAvailability):
		return CodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
