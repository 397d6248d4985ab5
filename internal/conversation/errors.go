package conversation

import (
	"errors"
	"fmt"
)

// Reason names why a turn failed.
type Reason string

const (
	ReasonIterationLimit Reason = "iteration_limit"
	ReasonDeadline       Reason = "deadline"
	ReasonModelFailure   Reason = "model_failure"
)

var (
	ErrIterationLimit = errors.New("conversation: iteration limit exceeded")
	ErrTurnDeadline   = errors.New("conversation: turn deadline exceeded")
	ErrModelFailure   = errors.New("conversation: model failed")
)

// OrchestratorError is the only fatal turn outcome. State holds the partial
// conversation built before the failure.
type OrchestratorError struct {
	Reason     Reason
	Iterations int
	State      *State
	Err        error
}

func (e *OrchestratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversation: turn failed (%s after %d iterations): %v", e.Reason, e.Iterations, e.Err)
	}
	return fmt.Sprintf("conversation: turn failed (%s after %d iterations)", e.Reason, e.Iterations)
}

func (e *OrchestratorError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *OrchestratorError) sentinel() error {
	switch e.Reason {
	case ReasonIterationLimit:
		return ErrIterationLimit
	case ReasonDeadline:
		return ErrTurnDeadline
	default:
		return ErrModelFailure
	}
}
