package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. NotReady is never returned to callers of a pipeline stage;
// it only describes the silent skip. The other kinds abort the current run.
var (
	ErrNotReady              = errors.New("not all required inputs are present")
	ErrInconsistentReference = errors.New("inconsistent slice reference")
	ErrIO                    = errors.New("output failure")
	ErrSolver                = errors.New("solver failure")
)

// RunError reports a failure that aborts a run, naming the failing stage and
// the entity involved.
type RunError struct {
	Kind   error
	Stage  string
	Entity string
	ID     uint
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (%s %d)", msg, e.Entity, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// InconsistentReference builds the error for a segment whose slice is not
// part of the slice set of its section.
func InconsistentReference(stage string, segment uint, slice uint, section int) error {
	return &RunError{
		Kind:   ErrInconsistentReference,
		Stage:  stage,
		Entity: "segment",
		ID:     segment,
		Err:    errors.Errorf("slice %d not found in section %d", slice, section),
	}
}

// IOFailure wraps an output error.
func IOFailure(stage string, err error) error {
	return &RunError{Kind: ErrIO, Stage: stage, Err: err}
}

// SolverFailure wraps an error raised by a solver backend.
func SolverFailure(stage string, err error) error {
	return &RunError{Kind: ErrSolver, Stage: stage, Err: err}
}
