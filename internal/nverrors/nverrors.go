// Package nverrors defines the typed error values produced by the
// visualisation engine, per the error handling design in the spec:
// EvaluateError, LoaderError, IgnoreSynth and InternalError.
package nverrors

import (
	"fmt"
	"time"
)

// Kind classifies an engine error.
type Kind string

const (
	KindEvaluate Kind = "evaluate"
	KindLoader   Kind = "loader"
	KindInternal Kind = "internal"
)

// EvaluateError wraps a failure from the (non-goal) debugger evaluator
// collaborator: an expression failed to compile or run.
type EvaluateError struct {
	Kind       Kind
	Expression string
	TypeName   string
	Underlying error
	Optional   bool
	Timestamp  time.Time
}

// NewEvaluateError creates an EvaluateError for a failed expression.
func NewEvaluateError(expression string, err error) *EvaluateError {
	return &EvaluateError{
		Kind:       KindEvaluate,
		Expression: expression,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithType attaches the type name the expression was evaluated against.
func (e *EvaluateError) WithType(typeName string) *EvaluateError {
	e.TypeName = typeName
	return e
}

// WithOptional marks the error as arising from an `optional` node, meaning
// callers should swallow it rather than propagate.
func (e *EvaluateError) WithOptional(optional bool) *EvaluateError {
	e.Optional = optional
	return e
}

func (e *EvaluateError) Error() string {
	if e.TypeName != "" {
		return fmt.Sprintf("evaluate %q against %s failed: %v", e.Expression, e.TypeName, e.Underlying)
	}
	return fmt.Sprintf("evaluate %q failed: %v", e.Expression, e.Underlying)
}

// Unwrap returns the underlying evaluator error for errors.Is/As.
func (e *EvaluateError) Unwrap() error {
	return e.Underlying
}

// LoaderError represents malformed visualiser XML, reported by the
// (non-goal) XML loader collaborator and surfaced here only to let core
// code log or reject an unusable TypeViz.
type LoaderError struct {
	Kind       Kind
	Source     string
	Underlying error
	Timestamp  time.Time
}

// NewLoaderError creates a new LoaderError.
func NewLoaderError(source string, err error) *LoaderError {
	return &LoaderError{
		Kind:       KindLoader,
		Source:     source,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("malformed visualiser %q: %v", e.Source, e.Underlying)
}

func (e *LoaderError) Unwrap() error {
	return e.Underlying
}

// IgnoreSynth is a sentinel error meaning "silently return no
// children/summary" for the current candidate.
var IgnoreSynth = &sentinelError{"ignore synthetic result"}

type sentinelError struct{ msg string }

func (s *sentinelError) Error() string { return s.msg }

// InternalError represents an unexpected invariant breakage. It is
// suppressed under a global "suppress errors" flag and re-raised
// otherwise, per the error handling design.
type InternalError struct {
	Kind       Kind
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewInternalError creates a new InternalError.
func NewInternalError(op string, err error) *InternalError {
	return &InternalError{
		Kind:       KindInternal,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Operation, e.Underlying)
}

func (e *InternalError) Unwrap() error {
	return e.Underlying
}

// SuppressErrors controls whether InternalError is swallowed (true, the
// production default) or re-raised (false, useful for tests).
var SuppressErrors = true

// Recover turns a recovered panic into an InternalError, honoring
// SuppressErrors. Call as `defer nverrors.Recover(&err, "dispatch")`.
func Recover(errOut *error, op string) {
	if r := recover(); r != nil {
		wrapped := NewInternalError(op, fmt.Errorf("%v", r))
		if SuppressErrors {
			*errOut = nil
			return
		}
		*errOut = wrapped
	}
}
