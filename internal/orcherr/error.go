// Package orcherr defines the error taxonomy shared across the engine.
//
// Every error that crosses a component boundary is a *Error so that
// callers can branch on Kind with errors.As instead of matching on
// concrete types from a dozen packages.
package orcherr

import (
	"errors"
	"fmt"
)

// Kind identifies which class of failure occurred.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindCircularDependency Kind = "circular_dependency"
	KindVersionConflict    Kind = "version_conflict"
	KindContext            Kind = "context_error"
	KindTool               Kind = "tool_error"
	KindProvider           Kind = "provider_error"
	KindTimeout            Kind = "timeout_error"
	KindSandbox            Kind = "sandbox_error"
	KindBudgetExceeded     Kind = "budget_exceeded"
	KindDimensionMismatch  Kind = "dimension_mismatch"
	KindCancelled          Kind = "cancelled"
)

// retriable reports the default retry policy for each kind; ToolError and
// ProviderError are retriable unless explicitly overridden on construction.
var retriable = map[Kind]bool{
	KindValidation:         false,
	KindCircularDependency: false,
	KindVersionConflict:    false,
	KindContext:            false,
	KindTool:               true,
	KindProvider:           true,
	KindTimeout:            true,
	KindSandbox:            false,
	KindBudgetExceeded:     false,
	KindDimensionMismatch:  false,
	KindCancelled:          false,
}

// Error is the single error type that flows out of every engine component.
type Error struct {
	Kind      Kind
	Message   string
	NodeID    string
	Retriable bool
	Code      string
	Cause     error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with the default retry policy.
func New(kind Kind, nodeID, format string, args ...interface{}) *Error {
	return &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		NodeID:    nodeID,
		Retriable: retriable[kind],
	}
}

// Wrap attaches cause to a new Error of kind, preserving the chain for errors.Is.
func Wrap(kind Kind, nodeID string, cause error, format string, args ...interface{}) *Error {
	e := New(kind, nodeID, format, args...)
	e.Cause = cause
	return e
}

// Is lets orcherr.Is(err, orcherr.KindValidation) style checks work by
// kind rather than by identity.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
