// Package errors defines the categorized error type used across the
// simulator and optimizer, so callers can react to a failure class without
// string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category classifies a failure into the classes the engine distinguishes.
type Category string

const (
	// CategoryDataGap marks missing or undefined indicator input. The
	// simulator skips the affected condition rather than aborting.
	CategoryDataGap Category = "DATA_GAP"
	// CategoryInvalidConfig marks a parameter or config value that fails
	// validation before any simulation runs.
	CategoryInvalidConfig Category = "INVALID_CONFIG"
	// CategorySimInvariant marks an internal inconsistency detected during
	// a run, such as opening an already-open position. The affected run is
	// abandoned.
	CategorySimInvariant Category = "SIM_INVARIANT"
	// CategoryEvalTimeout marks a candidate evaluation that exceeded its
	// deadline.
	CategoryEvalTimeout Category = "EVAL_TIMEOUT"
	// CategoryUndefinedMetric marks a metric that has no defined value for
	// the given inputs, such as Sharpe over a constant equity curve.
	CategoryUndefinedMetric Category = "UNDEFINED_METRIC"
)

// SimError carries a failure with its category and origin.
type SimError struct {
	Category  Category
	Component string
	Operation string
	Message   string
	Err       error
	Context   map[string]interface{}
}

func (e *SimError) Error() string {
	msg := fmt.Sprintf("[%s] %s.%s: %s", e.Category, e.Component, e.Operation, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

func (e *SimError) Unwrap() error { return e.Err }

// Fatal reports whether the error invalidates the whole run rather than a
// single candidate or date.
func (e *SimError) Fatal() bool {
	return e.Category == CategoryInvalidConfig || e.Category == CategorySimInvariant
}

// WithContext attaches a key/value pair for diagnostics and returns the
// error for chaining.
func (e *SimError) WithContext(key string, value interface{}) *SimError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a SimError without an underlying cause.
func New(cat Category, component, operation, message string) *SimError {
	return &SimError{Category: cat, Component: component, Operation: operation, Message: message}
}

// Wrap creates a SimError around an underlying cause.
func Wrap(err error, cat Category, component, operation, message string) *SimError {
	return &SimError{Category: cat, Component: component, Operation: operation, Message: message, Err: err}
}

// NewDataGap reports missing indicator input.
func NewDataGap(component, message string) *SimError {
	return New(CategoryDataGap, component, "read", message)
}

// NewInvalidConfig reports a validation failure.
func NewInvalidConfig(component, operation, message string) *SimError {
	return New(CategoryInvalidConfig, component, operation, message)
}

// NewSimInvariant reports an internal inconsistency in a running simulation.
func NewSimInvariant(component, operation, message string) *SimError {
	return New(CategorySimInvariant, component, operation, message)
}

// NewEvalTimeout reports an evaluation that ran past its deadline.
func NewEvalTimeout(component, message string) *SimError {
	return New(CategoryEvalTimeout, component, "evaluate", message)
}

// NewUndefinedMetric reports a metric with no defined value for its inputs.
func NewUndefinedMetric(metric, message string) *SimError {
	return New(CategoryUndefinedMetric, "metrics", metric, message)
}

// HasCategory reports whether err or anything it wraps is a SimError of the
// given category.
func HasCategory(err error, cat Category) bool {
	var se *SimError
	if stderrors.As(err, &se) {
		return se.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or the empty string when err is
// not a SimError.
func CategoryOf(err error) Category {
	var se *SimError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ""
}
