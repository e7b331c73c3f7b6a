// Package types holds the value, error, and event shapes shared across the
// schema, access, lww, dependency, reactive, and sync packages.
package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers distinguish them with errors.Is, the way
// the rest of the codebase distinguishes constraint failures by wrapping
// database/sql errors.
var (
	// ErrUsage means the caller violated a contract: unknown table/column,
	// missing required column, non-LWW column given to an LWW API, empty
	// update map, composite-key arity mismatch, missing LWW timestamps in
	// a bulk load.
	ErrUsage = errors.New("usage error")

	// ErrValidation means schema construction found a conflict: duplicate
	// names, a view shadowing a table, a relationship referencing a
	// missing table.
	ErrValidation = errors.New("validation error")

	// ErrState means an operation was attempted from an invalid state: a
	// concurrent sync-now call, or a sync pass that left operations failed.
	ErrState = errors.New("state error")

	// ErrEngine means the underlying database returned a failure that was
	// not swallowed by LWW write-through semantics.
	ErrEngine = errors.New("engine error")
)

// KindError wraps an underlying error with the operation that produced it
// and the sentinel kind it should compare equal to via errors.Is.
type KindError struct {
	Kind error
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *KindError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Usage builds a usage-error for op, optionally wrapping cause.
func Usage(op string, cause error) error {
	return &KindError{Kind: ErrUsage, Op: op, Err: cause}
}

// Usagef builds a usage-error with a formatted message.
func Usagef(op, format string, args ...any) error {
	return &KindError{Kind: ErrUsage, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation builds a validation-error for op.
func Validation(op string, cause error) error {
	return &KindError{Kind: ErrValidation, Op: op, Err: cause}
}

// Validationf builds a validation-error with a formatted message.
func Validationf(op, format string, args ...any) error {
	return &KindError{Kind: ErrValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// State builds a state-error for op.
func State(op string, cause error) error {
	return &KindError{Kind: ErrState, Op: op, Err: cause}
}

// Statef builds a state-error with a formatted message.
func Statef(op, format string, args ...any) error {
	return &KindError{Kind: ErrState, Op: op, Err: fmt.Errorf(format, args...)}
}

// Engine builds an engine-error wrapping a database failure.
func Engine(op string, cause error) error {
	return &KindError{Kind: ErrEngine, Op: op, Err: cause}
}
