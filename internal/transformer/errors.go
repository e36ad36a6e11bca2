package transformer

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnNotFound marks a SchemaError for a required column that is
	// absent from the input schema.
	ErrColumnNotFound = errors.New("column not found")
	// ErrDuplicateColumn marks a SchemaError for an output column whose name
	// collides with another one.
	ErrDuplicateColumn = errors.New("duplicate column")
)

// SchemaError is returned when a stage cannot work with a schema. It is
// fatal and, when raised by Initialize, aborts the run before any row is read.
type SchemaError struct {
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: column [%s]: %v", e.Column, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// RowShapeError is returned when a row does not match the active schema, or
// when a buffering stage emits rows from ConsumeRow. It indicates a stage or
// driver bug and aborts the run.
type RowShapeError struct {
	Phase string // "input", "stream" or "finalize"
	Index int    // position of the offending row within its phase
	Err   error
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("row shape: %s row %d: %v", e.Phase, e.Index, e.Err)
}

func (e *RowShapeError) Unwrap() error { return e.Err }

// UpstreamError wraps a failure of the row source. It is fatal to the run it
// happened in and to no other.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream: %v", e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }
