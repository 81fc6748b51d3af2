package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoObservations is returned when no target produced any archive rows.
var ErrNoObservations = errors.New("no observations returned for any target")

// SchemaError reports a mandatory column missing from the archive result.
type SchemaError struct {
	Column     string
	Alternates []string
}

func (e *SchemaError) Error() string {
	if len(e.Alternates) == 0 {
		return fmt.Sprintf("missing required ObsCore column: %s", e.Column)
	}
	return fmt.Sprintf("missing required ObsCore column: %s (also tried %s)", e.Column, strings.Join(e.Alternates, ", "))
}

// QueryError wraps a failed archive query for one target.
type QueryError struct {
	Target string
	cause  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Target, e.cause)
}

func (e *QueryError) Unwrap() error { return e.cause }

// NewQueryError attributes err to target.
func NewQueryError(target string, err error) *QueryError {
	return &QueryError{Target: target, cause: err}
}

// ErrRunNotFound is returned by run history lookups for unknown IDs.
var ErrRunNotFound = errors.New("run not found")
