// Package etlerr defines the failure kinds shared by the loaders, the
// resolver and the migrator. Per-record kinds (validation, lookup, write) are
// folded into run summaries; a ConnectionError ends the run.
package etlerr

import (
	"errors"
	"fmt"
)

// ValidationError reports an input field that is missing or malformed.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid record: " + e.Reason
	}
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// LookupError reports that a reference could be neither created nor found.
type LookupError struct {
	Entity string
	Key    string
	Err    error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup failed for %s %q: %v", e.Entity, e.Key, e.Err)
	}
	return fmt.Sprintf("lookup failed for %s %q", e.Entity, e.Key)
}

func (e *LookupError) Unwrap() error { return e.Err }

// WriteError reports a store rejecting a single write.
type WriteError struct {
	Op  string
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConnectionError reports a store that could not be opened or reached.
type ConnectionError struct {
	Store string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s store: %v", e.Store, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Kind names the failure class of err for logs and metrics labels.
func Kind(err error) string {
	var (
		ve *ValidationError
		le *LookupError
		we *WriteError
		ce *ConnectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &le):
		return "lookup"
	case errors.As(err, &we):
		return "write"
	case errors.As(err, &ce):
		return "connection"
	default:
		return "other"
	}
}
