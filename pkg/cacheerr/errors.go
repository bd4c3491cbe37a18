// Package cacheerr defines the typed error taxonomy used across semcache
// (§7): invalid input, capacity exhaustion, degenerate math (handled
// locally, never surfaced as an error), configuration, and transient
// producer failures (surfaced unchanged by the caller, not wrapped here).
package cacheerr

import "fmt"

// Kind classifies an Error for programmatic handling.
type Kind string

const (
	InvalidInput      Kind = "invalid_input"
	CapacityExhausted Kind = "capacity_exhausted"
	NotFound          Kind = "not_found"
	Configuration     Kind = "configuration"
)

// Error is the standardized error type returned by decision engine and
// cache façade operations, adapted from a provider-error pattern to this
// core's error taxonomy.
type Error struct {
	Kind    Kind
	Message string
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Is allows errors.Is(err, cacheerr.New(kind, "")) to match by kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
