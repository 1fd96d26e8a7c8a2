// Package apperr defines the error taxonomy shared by the reservation
// engine.  Sentinel values allow callers such as handlers to distinguish
// failure classes with errors.Is, while the typed errors carry the detail
// needed to report them (the offending field, the rejected transition, the
// slot that ran out of capacity).
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or logically inconsistent input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when an entity does not exist or is not
	// visible to the acting party.
	ErrNotFound = errors.New("not found")
	// ErrInactive is returned when a resource exists but is not bookable.
	ErrInactive = errors.New("resource inactive")
	// ErrInsufficientCapacity is a business failure: a slot in the
	// requested window cannot take the requested quantity.
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrInvalidTransition is returned when a status change is not
	// permitted from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDenied is an authorization failure from the scope guard.
	ErrDenied = errors.New("denied")
	// ErrDuplicateReference signals a booking reference collision in the
	// persistence layer.  The lifecycle manager retries on it.
	ErrDuplicateReference = errors.New("duplicate booking reference")
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError reports the current and the attempted status.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CapacityError reports the first slot unit that could not satisfy a
// reservation.
type CapacityError struct {
	Unit      string
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity at %s: requested %d, available %d", e.Unit, e.Requested, e.Available)
}

func (e *CapacityError) Is(target error) bool { return target == ErrInsufficientCapacity }
