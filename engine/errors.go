/*
errors.go - Centralized error types for the reservation engine

PURPOSE:

	All error kinds in one place for consistency and discoverability.
	Every engine method either returns a success value or fails with
	exactly one of these kinds; multi-step mutations run inside one
	transaction scope, so partial effects are never observable.

ERROR CATEGORIES:
 1. Not found      - pool or reservation absent (or terminally cancelled)
 2. Invalid        - business rule violated (insufficient capacity, bad units)
 3. Contention     - version fence or ledger-transition race lost
 4. Integrity      - structural invariant broken (corruption, not contention)

RETRY POLICY:

	ErrConcurrentModification is the only kind a caller should retry
	(re-read, re-decide, re-attempt). Everything else is terminal for
	that request.

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPoolNotFound is returned when a referenced pool doesn't exist.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrReservationNotFound is returned when a reservation id is unknown or
	// already cancelled. The two cases are deliberately indistinguishable:
	// cancellation is irreversible, so a retried cancel sees the same
	// terminal outcome as an unknown id.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInsufficientCapacity is returned when a reserve asks for more units
	// than the pool currently has available.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrConcurrentModification is returned when the version fence rejects a
	// write or a ledger transition loses a race. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateReservation is returned on a reservation id collision.
	// Should not happen given the generation strategy; fatal to the
	// operation, never retried.
	ErrDuplicateReservation = errors.New("duplicate reservation id")

	// ErrIntegrityFault is returned when a structurally guaranteed invariant
	// is violated, e.g. a confirmed reservation whose pool vanished. Signals
	// corruption rather than contention.
	ErrIntegrityFault = errors.New("data integrity fault")

	// ErrInvalidUnits is returned on a non-positive unit count. The HTTP
	// layer validates range before calling the engine; this is the engine's
	// own defensive check.
	ErrInvalidUnits = errors.New("units must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientCapacityError provides details about a capacity shortage.
type InsufficientCapacityError struct {
	PoolID    PoolID
	Available int
	Requested int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity in pool %s: available %d, requested %d",
		e.PoolID, e.Available, e.Requested)
}

func (e *InsufficientCapacityError) Unwrap() error {
	return ErrInsufficientCapacity
}

// IntegrityFaultError describes a broken structural invariant.
type IntegrityFaultError struct {
	PoolID        PoolID
	ReservationID ReservationID
	Detail        string
}

func (e *IntegrityFaultError) Error() string {
	return fmt.Sprintf("integrity fault for reservation %s (pool %s): %s",
		e.ReservationID, e.PoolID, e.Detail)
}

func (e *IntegrityFaultError) Unwrap() error {
	return ErrIntegrityFault
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsConflict returns true for contention and capacity failures, the
// outcomes a client maps to a conflict response.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrInsufficientCapacity)
}
