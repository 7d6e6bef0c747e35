/*
store.go - Persistence interfaces for pools and the reservation ledger

PURPOSE:

	Defines the interface between the engine and the database. Different
	implementations can use SQLite or in-memory storage.

KEY INTERFACES:

	PoolStore:   Pool record reads plus the conditional-write primitive
	LedgerStore: Reservation inserts, lookups and status transitions
	Store:       Both, as seen through one handle
	TxStore:     Store plus scoped transactions (atomic multi-table writes)

THE CONDITIONAL-WRITE PRIMITIVE:

	ConditionalAdjust is the crux of the design. It must be ONE indivisible
	store operation: adjust available, bump version, stamp updated-at, but
	only if (a) the stored version still equals the caller's expected
	version and (b) the resulting available stays within [0, capacity].
	A read-then-write split across two store calls reintroduces the lost
	update race this design exists to prevent.

SOFT CANCELLATION:

	The ledger never deletes. Cancelling flips status and sets the
	cancellation timestamp; the row remains as the audit trail.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Orchestration using these interfaces
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// POOL STORE
// =============================================================================

// PoolStore persists the resource-pool record.
type PoolStore interface {
	// GetPool returns the pool or nil if it doesn't exist.
	GetPool(ctx context.Context, poolID PoolID) (*ResourcePool, error)

	// ConditionalAdjust atomically applies available += delta, version += 1
	// and a fresh UpdatedAt, but only if the stored version equals
	// expectedVersion and the resulting available stays in [0, capacity].
	// Returns true iff the write took effect; false means no partial
	// effect of any kind.
	ConditionalAdjust(ctx context.Context, poolID PoolID, delta int, expectedVersion int64) (bool, error)

	// EnsurePool creates the pool if it doesn't exist yet. Idempotent;
	// used only at bootstrap. An existing pool is left untouched.
	EnsurePool(ctx context.Context, poolID PoolID, label string, capacity int) error
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists reservation records.
type LedgerStore interface {
	// InsertConfirmed writes a new reservation with status confirmed.
	// Returns ErrDuplicateReservation on id collision.
	InsertConfirmed(ctx context.Context, r Reservation) error

	// FindConfirmed returns the reservation or nil. The lookup is
	// restricted to status confirmed: a cancelled id and an unknown id
	// are indistinguishable to the caller.
	FindConfirmed(ctx context.Context, id ReservationID) (*Reservation, error)

	// MarkCancelled transitions status to cancelled and sets the
	// cancellation timestamp. Returns whether a row actually changed,
	// which guards against double-cancel races.
	MarkCancelled(ctx context.Context, id ReservationID, at time.Time) (bool, error)

	// CountConfirmed returns the number of confirmed reservations.
	CountConfirmed(ctx context.Context, poolID PoolID) (int, error)

	// SumConfirmedUnits returns the total units held by confirmed
	// reservations. Together with CountConfirmed it makes the
	// available == capacity - sum(confirmed) invariant observable.
	SumConfirmedUnits(ctx context.Context, poolID PoolID) (int, error)

	// ListReservations returns all reservations for a pool, newest first,
	// regardless of status.
	ListReservations(ctx context.Context, poolID PoolID) ([]Reservation, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// Store is the full persistence surface as seen through one handle.
type Store interface {
	PoolStore
	LedgerStore
}

// TxStore wraps Store with scoped transactions.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, every write made through its handle is
	// rolled back and storage is left exactly as before the call.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
