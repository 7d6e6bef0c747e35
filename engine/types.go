/*
Package engine provides the core seat reservation engine.

PURPOSE:

	This package contains the entity model and orchestration logic for
	allocating units of a fixed, finite resource pool (seats for an event)
	to competing callers. The sum of outstanding reservations never exceeds
	capacity, even under concurrent requests, and an accepted reservation
	is never lost.

KEY CONCEPTS IN THIS FILE (types.go):
  - ResourcePool: The shared counter record (capacity, available, version)
  - Reservation: An entry in the reservation ledger (the audit trail)
  - Summary: A point-in-time snapshot of a pool's state

DESIGN PRINCIPLES:
 1. Optimistic concurrency: writers prove freshness via the version fence
 2. Ledger durability: reservations are soft-cancelled, never deleted
 3. Type safety: strong ID types prevent mixing pool and reservation ids

USAGE:

	eng := engine.New(store)
	id, err := eng.Reserve(ctx, poolID, "requester-1", 2)

SEE ALSO:
  - engine.go: Reserve/Cancel/Summarize/List orchestration
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package engine

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PoolID string
type ReservationID string

// =============================================================================
// RESOURCE POOL - The shared counter record
// =============================================================================

// ResourcePool is the single shared mutable record per pool. Capacity is
// fixed at creation; Available moves only through the conditional-write
// primitive; Version increments by exactly 1 on every successful mutation
// of Available and exists purely as a concurrency fence.
//
// INVARIANTS:
//   - 0 <= Available <= Capacity at all times
//   - Available == Capacity - sum(units of confirmed reservations)
type ResourcePool struct {
	ID        PoolID
	Label     string
	Capacity  int
	Available int
	Version   int64
	UpdatedAt time.Time
}

// =============================================================================
// RESERVATION - Ledger entry
// =============================================================================

type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Reservation records one accepted allocation. The only reachable
// transition is confirmed -> cancelled, exactly once. There is no pending
// state: a reserve attempt either fully succeeds or leaves no record.
type Reservation struct {
	ID          ReservationID
	PoolID      PoolID
	RequesterID string
	Units       int
	Status      ReservationStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// =============================================================================
// SUMMARY - Point-in-time snapshot
// =============================================================================

// Summary is a read-only snapshot of a pool. Slight staleness under
// concurrent writers is acceptable; it is never a decision input for a
// mutation.
type Summary struct {
	PoolID         PoolID
	Label          string
	Capacity       int
	Available      int
	ConfirmedCount int
	ConfirmedUnits int
	Version        int64
}
