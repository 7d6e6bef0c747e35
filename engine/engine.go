/*
engine.go - Reservation orchestration

PURPOSE:

	Implements reserve, cancel, summarize and list on top of the store
	interfaces. This is the locus of business logic: every multi-step
	mutation runs inside one WithTx scope, and every pool mutation goes
	through the conditional-write primitive.

CONCURRENCY MODEL:

	The engine itself performs no internal threading; concurrency arises
	from multiple callers invoking it in parallel. Nothing blocks on an
	external lock: all contenders attempt their conditional write
	immediately, and only the losers of a race are told to retry, via
	ErrConcurrentModification.

FAILURE MODEL:

	Any failure after the transaction begins rolls back every write made
	through the handle. It is never possible to observe a decremented pool
	with no matching reservation, or a cancelled reservation whose units
	were not returned.

SEE ALSO:
  - store.go: The persistence contract this orchestrates
  - errors.go: The error taxonomy produced here
*/
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Engine orchestrates reservations against one transactional store.
type Engine struct {
	store TxStore

	// Overridable for tests.
	now   func() time.Time
	newID func() ReservationID
}

// New creates an engine on top of a transactional store.
func New(store TxStore) *Engine {
	return &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() ReservationID { return ReservationID(uuid.New().String()) },
	}
}

// =============================================================================
// RESERVE
// =============================================================================

// Reserve allocates units from the pool and records a confirmed
// reservation, atomically. On success the new reservation id is returned.
//
// Failure kinds:
//   - ErrInvalidUnits:            units <= 0 (defensive; HTTP layer validates range)
//   - ErrPoolNotFound:            pool doesn't exist
//   - ErrInsufficientCapacity:    fewer than units available
//   - ErrConcurrentModification:  another writer moved the pool; retry
//
// Reserve is not idempotent: each call that is not rejected creates a new
// reservation. A caller that timed out must reconcile via Summarize/List.
func (e *Engine) Reserve(ctx context.Context, poolID PoolID, requesterID string, units int) (ReservationID, error) {
	if units <= 0 {
		return "", ErrInvalidUnits
	}

	var id ReservationID
	err := e.store.WithTx(ctx, func(s Store) error {
		pool, err := s.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool == nil {
			return ErrPoolNotFound
		}

		// Fast local check. Not a correctness mechanism - the conditional
		// write below re-checks atomically - it just avoids a doomed write.
		if pool.Available < units {
			return &InsufficientCapacityError{
				PoolID:    poolID,
				Available: pool.Available,
				Requested: units,
			}
		}

		ok, err := s.ConditionalAdjust(ctx, poolID, -units, pool.Version)
		if err != nil {
			return err
		}
		if !ok {
			// Someone else moved the pool since we read it. The resource
			// is not necessarily gone; the caller should retry.
			return ErrConcurrentModification
		}

		id = e.newID()
		return s.InsertConfirmed(ctx, Reservation{
			ID:          id,
			PoolID:      poolID,
			RequesterID: requesterID,
			Units:       units,
			Status:      StatusConfirmed,
			CreatedAt:   e.now(),
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel releases a confirmed reservation's units back to its pool and
// flips the reservation to cancelled, atomically. A second cancel of the
// same id fails with ErrReservationNotFound, exactly like an unknown id.
func (e *Engine) Cancel(ctx context.Context, id ReservationID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		r, err := s.FindConfirmed(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrReservationNotFound
		}

		pool, err := s.GetPool(ctx, r.PoolID)
		if err != nil {
			return err
		}
		if pool == nil {
			// A confirmed reservation always has a pool. This is
			// corruption, not contention.
			return &IntegrityFaultError{
				PoolID:        r.PoolID,
				ReservationID: id,
				Detail:        "confirmed reservation references a missing pool",
			}
		}

		changed, err := s.MarkCancelled(ctx, id, e.now())
		if err != nil {
			return err
		}
		if !changed {
			// A concurrent cancel won the race for this same id.
			return ErrConcurrentModification
		}

		ok, err := s.ConditionalAdjust(ctx, r.PoolID, r.Units, pool.Version)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentModification
		}
		return nil
	})
}

// =============================================================================
// READ-ONLY PROJECTIONS
// =============================================================================

// Summarize returns a point-in-time snapshot of the pool. No transaction:
// slight staleness under concurrent writers is acceptable and expected.
func (e *Engine) Summarize(ctx context.Context, poolID PoolID) (*Summary, error) {
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}

	count, err := e.store.CountConfirmed(ctx, poolID)
	if err != nil {
		return nil, err
	}
	units, err := e.store.SumConfirmedUnits(ctx, poolID)
	if err != nil {
		return nil, err
	}

	return &Summary{
		PoolID:         pool.ID,
		Label:          pool.Label,
		Capacity:       pool.Capacity,
		Available:      pool.Available,
		ConfirmedCount: count,
		ConfirmedUnits: units,
		Version:        pool.Version,
	}, nil
}

// List returns all reservations for the pool, newest first, including
// cancelled ones. Read-only projection straight from the ledger.
func (e *Engine) List(ctx context.Context, poolID PoolID) ([]Reservation, error) {
	return e.store.ListReservations(ctx, poolID)
}

// Find returns a confirmed reservation by id, or ErrReservationNotFound
// for an unknown or already cancelled id.
func (e *Engine) Find(ctx context.Context, id ReservationID) (*Reservation, error) {
	r, err := e.store.FindConfirmed(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrReservationNotFound
	}
	return r, nil
}

// =============================================================================
// RETRY HELPER
// =============================================================================

// Retry runs fn up to attempts times, retrying only on
// ErrConcurrentModification. fn must re-read and re-decide on each
// attempt; engine methods already do. The last error is returned.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}
