// Package store provides in-memory Store implementations for testing/dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/seatpool/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	pools        map[engine.PoolID]engine.ResourcePool
	reservations map[engine.ReservationID]reservationRow
	seq          int64
}

// reservationRow tracks insertion order so listing can break CreatedAt
// ties deterministically.
type reservationRow struct {
	engine.Reservation
	seq int64
}

func NewMemory() *Memory {
	return &Memory{
		pools:        make(map[engine.PoolID]engine.ResourcePool),
		reservations: make(map[engine.ReservationID]reservationRow),
	}
}

// =============================================================================
// POOL STORE
// =============================================================================

func (m *Memory) GetPool(_ context.Context, poolID engine.PoolID) (*engine.ResourcePool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPoolLocked(poolID), nil
}

func (m *Memory) getPoolLocked(poolID engine.PoolID) *engine.ResourcePool {
	p, ok := m.pools[poolID]
	if !ok {
		return nil
	}
	return &p
}

func (m *Memory) ConditionalAdjust(_ context.Context, poolID engine.PoolID, delta int, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalAdjustLocked(poolID, delta, expectedVersion), nil
}

// conditionalAdjustLocked is the atomic read-check-write: both guards are
// evaluated and the write applied while the lock is held.
func (m *Memory) conditionalAdjustLocked(poolID engine.PoolID, delta int, expectedVersion int64) bool {
	p, ok := m.pools[poolID]
	if !ok || p.Version != expectedVersion {
		return false
	}
	next := p.Available + delta
	if next < 0 || next > p.Capacity {
		return false
	}
	p.Available = next
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	m.pools[poolID] = p
	return true
}

func (m *Memory) EnsurePool(_ context.Context, poolID engine.PoolID, label string, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensurePoolLocked(poolID, label, capacity)
}

func (m *Memory) ensurePoolLocked(poolID engine.PoolID, label string, capacity int) error {
	if _, ok := m.pools[poolID]; ok {
		return nil
	}
	m.pools[poolID] = engine.ResourcePool{
		ID:        poolID,
		Label:     label,
		Capacity:  capacity,
		Available: capacity,
		Version:   0,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) InsertConfirmed(_ context.Context, r engine.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertConfirmedLocked(r)
}

func (m *Memory) insertConfirmedLocked(r engine.Reservation) error {
	if _, ok := m.reservations[r.ID]; ok {
		return engine.ErrDuplicateReservation
	}
	r.Status = engine.StatusConfirmed
	m.seq++
	m.reservations[r.ID] = reservationRow{Reservation: r, seq: m.seq}
	return nil
}

func (m *Memory) FindConfirmed(_ context.Context, id engine.ReservationID) (*engine.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findConfirmedLocked(id), nil
}

func (m *Memory) findConfirmedLocked(id engine.ReservationID) *engine.Reservation {
	row, ok := m.reservations[id]
	if !ok || row.Status != engine.StatusConfirmed {
		return nil
	}
	r := row.Reservation
	return &r
}

func (m *Memory) MarkCancelled(_ context.Context, id engine.ReservationID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markCancelledLocked(id, at), nil
}

func (m *Memory) markCancelledLocked(id engine.ReservationID, at time.Time) bool {
	row, ok := m.reservations[id]
	if !ok || row.Status != engine.StatusConfirmed {
		return false
	}
	row.Status = engine.StatusCancelled
	row.CancelledAt = &at
	m.reservations[id] = row
	return true
}

func (m *Memory) CountConfirmed(_ context.Context, poolID engine.PoolID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, row := range m.reservations {
		if row.PoolID == poolID && row.Status == engine.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (m *Memory) SumConfirmedUnits(_ context.Context, poolID engine.PoolID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	units := 0
	for _, row := range m.reservations {
		if row.PoolID == poolID && row.Status == engine.StatusConfirmed {
			units += row.Units
		}
	}
	return units, nil
}

func (m *Memory) ListReservations(_ context.Context, poolID engine.PoolID) ([]engine.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(poolID), nil
}

func (m *Memory) listLocked(poolID engine.PoolID) []engine.Reservation {
	var rows []reservationRow
	for _, row := range m.reservations {
		if row.PoolID == poolID {
			rows = append(rows, row)
		}
	}
	// Newest first; insertion order breaks CreatedAt ties.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	result := make([]engine.Reservation, len(rows))
	for i, row := range rows {
		result[i] = row.Reservation
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on
// error. The lock is held for the whole scope, which also gives the
// serialized conditional writes the sqlite store gets from the database.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	pools        map[engine.PoolID]engine.ResourcePool
	reservations map[engine.ReservationID]reservationRow
	seq          int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	poolsCopy := make(map[engine.PoolID]engine.ResourcePool, len(tm.pools))
	for k, v := range tm.pools {
		poolsCopy[k] = v
	}
	resCopy := make(map[engine.ReservationID]reservationRow, len(tm.reservations))
	for k, v := range tm.reservations {
		resCopy[k] = v
	}
	return memorySnapshot{pools: poolsCopy, reservations: resCopy, seq: tm.seq}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.pools = s.pools
	tm.reservations = s.reservations
	tm.seq = s.seq
}

// txMemoryView routes store calls to the lock-free helpers; the parent's
// lock is already held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetPool(_ context.Context, poolID engine.PoolID) (*engine.ResourcePool, error) {
	return tv.parent.getPoolLocked(poolID), nil
}

func (tv *txMemoryView) ConditionalAdjust(_ context.Context, poolID engine.PoolID, delta int, expectedVersion int64) (bool, error) {
	return tv.parent.conditionalAdjustLocked(poolID, delta, expectedVersion), nil
}

func (tv *txMemoryView) EnsurePool(_ context.Context, poolID engine.PoolID, label string, capacity int) error {
	return tv.parent.ensurePoolLocked(poolID, label, capacity)
}

func (tv *txMemoryView) InsertConfirmed(_ context.Context, r engine.Reservation) error {
	return tv.parent.insertConfirmedLocked(r)
}

func (tv *txMemoryView) FindConfirmed(_ context.Context, id engine.ReservationID) (*engine.Reservation, error) {
	return tv.parent.findConfirmedLocked(id), nil
}

func (tv *txMemoryView) MarkCancelled(_ context.Context, id engine.ReservationID, at time.Time) (bool, error) {
	return tv.parent.markCancelledLocked(id, at), nil
}

func (tv *txMemoryView) CountConfirmed(_ context.Context, poolID engine.PoolID) (int, error) {
	count := 0
	for _, row := range tv.parent.reservations {
		if row.PoolID == poolID && row.Status == engine.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (tv *txMemoryView) SumConfirmedUnits(_ context.Context, poolID engine.PoolID) (int, error) {
	units := 0
	for _, row := range tv.parent.reservations {
		if row.PoolID == poolID && row.Status == engine.StatusConfirmed {
			units += row.Units
		}
	}
	return units, nil
}

func (tv *txMemoryView) ListReservations(_ context.Context, poolID engine.PoolID) ([]engine.Reservation, error) {
	return tv.parent.listLocked(poolID), nil
}
