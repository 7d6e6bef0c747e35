/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:

	Implements the persistence interfaces (engine.PoolStore, engine.LedgerStore,
	engine.TxStore) using SQLite. In production, the same patterns apply to
	PostgreSQL - only minor SQL dialect differences.

THE CONDITIONAL WRITE:

	ConditionalAdjust maps to ONE UPDATE statement whose WHERE clause carries
	both guards: an equality predicate on the version column and a range
	predicate on the resulting available value. SQLite evaluates and applies
	the statement as a single indivisible step, so a stale writer or an
	out-of-bounds adjustment changes nothing and reports zero rows affected.
	Splitting this into a read followed by a write would reintroduce the
	lost-update race the design exists to prevent.

KEY TABLES:

	pools:        One row per resource pool (the shared counter record)
	reservations: The ledger; rows are soft-cancelled, never deleted

WAL MODE:

	SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
	- Multiple readers don't block
	- Single writer at a time
	- Better crash recovery

USAGE:

	store, err := sqlite.New("./data/seatpool.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	eng := engine.New(store)

MIGRATION:

	Schema is auto-migrated on New(). For production, use a proper
	migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/seatpool/engine"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time, and each ":memory:" connection
	// would otherwise get its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Resource pools (the shared counter records)
	CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity >= 0),
		available INTEGER NOT NULL CHECK (available >= 0 AND available <= capacity),
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Reservations (the ledger; soft-cancelled, never deleted)
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL REFERENCES pools(id),
		requester_id TEXT NOT NULL,
		units INTEGER NOT NULL CHECK (units > 0),
		status TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
		created_at TEXT NOT NULL,
		cancelled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_pool
		ON reservations(pool_id, created_at DESC);

	-- Hot path: confirmed lookups and summary counts
	CREATE INDEX IF NOT EXISTS idx_reservations_pool_status
		ON reservations(pool_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the common surface of *sql.DB and *sql.Tx the store writes through.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// POOL STORE (engine.PoolStore interface)
// =============================================================================

// GetPool returns the pool record or nil if absent.
func (s *Store) GetPool(ctx context.Context, poolID engine.PoolID) (*engine.ResourcePool, error) {
	return getPool(ctx, s.db, poolID)
}

func getPool(ctx context.Context, db dbtx, poolID engine.PoolID) (*engine.ResourcePool, error) {
	var (
		p         engine.ResourcePool
		updatedAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, label, capacity, available, version, updated_at FROM pools WHERE id = ?",
		poolID,
	).Scan(&p.ID, &p.Label, &p.Capacity, &p.Available, &p.Version, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}

	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ConditionalAdjust applies the delta in one atomic UPDATE guarded by the
// version fence and the [0, capacity] range predicate. Rows-affected tells
// whether the write took effect; a failed guard leaves the row untouched.
func (s *Store) ConditionalAdjust(ctx context.Context, poolID engine.PoolID, delta int, expectedVersion int64) (bool, error) {
	return conditionalAdjust(ctx, s.db, poolID, delta, expectedVersion)
}

func conditionalAdjust(ctx context.Context, db dbtx, poolID engine.PoolID, delta int, expectedVersion int64) (bool, error) {
	query := `
		UPDATE pools
		SET available = available + ?,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ?
		  AND version = ?
		  AND available + ? BETWEEN 0 AND capacity
	`

	res, err := db.ExecContext(ctx, query,
		delta,
		time.Now().UTC().Format(time.RFC3339),
		poolID,
		expectedVersion,
		delta,
	)
	if err != nil {
		return false, fmt.Errorf("failed to adjust pool: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// EnsurePool creates the pool if it doesn't exist. Idempotent; an existing
// pool keeps its state, including any outstanding reservations.
func (s *Store) EnsurePool(ctx context.Context, poolID engine.PoolID, label string, capacity int) error {
	return ensurePool(ctx, s.db, poolID, label, capacity)
}

func ensurePool(ctx context.Context, db dbtx, poolID engine.PoolID, label string, capacity int) error {
	query := `
		INSERT INTO pools (id, label, capacity, available, version, updated_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := db.ExecContext(ctx, query,
		poolID, label, capacity, capacity,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure pool: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGER STORE (engine.LedgerStore interface)
// =============================================================================

// InsertConfirmed writes a new reservation with status confirmed.
func (s *Store) InsertConfirmed(ctx context.Context, r engine.Reservation) error {
	return insertConfirmed(ctx, s.db, r)
}

func insertConfirmed(ctx context.Context, db dbtx, r engine.Reservation) error {
	query := `
		INSERT INTO reservations (id, pool_id, requester_id, units, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		r.ID, r.PoolID, r.RequesterID, r.Units,
		engine.StatusConfirmed,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateReservation
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

// FindConfirmed returns the reservation or nil. Restricted to status
// confirmed: cancelled and nonexistent ids are indistinguishable.
func (s *Store) FindConfirmed(ctx context.Context, id engine.ReservationID) (*engine.Reservation, error) {
	return findConfirmed(ctx, s.db, id)
}

func findConfirmed(ctx context.Context, db dbtx, id engine.ReservationID) (*engine.Reservation, error) {
	query := `
		SELECT id, pool_id, requester_id, units, status, created_at, cancelled_at
		FROM reservations
		WHERE id = ? AND status = ?
	`

	row := db.QueryRowContext(ctx, query, id, engine.StatusConfirmed)
	r, err := scanReservation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return r, nil
}

// MarkCancelled transitions a confirmed row to cancelled. Rows-affected
// guards against a concurrent cancel of the same id.
func (s *Store) MarkCancelled(ctx context.Context, id engine.ReservationID, at time.Time) (bool, error) {
	return markCancelled(ctx, s.db, id, at)
}

func markCancelled(ctx context.Context, db dbtx, id engine.ReservationID, at time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = ?, cancelled_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := db.ExecContext(ctx, query,
		engine.StatusCancelled,
		at.UTC().Format(time.RFC3339),
		id,
		engine.StatusConfirmed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// CountConfirmed returns the number of confirmed reservations for a pool.
func (s *Store) CountConfirmed(ctx context.Context, poolID engine.PoolID) (int, error) {
	return countConfirmed(ctx, s.db, poolID)
}

func countConfirmed(ctx context.Context, db dbtx, poolID engine.PoolID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE pool_id = ? AND status = ?",
		poolID, engine.StatusConfirmed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

// SumConfirmedUnits returns the total units held by confirmed reservations.
func (s *Store) SumConfirmedUnits(ctx context.Context, poolID engine.PoolID) (int, error) {
	return sumConfirmedUnits(ctx, s.db, poolID)
}

func sumConfirmedUnits(ctx context.Context, db dbtx, poolID engine.PoolID) (int, error) {
	var units int
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(units), 0) FROM reservations WHERE pool_id = ? AND status = ?",
		poolID, engine.StatusConfirmed,
	).Scan(&units)
	if err != nil {
		return 0, fmt.Errorf("failed to sum reservation units: %w", err)
	}
	return units, nil
}

// ListReservations returns all reservations for a pool, newest first.
func (s *Store) ListReservations(ctx context.Context, poolID engine.PoolID) ([]engine.Reservation, error) {
	return listReservations(ctx, s.db, poolID)
}

func listReservations(ctx context.Context, db dbtx, poolID engine.PoolID) ([]engine.Reservation, error) {
	query := `
		SELECT id, pool_id, requester_id, units, status, created_at, cancelled_at
		FROM reservations
		WHERE pool_id = ?
		ORDER BY created_at DESC, rowid DESC
	`

	rows, err := db.QueryContext(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []engine.Reservation
	for rows.Next() {
		r, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

func scanReservation(scan func(dest ...any) error) (*engine.Reservation, error) {
	var (
		r           engine.Reservation
		createdAt   string
		cancelledAt sql.NullString
	)

	err := scan(&r.ID, &r.PoolID, &r.RequesterID, &r.Units, &r.Status, &createdAt, &cancelledAt)
	if err != nil {
		return nil, err
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if cancelledAt.Valid {
		t, _ := time.Parse(time.RFC3339, cancelledAt.String)
		r.CancelledAt = &t
	}
	return &r, nil
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Any error from fn
// rolls back every write made through the handle.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes store calls through one *sql.Tx handle.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetPool(ctx context.Context, poolID engine.PoolID) (*engine.ResourcePool, error) {
	return getPool(ctx, ts.tx, poolID)
}

func (ts *txStore) ConditionalAdjust(ctx context.Context, poolID engine.PoolID, delta int, expectedVersion int64) (bool, error) {
	return conditionalAdjust(ctx, ts.tx, poolID, delta, expectedVersion)
}

func (ts *txStore) EnsurePool(ctx context.Context, poolID engine.PoolID, label string, capacity int) error {
	return ensurePool(ctx, ts.tx, poolID, label, capacity)
}

func (ts *txStore) InsertConfirmed(ctx context.Context, r engine.Reservation) error {
	return insertConfirmed(ctx, ts.tx, r)
}

func (ts *txStore) FindConfirmed(ctx context.Context, id engine.ReservationID) (*engine.Reservation, error) {
	return findConfirmed(ctx, ts.tx, id)
}

func (ts *txStore) MarkCancelled(ctx context.Context, id engine.ReservationID, at time.Time) (bool, error) {
	return markCancelled(ctx, ts.tx, id, at)
}

func (ts *txStore) CountConfirmed(ctx context.Context, poolID engine.PoolID) (int, error) {
	return countConfirmed(ctx, ts.tx, poolID)
}

func (ts *txStore) SumConfirmedUnits(ctx context.Context, poolID engine.PoolID) (int, error) {
	return sumConfirmedUnits(ctx, ts.tx, poolID)
}

func (ts *txStore) ListReservations(ctx context.Context, poolID engine.PoolID) ([]engine.Reservation, error) {
	return listReservations(ctx, ts.tx, poolID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"reservations", "pools"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
