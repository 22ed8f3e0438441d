// Package store is the shared-store adapter for the instance registry.
// All fleet processes point at the same SQLite database; the atomic
// upsert on instance_id is the only isolation the liveness protocol
// needs, since writers never share a key.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// InstanceRow is one raw row from the instances table. Metrics is left
// untyped: the driver hands back TEXT or NULL, and normalization to a
// mapping happens once at the registry's read boundary.
type InstanceRow struct {
	InstanceID      string
	Hostname        string
	LastHeartbeat   time.Time
	DrainRequested  bool
	ProcessingCount int
	PipelineBusy    bool
	Metrics         any
}

// Store wraps the pooled connection to the shared instances database.
// database/sql scopes each statement to a pooled connection and releases
// it on every exit path, which is the acquire-use-release contract the
// registry relies on.
type Store struct {
	dbPath string
	db     *sql.DB
}

// Open opens (creating if needed) the shared store at dbPath and runs
// migrations. WAL mode keeps concurrent heartbeaters from serializing
// on the writer lock longer than necessary.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// migrate runs pending migrations.
func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}

	return nil
}

// UpsertHeartbeat writes one instance's liveness row in a single atomic
// statement. First call from an instance_id creates the row; later calls
// update it. drain_requested is deliberately left alone on update so an
// operator-set flag survives heartbeats.
func (s *Store) UpsertHeartbeat(ctx context.Context, instanceID, hostname string, at time.Time, processingCount int, pipelineBusy bool, metricsJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (
			instance_id, hostname, last_heartbeat,
			processing_count, pipeline_busy, metrics
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			hostname = excluded.hostname,
			last_heartbeat = excluded.last_heartbeat,
			processing_count = excluded.processing_count,
			pipeline_busy = excluded.pipeline_busy,
			metrics = excluded.metrics
	`, instanceID, hostname, at.UTC(), processingCount, pipelineBusy, metricsJSON)
	if err != nil {
		return core.ErrStoreUnavailable("HEARTBEAT_WRITE", "upserting instance heartbeat").WithCause(err)
	}
	return nil
}

// SelectAlive returns every row whose last_heartbeat is within threshold
// of now. The staleness filter lives in the query, not in callers.
func (s *Store) SelectAlive(ctx context.Context, threshold time.Duration) ([]InstanceRow, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, hostname, last_heartbeat, drain_requested,
		       processing_count, pipeline_busy, metrics
		FROM instances
		WHERE last_heartbeat >= ?
		ORDER BY instance_id
	`, cutoff)
	if err != nil {
		return nil, core.ErrStoreUnavailable("FLEET_READ", "querying alive instances").WithCause(err)
	}
	defer rows.Close()

	var result []InstanceRow
	for rows.Next() {
		row, err := scanInstance(rows)
		if err != nil {
			return nil, core.ErrStoreUnavailable("FLEET_SCAN", "scanning instance row").WithCause(err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStoreUnavailable("FLEET_READ", "iterating alive instances").WithCause(err)
	}

	return result, nil
}

// GetInstance returns a single row by id regardless of staleness, or a
// not-found error.
func (s *Store) GetInstance(ctx context.Context, instanceID string) (*InstanceRow, error) {
	r := s.db.QueryRowContext(ctx, `
		SELECT instance_id, hostname, last_heartbeat, drain_requested,
		       processing_count, pipeline_busy, metrics
		FROM instances
		WHERE instance_id = ?
	`, instanceID)

	row, err := scanInstance(r)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound("INSTANCE_NOT_FOUND", fmt.Sprintf("instance %s not registered", instanceID))
		}
		return nil, core.ErrStoreUnavailable("INSTANCE_READ", "querying instance").WithCause(err)
	}
	return &row, nil
}

// SetDrainRequested flips the drain flag for an instance. The flag is
// operator-owned: heartbeats never touch it and nothing clears it
// automatically.
func (s *Store) SetDrainRequested(ctx context.Context, instanceID string, drain bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE instances SET drain_requested = ? WHERE instance_id = ?",
		drain, instanceID)
	if err != nil {
		return core.ErrStoreUnavailable("DRAIN_WRITE", "updating drain flag").WithCause(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.ErrStoreUnavailable("DRAIN_WRITE", "reading drain update result").WithCause(err)
	}
	if affected == 0 {
		return core.ErrNotFound("INSTANCE_NOT_FOUND", fmt.Sprintf("instance %s not registered", instanceID))
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(sc scanner) (InstanceRow, error) {
	var (
		row     InstanceRow
		metrics sql.Null[string]
	)
	if err := sc.Scan(
		&row.InstanceID, &row.Hostname, &row.LastHeartbeat,
		&row.DrainRequested, &row.ProcessingCount, &row.PipelineBusy,
		&metrics,
	); err != nil {
		return InstanceRow{}, err
	}
	if metrics.Valid {
		row.Metrics = metrics.V
	}
	return row, nil
}
