package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const pruneEvery = time.Hour

// PostgresStore keeps seen fingerprints in a table with an expiry column.
// Expired rows are never reported as present and are pruned lazily.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time

	mu        sync.Mutex
	lastPrune time.Time
}

// NewPostgresStore connects, pings and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, connectionString string, log *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStoreFromDB(db, log)
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewPostgresStoreFromDB wraps an open handle without touching the schema.
func NewPostgresStoreFromDB(db *sql.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{db: db, log: log, now: time.Now}
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_fingerprints (
		fingerprint VARCHAR(128) PRIMARY KEY,
		seen_at     TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_seen_fingerprints_expires_at ON seen_fingerprints (expires_at);
	`
	_, err := ps.db.ExecContext(ctx, schema)
	return err
}

func (ps *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM seen_fingerprints WHERE fingerprint = $1 AND expires_at > $2)`
	if err := ps.db.QueryRowContext(ctx, query, key, ps.now()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return exists, nil
}

// SetEX upserts the fingerprint so marking again resets its expiry.
func (ps *PostgresStore) SetEX(ctx context.Context, key string, ttl time.Duration) error {
	now := ps.now()
	query := `
		INSERT INTO seen_fingerprints (fingerprint, seen_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint) DO UPDATE SET seen_at = EXCLUDED.seen_at, expires_at = EXCLUDED.expires_at
	`
	if _, err := ps.db.ExecContext(ctx, query, key, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("mark fingerprint: %w", err)
	}

	if ps.prunable(now) {
		if _, err := ps.Prune(ctx); err != nil {
			ps.log.Warn("prune expired fingerprints failed", "err", err)
		}
	}
	return nil
}

func (ps *PostgresStore) prunable(now time.Time) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if now.Sub(ps.lastPrune) < pruneEvery {
		return false
	}
	ps.lastPrune = now
	return true
}

// Prune deletes expired rows and returns how many were removed.
func (ps *PostgresStore) Prune(ctx context.Context) (int64, error) {
	result, err := ps.db.ExecContext(ctx, `DELETE FROM seen_fingerprints WHERE expires_at <= $1`, ps.now())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		ps.log.Info("pruned expired fingerprints", "rows", rows)
	}
	return rows, nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
