package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a metadata key does not exist for an asset.
var ErrNotFound = errors.New("metadata key not found")

// Store manages all variant persistence for the media optimizer.
type Store struct {
	db       *sql.DB
	dbPath   string
	resolver URLResolver
	mu       sync.RWMutex
}

// New creates a new Store instance.
// dbPath is the full path to the database file; the parent directory must
// already exist and be writable. The resolver turns internal storage
// paths into public locations when variants are written.
func New(ctx context.Context, dbPath string, resolver URLResolver) (*Store, error) {
	logging.Info("Variant store path: %s", dbPath)

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open variant store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to variant store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:       db,
		dbPath:   dbPath,
		resolver: resolver,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	logging.Info("Variant store initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- Per-asset metadata as key-value pairs (variant map, conversion state)
	CREATE TABLE IF NOT EXISTS asset_metadata (
		asset_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (asset_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_asset_metadata_asset ON asset_metadata(asset_id);

	-- Asynchronous conversion job guard, one row per asset
	CREATE TABLE IF NOT EXISTS conversion_jobs (
		asset_id TEXT PRIMARY KEY,
		state TEXT NOT NULL DEFAULT 'none',
		job_id TEXT,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Append-only conversion facts for savings statistics
	CREATE TABLE IF NOT EXISTS conversion_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id TEXT NOT NULL,
		format TEXT NOT NULL,
		size TEXT NOT NULL,
		original_bytes INTEGER NOT NULL,
		converted_bytes INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_conversion_records_asset ON conversion_records(asset_id);
	CREATE INDEX IF NOT EXISTS idx_conversion_records_format ON conversion_records(format);
	`

	if _, err = s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return s.runMigrations(ctx)
}

// runMigrations applies schema migrations
func (s *Store) runMigrations(ctx context.Context) error {
	// Migration 1: add job_id column to conversion_jobs if it doesn't
	// exist (early schemas tracked state only).
	var columnExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('conversion_jobs')
		WHERE name='job_id'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for job_id column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating store: adding job_id column to conversion_jobs")
		if _, err = s.db.ExecContext(ctx, `ALTER TABLE conversion_jobs ADD COLUMN job_id TEXT`); err != nil {
			return fmt.Errorf("failed to add job_id column: %w", err)
		}
	}

	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Resolver returns the configured URL resolver.
func (s *Store) Resolver() URLResolver {
	return s.resolver
}

// GetMetadata retrieves a metadata value for an asset.
// Returns ErrNotFound if the key doesn't exist.
func (s *Store) GetMetadata(ctx context.Context, assetID, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_metadata", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM asset_metadata WHERE asset_id = ? AND key = ?",
		assetID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil // not an error for metrics purposes
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata upserts a metadata key-value pair for an asset.
func (s *Store) SetMetadata(ctx context.Context, assetID, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO asset_metadata (asset_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(asset_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%s', 'now')
	`, assetID, key, value)
	return err
}

// DeleteMetadata removes a metadata key for an asset. Deleting a missing
// key is not an error.
func (s *Store) DeleteMetadata(ctx context.Context, assetID, key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_metadata", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM asset_metadata WHERE asset_id = ? AND key = ?",
		assetID, key,
	)
	return err
}

// UpdateDBMetrics updates store connection metrics
func (s *Store) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
