// Package sqlite implements the persistence gateway on a single-table SQLite
// key-value store using the pure Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/alimda/cryptofolio/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Gateway is a domain.PersistenceGateway backed by SQLite.
type Gateway struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates (or opens) the database at path and ensures the schema exists.
// WAL mode keeps readers unblocked during the save bursts that follow trades.
func Open(path string, log zerolog.Logger) (*Gateway, error) {
	// file: URIs (in-memory databases in tests) skip filepath handling
	if !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = absPath
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps SQLite happy under WAL
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Gateway{
		db:  db,
		log: log.With().Str("component", "persistence").Logger(),
	}, nil
}

// Load unmarshals the JSON document stored under key into out.
// A missing key is (false, nil): first-run callers default to empty state.
// A stored document that no longer parses is reported as ErrMalformedState so
// the caller can degrade without losing the signal in the logs.
func (g *Gateway) Load(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := g.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key %q: %w", key, domain.ErrPersistenceUnavailable)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Persisted value does not parse")
		return false, fmt.Errorf("key %q: %w", key, domain.ErrMalformedState)
	}
	return true, nil
}

// Save stores value as a JSON document under key, replacing any previous one.
func (g *Gateway) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %q: %w", key, err)
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, domain.ErrPersistenceUnavailable)
	}
	return nil
}

// Close closes the underlying database.
func (g *Gateway) Close() error {
	return g.db.Close()
}
