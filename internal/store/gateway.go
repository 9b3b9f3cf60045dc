// Package store persists onboarding data collected by a flow.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
)

// Gateway upserts a row keyed by conflictKey into table.
type Gateway interface {
	Upsert(ctx context.Context, table string, row map[string]any, conflictKey string) error
}

var (
	// ErrUnknownTable is returned for tables outside the onboarding schema.
	ErrUnknownTable = errors.New("unknown table")
	// ErrMissingConflictKey is returned when the row lacks its conflict key value.
	ErrMissingConflictKey = errors.New("row is missing conflict key")
)

// Tables lists the tables the SQLite gateway accepts. Each row stores its
// conflict key column plus a JSON document of the remaining fields.
var Tables = []string{
	"organization_profiles",
	"localization_settings",
	"mini_rules",
	"integrations",
	"pledges",
}

// SQLite is a Gateway backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at dbPath.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	// Create tables if not exist
	for _, table := range Tables {
		query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`, table)
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: create %s: %w", table, err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Upsert inserts row into table or replaces the document of the existing row
// with the same conflict key value.
func (s *SQLite) Upsert(ctx context.Context, table string, row map[string]any, conflictKey string) error {
	if !slices.Contains(Tables, table) {
		return fmt.Errorf("store: %w: %s", ErrUnknownTable, table)
	}
	if conflictKey != "user_id" {
		return fmt.Errorf("store: %s: unsupported conflict key %q", table, conflictKey)
	}

	key, ok := row[conflictKey]
	if !ok || key == nil || key == "" {
		return fmt.Errorf("store: %s: %w %q", table, ErrMissingConflictKey, conflictKey)
	}

	doc := maps.Clone(row)
	delete(doc, conflictKey)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: %s: encode row: %w", table, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, table)

	start := time.Now()
	_, err = s.db.ExecContext(ctx, query, fmt.Sprint(key), string(data), start.UTC())
	observeUpsert(table, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", table, err)
	}

	slog.Debug("upserted row", "table", table, "user_id", key)

	return nil
}

// Get returns the stored document for userID in table.
func (s *SQLite) Get(ctx context.Context, table, userID string) (map[string]any, error) {
	if !slices.Contains(Tables, table) {
		return nil, fmt.Errorf("store: %w: %s", ErrUnknownTable, table)
	}

	var data string
	query := fmt.Sprintf(`SELECT data FROM %s WHERE user_id = ?`, table)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&data); err != nil {
		return nil, fmt.Errorf("store: get %s: %w", table, err)
	}

	doc := map[string]any{}
	if err := json.NewDecoder(strings.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", table, err)
	}

	return doc, nil
}
