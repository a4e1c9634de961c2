package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
-- One row per pipeline run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    stage TEXT NOT NULL,       -- 'downward', 'upward', 'combined', 'saturate'
    lookahead INTEGER NOT NULL,
    options TEXT,              -- JSON object
    states INTEGER NOT NULL,
    transitions INTEGER NOT NULL,
    pairs_before INTEGER NOT NULL,
    pairs_after INTEGER NOT NULL,
    stats TEXT NOT NULL,       -- JSON
    duration_ns INTEGER NOT NULL,
    outcome TEXT NOT NULL,     -- 'ok', 'timeout', 'error'
    error TEXT,
    created_at INTEGER NOT NULL  -- unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);

-- Final relation of each run
CREATE TABLE IF NOT EXISTS run_pairs (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    p INTEGER NOT NULL,
    q INTEGER NOT NULL,
    PRIMARY KEY (run_id, p, q)
);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database. On an existing one it
// checks integrity and refuses a version newer than SchemaVersion.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

// getSchemaVersion fails when schema_version does not exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	return version, err
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity fails if PRAGMA integrity_check reports anything but
// "ok" or PRAGMA foreign_key_check reports any dangling run_pairs row.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	problems, err := pragmaRows(ctx, db, "integrity_check", func(rows *sql.Rows) (string, error) {
		var result string
		if err := rows.Scan(&result); err != nil || result == "ok" {
			return "", err
		}
		return result, nil
	})
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity_check failed: %s", strings.Join(problems, "; "))
	}

	dangling, err := pragmaRows(ctx, db, "foreign_key_check", func(rows *sql.Rows) (string, error) {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s row %d -> %s", table, rowid.Int64, parent), nil
	})
	if err != nil {
		return err
	}
	if len(dangling) > 0 {
		return fmt.Errorf("foreign_key_check failed: %s", strings.Join(dangling, "; "))
	}
	return nil
}

// pragmaRows runs PRAGMA name and collects the non-empty strings scan
// returns for its rows.
func pragmaRows(ctx context.Context, db *sql.DB, name string, scan func(*sql.Rows) (string, error)) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA "+name)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s result: %w", name, err)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}
