package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"runs", "run_pairs", "schema_version"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := InitSchema(ctx, db); err != nil {
			t.Fatalf("InitSchema() call %d error = %v", i+1, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_version has %d rows, want 1", count)
	}
}

func TestInitSchema_NewerVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatalf("insert version: %v", err)
	}

	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("InitSchema() error = %v, want newer-version error", err)
	}
}

func TestRunPairs_CascadeDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, stage, lookahead, states, transitions, pairs_before, pairs_after, stats, duration_ns, outcome, created_at)
		VALUES ('r', 'downward', 1, 2, 1, 3, 2, '{}', 0, 'ok', 0)`); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO run_pairs (run_id, p, q) VALUES ('r', 0, 0), ('r', 1, 1)`); err != nil {
		t.Fatalf("insert pairs: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM runs WHERE id = 'r'`); err != nil {
		t.Fatalf("delete run: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_pairs`).Scan(&count); err != nil {
		t.Fatalf("count pairs: %v", err)
	}
	if count != 0 {
		t.Errorf("run_pairs has %d rows after cascade, want 0", count)
	}
}

func TestValidateIntegrity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}

func TestValidateIntegrity_DanglingPairs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("disable foreign keys: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO run_pairs (run_id, p, q) VALUES ('missing', 0, 0)`); err != nil {
		t.Fatalf("insert pair: %v", err)
	}

	err := ValidateIntegrity(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "foreign_key_check") {
		t.Errorf("ValidateIntegrity() error = %v, want foreign_key_check failure", err)
	}
}
