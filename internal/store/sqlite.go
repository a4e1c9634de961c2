package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/constants"
	_ "modernc.org/sqlite"
)

// SQLiteRunStore implements RunStore using SQLite for persistence.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (or creates) the run database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one connection keeps per-connection pragmas in effect
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun stores run and its pairs in a single transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run) (string, error) {
	if err := prepare(&run); err != nil {
		return "", err
	}

	optionsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_pairs WHERE run_id = ?`, run.ID); err != nil {
		return "", fmt.Errorf("failed to clear pairs: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, stage, lookahead, options, states, transitions,
			pairs_before, pairs_after, stats, duration_ns, outcome, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Stage), run.Lookahead, string(optionsJSON), run.States, run.Transitions,
		run.PairsBefore, run.PairsAfter, string(statsJSON), int64(run.Duration), string(run.Outcome),
		nullString(run.Error), run.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.Pairs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO run_pairs (run_id, p, q) VALUES (?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("failed to prepare pair insert: %w", err)
		}
		defer stmt.Close()
		for _, pq := range run.Pairs {
			if _, err := stmt.ExecContext(ctx, run.ID, int(pq[0]), int(pq[1])); err != nil {
				return "", fmt.Errorf("failed to insert pair: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// GetRun retrieves a run and its pairs. Returns nil if not found.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT p, q FROM run_pairs WHERE run_id = ? ORDER BY p, q`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p, q int
		if err := rows.Scan(&p, &q); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		run.Pairs = append(run.Pairs, [2]automaton.State{automaton.State(p), automaton.State(q)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pairs: %w", err)
	}
	return run, nil
}

// ListRuns returns matching runs, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter Filter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs`
	var conds []string
	var args []any
	if filter.Stage != "" {
		conds = append(conds, "stage = ?")
		args = append(args, string(filter.Stage))
	}
	if filter.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its pairs.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

const runColumns = `id, stage, lookahead, options, states, transitions,
	pairs_before, pairs_after, stats, duration_ns, outcome, error, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                 Run
		stage, outcome      string
		optionsJSON, errMsg sql.NullString
		statsJSON           string
		durationNs, created int64
	)
	if err := row.Scan(&run.ID, &stage, &run.Lookahead, &optionsJSON, &run.States, &run.Transitions,
		&run.PairsBefore, &run.PairsAfter, &statsJSON, &durationNs, &outcome, &errMsg, &created); err != nil {
		return nil, err
	}

	run.Stage = constants.Stage(stage)
	run.Outcome = Outcome(outcome)
	run.Error = errMsg.String
	run.Duration = time.Duration(durationNs)
	run.CreatedAt = time.Unix(0, created).UTC()

	if optionsJSON.Valid && optionsJSON.String != "" && optionsJSON.String != "null" {
		if err := json.Unmarshal([]byte(optionsJSON.String), &run.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return &run, nil
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
