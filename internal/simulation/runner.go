package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/treesim/internal/pipeline"
	"github.com/nvandessel/treesim/internal/store"
)

// Runner orchestrates multi-variant simulation experiments against a real
// run store and the real engines.
type Runner struct {
	t     *testing.T
	store *store.SQLiteRunStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteRunStore(filepath.Join(tmpDir, ".treesim", "runs.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Run executes every variant of the scenario and returns the collected
// results. Any pipeline error fails the test.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	if scenario.Automaton == nil {
		r.t.Fatalf("scenario %s: no automaton", scenario.Name)
	}
	seen := make(map[string]bool, len(scenario.Variants))

	variants := make([]VariantResult, len(scenario.Variants))
	for i, v := range scenario.Variants {
		if seen[v.Label] {
			r.t.Fatalf("scenario %s: duplicate variant label %q", scenario.Name, v.Label)
		}
		seen[v.Label] = true

		if scenario.BeforeVariant != nil {
			scenario.BeforeVariant(i, r.store)
		}
		variants[i] = r.runVariant(ctx, i, v, scenario)
	}

	return SimulationResult{
		Name:     scenario.Name,
		Variants: variants,
		Store:    r.store,
	}
}

// runVariant executes a single pipeline configuration and reads its record
// back from the store.
func (r *Runner) runVariant(ctx context.Context, index int, v Variant, scenario Scenario) VariantResult {
	r.t.Helper()

	before := scenario.Automaton.Len()
	res, err := pipeline.New(v.Options, r.store).Run(ctx, scenario.Automaton)
	if err != nil {
		r.t.Fatalf("scenario %s: variant %s: Pipeline.Run: %v", scenario.Name, v.Label, err)
	}
	if scenario.Automaton.Len() != before {
		r.t.Fatalf("scenario %s: variant %s modified the input automaton", scenario.Name, v.Label)
	}

	run, err := r.store.GetRun(ctx, res.RunID)
	if err != nil {
		r.t.Fatalf("scenario %s: variant %s: GetRun: %v", scenario.Name, v.Label, err)
	}
	if run == nil {
		r.t.Fatalf("scenario %s: variant %s: run %s was not recorded", scenario.Name, v.Label, res.RunID)
	}

	return VariantResult{
		Index:  index,
		Label:  v.Label,
		Result: res,
		Run:    run,
	}
}
