package simulation

import (
	"testing"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/combine"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/store"
)

func mustVariant(t *testing.T, fn string, result SimulationResult, label string) *VariantResult {
	t.Helper()
	v := result.Variant(label)
	if v == nil {
		t.Fatalf("%s: scenario %s has no variant %q", fn, result.Name, label)
	}
	return v
}

// AssertRelation asserts that the final relation of a variant renders as
// want (rows of 0/1, as relation.Matrix.String).
func AssertRelation(t *testing.T, result SimulationResult, label, want string) {
	t.Helper()
	v := mustVariant(t, "AssertRelation", result, label)
	if got := v.Result.Relation.String(); got != want {
		t.Errorf("AssertRelation: variant %s:\n%s\nwant\n%s", label, got, want)
	}
}

// AssertAllAgree asserts that every variant computed the same final
// relation as the first one.
func AssertAllAgree(t *testing.T, result SimulationResult) {
	t.Helper()
	if len(result.Variants) == 0 {
		t.Fatal("AssertAllAgree: no variants")
	}
	first := result.Variants[0]
	for _, v := range result.Variants[1:] {
		if !v.Result.Relation.Equal(first.Result.Relation) {
			t.Errorf("AssertAllAgree: variant %s:\n%s\ndiffers from %s:\n%s",
				v.Label, v.Result.Relation, first.Label, first.Result.Relation)
		}
	}
}

// AssertSubset asserts that the relation of variant smaller is contained in
// the relation of variant larger.
func AssertSubset(t *testing.T, result SimulationResult, smaller, larger string) {
	t.Helper()
	s := mustVariant(t, "AssertSubset", result, smaller)
	l := mustVariant(t, "AssertSubset", result, larger)
	if !s.Result.Relation.SubsetOf(l.Result.Relation) {
		t.Errorf("AssertSubset: %s:\n%s\nis not contained in %s:\n%s",
			smaller, s.Result.Relation, larger, l.Result.Relation)
	}
}

// AssertMonotone asserts that variants, in order, compute growing relations.
func AssertMonotone(t *testing.T, result SimulationResult) {
	t.Helper()
	for i := 1; i < len(result.Variants); i++ {
		AssertSubset(t, result, result.Variants[i-1].Label, result.Variants[i].Label)
	}
}

// AssertGuarded asserts that every variant's downward relation is reflexive
// and respects the initiality guard.
func AssertGuarded(t *testing.T, result SimulationResult, initial automaton.State) {
	t.Helper()
	for _, v := range result.Variants {
		w := v.Result.Downward
		for p := automaton.State(0); int(p) < w.Size(); p++ {
			if !w.Get(p, p) {
				t.Errorf("AssertGuarded: variant %s: (%d,%d) missing", v.Label, p, p)
			}
			if p != initial && w.Get(initial, p) {
				t.Errorf("AssertGuarded: variant %s: initial state %d simulated by %d", v.Label, initial, p)
			}
		}
	}
}

// AssertCombinerBounds asserts that both the combined and the downward
// relation lie within compose(dw, up) for every variant that ran the upward
// game.
func AssertCombinerBounds(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, v := range result.Variants {
		res := v.Result
		if res.Upward == nil {
			continue
		}
		composed := combine.Compose(res.Downward, res.Upward)
		if !res.Relation.SubsetOf(composed) {
			t.Errorf("AssertCombinerBounds: variant %s: combined relation exceeds the composition", v.Label)
		}
		if !res.Downward.SubsetOf(composed) {
			t.Errorf("AssertCombinerBounds: variant %s: composition lost downward pairs", v.Label)
		}
	}
}

// AssertRecorded asserts that every variant was stored with outcome ok and
// that the stored pairs reproduce the computed relation.
func AssertRecorded(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, v := range result.Variants {
		run := v.Run
		if run.Outcome != store.OutcomeOK {
			t.Errorf("AssertRecorded: variant %s: outcome %s", v.Label, run.Outcome)
			continue
		}
		if run.Stage != v.Result.Stage {
			t.Errorf("AssertRecorded: variant %s: stage %s, want %s", v.Label, run.Stage, v.Result.Stage)
		}
		w := relation.New(run.States)
		for _, pq := range run.Pairs {
			w.Set(pq[0], pq[1], true)
		}
		if !w.Equal(v.Result.Relation) {
			t.Errorf("AssertRecorded: variant %s: stored pairs\n%s\ndiffer from\n%s", v.Label, w, v.Result.Relation)
		}
		if v.Result.Upward == nil && run.PairsAfter > run.PairsBefore {
			t.Errorf("AssertRecorded: variant %s: relation grew from %d to %d pairs", v.Label, run.PairsBefore, run.PairsAfter)
		}
	}
}
