package downward

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/history"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/timeout"
)

// leaves builds: a->1, a->2, f(1,1)->0 with 0 initial.
func leaves(t *testing.T) *automaton.Automaton {
	t.Helper()
	a := automaton.New(3, []int{0, 2}, 0)
	a.Add(automaton.Transition{Parent: 1, Symbol: 0})
	a.Add(automaton.Transition{Parent: 2, Symbol: 0})
	a.Add(automaton.Transition{Parent: 0, Symbol: 1, Children: []automaton.State{1, 1}})
	return a
}

func refine(t *testing.T, m automaton.Model, cfg Config) *relation.Matrix {
	t.Helper()
	w := relation.Init(m.NumStates(), relation.DefaultOptions(m.Initial()))
	if _, err := NewEngine(m, cfg).Refine(context.Background(), w); err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	return w
}

func randomAutomata(t *testing.T, count int) []*automaton.Automaton {
	t.Helper()
	out := make([]*automaton.Automaton, count)
	for i := range out {
		out[i] = automaton.Generate(uint64(i+1), automaton.Shape{States: 5, Transitions: 11, Finals: 1})
	}
	return out
}

func TestRefine_LeafScenario(t *testing.T) {
	want := "100\n011\n011\n"

	for la := 1; la <= 3; la++ {
		for _, shortcut := range []bool{true, false} {
			for _, good := range history.Scopes() {
				for _, bad := range history.Scopes() {
					name := fmt.Sprintf("la=%d/shortcut=%v/%s/%s", la, shortcut, good, bad)
					t.Run(name, func(t *testing.T) {
						cfg := DefaultConfig()
						cfg.Lookahead = la
						cfg.Shortcut = shortcut
						cfg.GoodCache = good
						cfg.BadCache = bad
						if got := refine(t, leaves(t), cfg).String(); got != want {
							t.Errorf("Refine() =\n%s\nwant\n%s", got, want)
						}
					})
				}
			}
		}
	}
}

func TestRefine_CacheTransparency(t *testing.T) {
	modes := []Mode{ModeBoolean, ModeV1, ModeV2}

	for i, a := range randomAutomata(t, 6) {
		for _, la := range []int{2, 3} {
			for _, mode := range modes {
				base := DefaultConfig()
				base.Lookahead = la
				base.Mode = mode
				want := refine(t, a, base)

				for _, good := range history.Scopes() {
					for _, bad := range history.Scopes() {
						cfg := base
						cfg.GoodCache = good
						cfg.BadCache = bad
						got := refine(t, a, cfg)
						if !got.Equal(want) {
							t.Errorf("automaton %d la=%d mode=%s good=%s bad=%s:\n%s\nwant\n%s",
								i, la, mode, good, bad, got, want)
						}
					}
				}
			}
		}
	}
}

func TestRefine_LogicDoesNotChangeFixpoint(t *testing.T) {
	for i, a := range randomAutomata(t, 8) {
		cfg := DefaultConfig()
		cfg.Lookahead = 3
		want := refine(t, a, cfg)

		for _, mode := range []Mode{ModeV1, ModeV2} {
			cfg.Mode = mode
			if got := refine(t, a, cfg); !got.Equal(want) {
				t.Errorf("automaton %d mode=%s:\n%s\nwant\n%s", i, mode, got, want)
			}
		}
	}
}

func TestRefine_OrderIndependence(t *testing.T) {
	orders := []Order{OrderNone, OrderInitialFirst, OrderArityFirst}

	for i, a := range randomAutomata(t, 8) {
		cfg := DefaultConfig()
		cfg.Lookahead = 2
		want := refine(t, a, cfg)

		for _, o := range orders[1:] {
			cfg.Order = o
			if got := refine(t, a, cfg); !got.Equal(want) {
				t.Errorf("automaton %d order=%s:\n%s\nwant\n%s", i, o, got, want)
			}
		}
	}
}

func TestRefine_MonotoneAndIdempotent(t *testing.T) {
	for i, a := range randomAutomata(t, 8) {
		for _, la := range []int{1, 2, 3} {
			cfg := DefaultConfig()
			cfg.Lookahead = la
			e := NewEngine(a, cfg)

			before := relation.Init(a.NumStates(), relation.DefaultOptions(a.Initial()))
			w := before.Clone()
			st, err := e.Refine(context.Background(), w)
			if err != nil {
				t.Fatalf("Refine() error = %v", err)
			}
			if !w.SubsetOf(before) {
				t.Errorf("automaton %d la=%d: refinement added pairs", i, la)
			}
			if got := int64(before.Count() - w.Count()); got != st.Refinements {
				t.Errorf("automaton %d la=%d: Refinements = %d, removed %d", i, la, st.Refinements, got)
			}

			again := w.Clone()
			st2, err := e.Refine(context.Background(), again)
			if err != nil {
				t.Fatalf("second Refine() error = %v", err)
			}
			if !again.Equal(w) || st2.Refinements != 0 {
				t.Errorf("automaton %d la=%d: second refinement removed %d pairs", i, la, st2.Refinements)
			}
		}
	}
}

func TestRefine_LookaheadGrowsRelation(t *testing.T) {
	for i, a := range randomAutomata(t, 8) {
		var prev *relation.Matrix
		for la := 1; la <= 3; la++ {
			cfg := DefaultConfig()
			cfg.Lookahead = la
			w := refine(t, a, cfg)
			if prev != nil && !prev.SubsetOf(w) {
				t.Errorf("automaton %d: la=%d relation does not contain la=%d relation", i, la, la-1)
			}
			prev = w
		}
	}
}

func TestRefine_ShortcutMatchesGame(t *testing.T) {
	for i, a := range randomAutomata(t, 10) {
		cfg := DefaultConfig()
		cfg.Lookahead = 1
		cfg.Shortcut = false
		game := refine(t, a, cfg)

		if got := Ordinary(a); !got.Equal(game) {
			t.Errorf("automaton %d: Ordinary() =\n%s\ngame\n%s", i, got, game)
		}
	}
}

func TestRefine_StrictStart(t *testing.T) {
	a := leaves(t)
	w := relation.Init(3, relation.Options{Strict: true, Default: true, Guard: true})

	cfg := DefaultConfig()
	cfg.Lookahead = 2
	if _, err := NewEngine(a, cfg).Refine(context.Background(), w); err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if got, want := w.String(), "000\n001\n010\n"; got != want {
		t.Errorf("Refine() =\n%s\nwant\n%s", got, want)
	}
}

// fork builds two states 1 and 2 whose h-children differ: 3 is dead, 5 can
// still be extended. 4 and 6 have an a-transition.
func fork(t *testing.T) *automaton.Automaton {
	t.Helper()
	a := automaton.New(7, []int{0, 2, 1}, 0)
	a.Add(automaton.Transition{Parent: 1, Symbol: 1, Children: []automaton.State{3, 5}})
	a.Add(automaton.Transition{Parent: 2, Symbol: 1, Children: []automaton.State{4, 6}})
	a.Add(automaton.Transition{Parent: 4, Symbol: 0})
	a.Add(automaton.Transition{Parent: 5, Symbol: 2, Children: []automaton.State{5}})
	a.Add(automaton.Transition{Parent: 6, Symbol: 0})
	return a
}

func TestVerdict_TieBreak(t *testing.T) {
	a := fork(t)
	w := relation.Init(7, relation.DefaultOptions(0))
	w.Clear(3, 4)
	w.Clear(5, 6)

	tests := []struct {
		mode Mode
		want history.Verdict
	}{
		{ModeV1, history.StrongFail},
		{ModeV2, history.WeakFail},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Lookahead = 1
			cfg.Mode = tt.mode
			got, err := NewEngine(a, cfg).Verdict(context.Background(), w, 1, 2)
			if err != nil {
				t.Fatalf("Verdict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verdict(1,2) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVerdict_WeakBecomesStrong(t *testing.T) {
	a := automaton.New(5, []int{0, 1}, 0)
	a.Add(automaton.Transition{Parent: 1, Symbol: 1, Children: []automaton.State{3}})
	a.Add(automaton.Transition{Parent: 2, Symbol: 1, Children: []automaton.State{4}})
	a.Add(automaton.Transition{Parent: 3, Symbol: 0})

	w := relation.Init(5, relation.DefaultOptions(0))
	w.Clear(3, 4)

	tests := []struct {
		la   int
		p, q automaton.State
		want history.Verdict
	}{
		{1, 1, 2, history.WeakFail},
		{2, 1, 2, history.StrongFail},
		{1, 2, 1, history.Success},
		{1, 1, 1, history.Success},
		{1, 3, 0, history.StrongFail},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("la=%d/%d,%d", tt.la, tt.p, tt.q), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Lookahead = tt.la
			cfg.Mode = ModeV1
			got, err := NewEngine(a, cfg).Verdict(context.Background(), w, tt.p, tt.q)
			if err != nil {
				t.Fatalf("Verdict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verdict(%d,%d) = %s, want %s", tt.p, tt.q, got, tt.want)
			}
		})
	}
}

func TestVerdict_DeadLeafIsStrong(t *testing.T) {
	a := fork(t)
	w := relation.Init(7, relation.DefaultOptions(0))
	w.Clear(3, 4)

	for _, mode := range []Mode{ModeV1, ModeV2} {
		cfg := DefaultConfig()
		cfg.Lookahead = 1
		cfg.Mode = mode
		got, err := NewEngine(a, cfg).Verdict(context.Background(), w, 1, 2)
		if err != nil {
			t.Fatalf("Verdict() error = %v", err)
		}
		if got != history.StrongFail {
			t.Errorf("%s: Verdict(1,2) = %s, want %s", mode, got, history.StrongFail)
		}
	}
}

func TestAttack(t *testing.T) {
	a := leaves(t)
	w := relation.Init(3, relation.DefaultOptions(0))
	e := NewEngine(a, DefaultConfig())

	tests := []struct {
		p, q automaton.State
		want bool
	}{
		{1, 2, false},
		{2, 1, false},
		{1, 0, true},
		{0, 1, true},
		{0, 0, false},
	}

	for _, tt := range tests {
		got, err := e.Attack(context.Background(), w, tt.p, tt.q)
		if err != nil {
			t.Fatalf("Attack() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("Attack(%d,%d) = %v, want %v", tt.p, tt.q, got, tt.want)
		}
	}
	if w.Count() != 7 {
		t.Errorf("Attack modified the relation: Count() = %d", w.Count())
	}
}

func TestVerdict_PanicsWithoutThreeValuedLogic(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if !strings.Contains(fmt.Sprint(r), "3-valued logic is disabled") {
			t.Errorf("panic = %v", r)
		}
	}()
	a := leaves(t)
	w := relation.Init(3, relation.DefaultOptions(0))
	NewEngine(a, DefaultConfig()).Verdict(context.Background(), w, 1, 2)
}

func TestRefine_SizeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewEngine(leaves(t), DefaultConfig()).Refine(context.Background(), relation.Identity(4))
}

func TestNewEngine_InvalidConfigPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	cfg := DefaultConfig()
	cfg.Lookahead = 0
	NewEngine(leaves(t), cfg)
}

func TestRefine_Cancelled(t *testing.T) {
	a := automaton.Generate(3, automaton.Shape{States: 6, Transitions: 14})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.Lookahead = 3
	w := relation.Init(6, relation.DefaultOptions(0))
	_, err := NewEngine(a, cfg).Refine(ctx, w)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !timeout.IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(%v, context.Canceled) = false", err)
	}
	var te *timeout.Error
	if errors.As(err, &te) {
		if te.Stage != Stage {
			t.Errorf("Stage = %q, want %q", te.Stage, Stage)
		}
		if te.Automaton != automaton.Model(a) {
			t.Error("Automaton does not reference the refined automaton")
		}
	}
}

func TestRefine_Stats(t *testing.T) {
	a := automaton.Generate(5, automaton.Shape{States: 6, Transitions: 14, Finals: 2})
	cfg := DefaultConfig()
	cfg.Lookahead = 3
	cfg.Mode = ModeV1
	cfg.GoodCache = history.Global
	cfg.BadCache = history.Global

	w := relation.Init(6, relation.DefaultOptions(0))
	st, err := NewEngine(a, cfg).Refine(context.Background(), w)
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if st.Passes < 1 {
		t.Errorf("Passes = %d, want >= 1", st.Passes)
	}
	if st.Visits < 36 {
		t.Errorf("Visits = %d, want >= 36", st.Visits)
	}
	if st.CacheHits > st.CacheLookups {
		t.Errorf("CacheHits %d > CacheLookups %d", st.CacheHits, st.CacheLookups)
	}
	if st.Elapsed <= 0 {
		t.Error("Elapsed not recorded")
	}
}
