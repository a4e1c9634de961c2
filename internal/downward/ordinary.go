package downward

import (
	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/timeout"
)

// refineOrdinary computes ordinary (lookahead one) downward simulation by
// direct fixpoint iteration: (p, q) survives when every transition of p is
// matched by a transition of q with the same symbol and related children.
// It produces the same relation as the game with Lookahead == 1.
func refineOrdinary(m automaton.Model, w *relation.Matrix, guard timeout.Guard, st *stats.Stats, removed func(p, q automaton.State)) {
	n := w.Size()
	initial := m.Initial()

	related := func(c, d automaton.State) bool {
		if c == d {
			return true
		}
		if c == initial {
			return false
		}
		return w.Get(c, d)
	}

	matches := func(t automaton.Transition, q automaton.State) bool {
		for _, u := range m.Transitions(q, t.Symbol) {
			ok := true
			for i, c := range t.Children {
				if !related(c, u.Children[i]) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
		return false
	}

	for changed := true; changed; {
		changed = false
		st.Passes++
		for p := 0; p < n; p++ {
			for q := 0; q < n; q++ {
				guard.Check()
				st.Visits++
				ps, qs := automaton.State(p), automaton.State(q)
				if p == q || !w.Get(ps, qs) {
					continue
				}
				for _, t := range automaton.TransitionsOf(m, ps) {
					if ps == initial || !matches(t, qs) {
						w.Clear(ps, qs)
						st.Refinements++
						removed(ps, qs)
						changed = true
						break
					}
				}
			}
		}
	}
}

// Ordinary computes the ordinary downward simulation of m from the default
// initial relation.
func Ordinary(m automaton.Model) *relation.Matrix {
	w := relation.Init(m.NumStates(), relation.DefaultOptions(m.Initial()))
	var st stats.Stats
	refineOrdinary(m, w, timeout.Guard{}, &st, func(automaton.State, automaton.State) {})
	return w
}
