// Package prerefine removes relation pairs that a cheap structural check
// already refutes, before the lookahead game runs.
//
// Both downward filters compare label paths: sequences of (symbol, argument
// position) read from a state downwards. A pair survives the game only if q
// can reproduce every label path of p, so the filters never remove a pair
// the game would keep, for any lookahead.
package prerefine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/combinator"
	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/relation"
)

// Mode selects the downward filter.
type Mode int

const (
	// Linear compares label paths position by position.
	Linear Mode = iota
	// Branching additionally requires one transition of q to answer every
	// combination of child transitions of p at once.
	Branching
	// Off disables the downward filter.
	Off
)

func (m Mode) String() string {
	switch m {
	case Linear:
		return "linear"
	case Branching:
		return "branching"
	case Off:
		return "off"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration string to a Mode. The empty string is
// Linear.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return Linear, nil
	case "branching":
		return Branching, nil
	case "off":
		return Off, nil
	default:
		return Linear, fmt.Errorf("invalid prerefine mode: %s (valid: linear, branching, off)", s)
	}
}

// AutoDepth maps a lookahead to a pre-refinement depth.
func AutoDepth(la int) int {
	switch la {
	case 2, 3:
		return constants.ShallowPrerefineDepth
	case 4, 5:
		return constants.DeepPrerefineDepth
	default:
		return 0
	}
}

// CanImitate reports whether every label path of p of at most depth
// symbols is also a label path of q. Depth 0 is always true.
func CanImitate(m automaton.Model, p, q automaton.State, depth int) bool {
	return imitate(m, p, []automaton.State{q}, depth)
}

// imitate checks the label paths of p against the union of those of qs.
func imitate(m automaton.Model, p automaton.State, qs []automaton.State, depth int) bool {
	if depth <= 0 {
		return true
	}
	for _, s := range m.Symbols(p) {
		var answers []automaton.Transition
		for _, q := range qs {
			answers = append(answers, m.Transitions(q, s)...)
		}
		if len(answers) == 0 {
			return false
		}
		if depth == 1 {
			continue
		}
		own := m.Transitions(p, s)
		for i := 0; i < m.Rank(s); i++ {
			next := column(answers, i)
			for _, c := range column(own, i) {
				if !imitate(m, c, next, depth-1) {
					return false
				}
			}
		}
	}
	return true
}

// column returns the distinct states at argument position i of ts, sorted.
func column(ts []automaton.Transition, i int) []automaton.State {
	out := make([]automaton.State, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Children[i])
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// none stands in for a child of p that has no transitions.
var none = automaton.Transition{Parent: -1}

// CanImitateBranch is the branching filter. Below depth 2 it is CanImitate.
// At depth 2 and more, for every transition t of p and every choice of one
// transition per child of t, some transition of q with t's symbol must
// offer each chosen child symbol at the matching position; the remaining
// depth-2 levels are compared linearly beneath that transition.
func CanImitateBranch(m automaton.Model, p, q automaton.State, depth int) bool {
	if depth < 2 {
		return CanImitate(m, p, q, depth)
	}
	for _, t := range automaton.TransitionsOf(m, p) {
		answers := m.Transitions(q, t.Symbol)
		if len(answers) == 0 {
			return false
		}
		options := make([][]automaton.Transition, len(t.Children))
		for i, c := range t.Children {
			options[i] = automaton.TransitionsOf(m, c)
		}
		refuted := combinator.Any(options, none, func(combo []automaton.Transition) bool {
			for _, a := range answers {
				if answersCombination(m, combo, a, depth) {
					return false
				}
			}
			return true
		})
		if refuted {
			return false
		}
	}
	return true
}

func answersCombination(m automaton.Model, combo []automaton.Transition, a automaton.Transition, depth int) bool {
	for i, u := range combo {
		if u.Parent < 0 {
			continue
		}
		below := m.Transitions(a.Children[i], u.Symbol)
		if len(below) == 0 {
			return false
		}
		for j, c := range u.Children {
			if !imitate(m, c, column(below, j), depth-2) {
				return false
			}
		}
	}
	return true
}

// Downward clears every off-diagonal pair of w that fails the selected
// filter at depth and returns the number of pairs removed.
func Downward(m automaton.Model, w *relation.Matrix, mode Mode, depth int) int {
	if depth <= 0 || mode == Off {
		return 0
	}
	check := CanImitate
	if mode == Branching {
		check = CanImitateBranch
	}

	removed := 0
	n := w.Size()
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			ps, qs := automaton.State(p), automaton.State(q)
			if p == q || !w.Get(ps, qs) {
				continue
			}
			if !check(m, ps, qs, depth) {
				w.Clear(ps, qs)
				removed++
			}
		}
	}
	return removed
}

// Upward clears every off-diagonal pair (p, q) of w where p occurs as an
// argument at a (symbol, position) site at which q never occurs, or where
// p is final and q is not. It returns the number of pairs removed.
func Upward(m automaton.Model, ix *automaton.Index, w *relation.Matrix) int {
	removed := 0
	n := w.Size()
	for p := 0; p < n; p++ {
		ps := automaton.State(p)
		sites := ix.Sites(ps)
		for q := 0; q < n; q++ {
			qs := automaton.State(q)
			if p == q || !w.Get(ps, qs) {
				continue
			}
			if m.IsFinal(ps) && !m.IsFinal(qs) || !covers(ix, qs, sites) {
				w.Clear(ps, qs)
				removed++
			}
		}
	}
	return removed
}

func covers(ix *automaton.Index, q automaton.State, sites []automaton.Site) bool {
	for _, s := range sites {
		if ix.Count(q, s) == 0 {
			return false
		}
	}
	return true
}
