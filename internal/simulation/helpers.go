package simulation

import (
	"fmt"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/downward"
	"github.com/nvandessel/treesim/internal/history"
	"github.com/nvandessel/treesim/internal/pipeline"
	"github.com/nvandessel/treesim/internal/prerefine"
)

// AutomatonDef is a flat builder for constructing automata in tests.
type AutomatonDef struct {
	States  int
	Ranks   []int
	Initial automaton.State
	Finals  []automaton.State

	// Transitions lists (parent, symbol, children...) tuples.
	Transitions [][]int
}

// Build converts the definition into an automaton. Malformed transitions panic.
func (s AutomatonDef) Build() *automaton.Automaton {
	a := automaton.New(s.States, s.Ranks, s.Initial)
	for _, f := range s.Finals {
		a.SetFinal(f)
	}
	for _, tr := range s.Transitions {
		if len(tr) < 2 {
			panic(fmt.Sprintf("simulation: transition %v needs a parent and a symbol", tr))
		}
		children := make([]automaton.State, len(tr)-2)
		for i, c := range tr[2:] {
			children[i] = automaton.State(c)
		}
		a.Add(automaton.Transition{
			Parent:   automaton.State(tr[0]),
			Symbol:   automaton.Symbol(tr[1]),
			Children: children,
		})
	}
	return a
}

// Leaves is the three-state scenario: a->1, a->2, f(1,1)->0 with 0 initial.
func Leaves() AutomatonDef {
	return AutomatonDef{
		States:      3,
		Ranks:       []int{0, 2},
		Initial:     0,
		Transitions: [][]int{{1, 0}, {2, 0}, {0, 1, 1, 1}},
	}
}

// Options returns the default pipeline options at lookahead la.
func Options(la int) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Downward.Lookahead = la
	return opts
}

// CacheVariants returns one variant per combination of history scopes for
// both caches and both 3-valued logics, at lookahead la.
func CacheVariants(la int) []Variant {
	var out []Variant
	for _, mode := range []downward.Mode{downward.ModeBoolean, downward.ModeV1, downward.ModeV2} {
		for _, good := range history.Scopes() {
			for _, bad := range history.Scopes() {
				opts := Options(la)
				opts.Downward.Shortcut = false
				opts.Downward.Mode = mode
				opts.Downward.GoodCache = good
				opts.Downward.BadCache = bad
				out = append(out, Variant{
					Label:   fmt.Sprintf("la=%d/%s/%s/%s", la, mode, good, bad),
					Options: opts,
				})
			}
		}
	}
	return out
}

// PrerefineVariants returns the game with and without each pre-refinement
// filter at lookahead la. The first variant runs without a filter.
func PrerefineVariants(la int) []Variant {
	exact := Options(la)
	exact.Prerefine = prerefine.Off
	out := []Variant{{Label: fmt.Sprintf("la=%d/exact", la), Options: exact}}
	for _, mode := range []prerefine.Mode{prerefine.Linear, prerefine.Branching} {
		for depth := 1; depth <= 2; depth++ {
			opts := Options(la)
			opts.Prerefine = mode
			opts.PrerefineDepth = depth
			out = append(out, Variant{
				Label:   fmt.Sprintf("la=%d/%s/%d", la, mode, depth),
				Options: opts,
			})
		}
	}
	return out
}

// LookaheadVariants returns one variant per lookahead 1..maxLa, labelled
// "la=N".
func LookaheadVariants(maxLa int) []Variant {
	out := make([]Variant, 0, maxLa)
	for la := 1; la <= maxLa; la++ {
		out = append(out, Variant{Label: fmt.Sprintf("la=%d", la), Options: Options(la)})
	}
	return out
}
