// Package saturate adds to an automaton every transition implied by a
// simulation relation.
//
// With rel(x, y) read as "y simulates x", a transition q -f-> (c1..cn)
// licenses p -f-> (d1..dn) whenever rel(q, p) and rel(di, ci) for every i:
// p already accepts everything q does, and each di accepts only trees ci
// accepts. Languages of all states are unchanged; the added transitions
// give later minimization and inclusion checks more to work with.
package saturate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/combinator"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/timeout"
)

// Stage names the saturation stage in timeout errors and logs.
const Stage = "saturate"

// lookup caches the per-state and per-tuple dominance queries.
type lookup struct {
	rel     *relation.Matrix
	greater map[automaton.State][]automaton.State
	lesser  map[automaton.State][]automaton.State
	tuples  map[string][][]automaton.State
}

func newLookup(rel *relation.Matrix) *lookup {
	return &lookup{
		rel:     rel,
		greater: make(map[automaton.State][]automaton.State),
		lesser:  make(map[automaton.State][]automaton.State),
		tuples:  make(map[string][][]automaton.State),
	}
}

// above returns q and every state simulating q.
func (l *lookup) above(q automaton.State) []automaton.State {
	if s, ok := l.greater[q]; ok {
		return s
	}
	s := withSelf(q, l.rel.Row(q))
	l.greater[q] = s
	return s
}

// below returns c and every state c simulates.
func (l *lookup) below(c automaton.State) []automaton.State {
	if s, ok := l.lesser[c]; ok {
		return s
	}
	s := withSelf(c, l.rel.Column(c))
	l.lesser[c] = s
	return s
}

// options returns, per argument position, the states that may replace the
// child at that position.
func (l *lookup) options(children []automaton.State) [][]automaton.State {
	key := tupleKey(children)
	if o, ok := l.tuples[key]; ok {
		return o
	}
	o := make([][]automaton.State, len(children))
	for i, c := range children {
		o[i] = l.below(c)
	}
	l.tuples[key] = o
	return o
}

func withSelf(q automaton.State, states []automaton.State) []automaton.State {
	for _, s := range states {
		if s == q {
			return states
		}
	}
	return append([]automaton.State{q}, states...)
}

func tupleKey(children []automaton.State) string {
	var b strings.Builder
	for i, c := range children {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(c)))
	}
	return b.String()
}

// Saturate returns a copy of a extended with every transition implied by
// rel, and the transitions that were added. a is not modified. Saturating
// with the identity relation adds nothing. On timeout no automaton is
// returned.
func Saturate(ctx context.Context, a *automaton.Automaton, rel *relation.Matrix) (out *automaton.Automaton, added []automaton.Transition, st stats.Stats, err error) {
	if rel.Size() != a.NumStates() {
		panic(fmt.Sprintf("saturate: relation is %dx%d but automaton has %d states", rel.Size(), rel.Size(), a.NumStates()))
	}
	start := time.Now()
	defer func() {
		st.Elapsed = time.Since(start)
		if err != nil {
			out, added = nil, nil
		}
	}()
	defer timeout.Recover(&err, Stage, a)

	guard := timeout.NewGuard(ctx)
	l := newLookup(rel)
	out = a.Clone()

	for _, t := range a.All() {
		guard.Check()
		st.Visits++
		options := l.options(t.Children)
		for _, p := range l.above(t.Parent) {
			combinator.Any(options, -1, func(combo []automaton.State) bool {
				guard.Check()
				st.Combinations++
				cand := automaton.Transition{Parent: p, Symbol: t.Symbol, Children: combo}
				if out.Add(cand) {
					cand.Children = append([]automaton.State(nil), combo...)
					added = append(added, cand)
				}
				return false
			})
		}
	}
	st.Added = int64(len(added))
	return out, added, st, nil
}
