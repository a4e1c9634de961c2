package downward

import (
	"slices"
	"sort"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/combinator"
	"github.com/nvandessel/treesim/internal/history"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/timeout"
)

// game holds the mutable state of one refinement run: the relation under
// refinement, the attack tree arena, both history caches and the counters.
type game struct {
	m       automaton.Model
	w       *relation.Matrix
	la      int
	initial automaton.State
	logic   Logic
	guard   timeout.Guard
	st      *stats.Stats

	// cand[q] lists the transitions of q in attack order; choices[q] is
	// 0..len(cand[q])-1, the option list handed to the enumerator.
	cand    [][]automaton.Transition
	choices [][]int

	good  *history.Cache
	bad   *history.Cache
	tree  tree
	codes *codeTable
}

func newGame(m automaton.Model, w *relation.Matrix, cfg Config, guard timeout.Guard, st *stats.Stats) *game {
	g := &game{
		m:       m,
		w:       w,
		la:      cfg.Lookahead,
		initial: m.Initial(),
		logic:   LogicFor(cfg.Mode),
		guard:   guard,
		st:      st,
		good:    history.New(cfg.GoodCache),
		bad:     history.New(cfg.BadCache),
		codes:   newCodeTable(),
	}
	for _, c := range []*history.Cache{g.good, g.bad} {
		switch c.Scope() {
		case history.Global:
			g.tree.batch = true
		case history.GlobalV2:
			g.tree.eager = true
		}
	}

	n := m.NumStates()
	g.cand = make([][]automaton.Transition, n)
	g.choices = make([][]int, n)
	for q := 0; q < n; q++ {
		g.cand[q] = orderTransitions(m, automaton.State(q), cfg.Order)
		g.choices[q] = make([]int, len(g.cand[q]))
		for i := range g.choices[q] {
			g.choices[q][i] = i
		}
	}
	return g
}

// orderTransitions gathers the transitions of q grouped by symbol and
// applies the ordering heuristic.
func orderTransitions(m automaton.Model, q automaton.State, order Order) []automaton.Transition {
	ts := automaton.TransitionsOf(m, q)
	switch order {
	case OrderInitialFirst:
		root := m.Initial()
		sort.SliceStable(ts, func(i, j int) bool {
			return slices.Contains(ts[i].Children, root) && !slices.Contains(ts[j].Children, root)
		})
	case OrderArityFirst:
		sort.SliceStable(ts, func(i, j int) bool {
			return ts[i].Arity() > ts[j].Arity()
		})
	}
	return ts
}

// attackPair runs one outermost attack of p against q and returns the
// verdict of Spoiler's best tree: Success when Duplicator answers every
// attack.
func (g *game) attackPair(p, q automaton.State) history.Verdict {
	g.tree.reset(p)
	v := g.attack([]handle{0}, q, 0)
	g.good.EndAttack()
	g.bad.EndAttack()
	return v
}

// attack explores every extension of the current tree by one level. A
// failing verdict means Spoiler has an attack Duplicator cannot answer.
func (g *game) attack(frontier []handle, q automaton.State, depth int) history.Verdict {
	g.guard.Check()
	g.st.Attacks++

	if depth == g.la {
		return g.defend(0, q, true)
	}

	var prefix history.Verdict
	if depth > 0 {
		// A defended prefix stays defended under any extension: leaves
		// only gain structural answers.
		prefix = g.defend(0, q, true)
		if prefix == history.Success {
			return history.Success
		}
		if g.logic.ThreeValued && prefix == history.StrongFail {
			g.st.EarlyExits++
			return history.StrongFail
		}
	}

	options := make([][]int, len(frontier))
	open := false
	for i, h := range frontier {
		options[i] = g.choices[g.tree.steps[h].state]
		if len(options[i]) > 0 {
			open = true
		}
	}
	if !open {
		// The tree is complete. At the root there is nothing to attack
		// with; deeper, the failed prefix is Spoiler's win.
		if depth == 0 {
			return history.Success
		}
		return prefix
	}

	result := history.Success
	combinator.Any(options, -1, func(combo []int) bool {
		g.st.Combinations++
		next, mk := g.tree.extend(g, frontier, combo)
		g.treeChanged()
		v := g.attack(next, q, depth+1)
		g.tree.retract(frontier, mk)
		g.treeChanged()
		if v.Failed() {
			result = v
			return true
		}
		return false
	})
	return result
}

// defend decides whether q answers the subtree of the attack rooted at h.
// first is set only for the root of the tree, where the relation itself is
// the pair under test and cannot be used as an answer.
func (g *game) defend(h handle, q automaton.State, first bool) history.Verdict {
	g.guard.Check()
	g.st.Defends++

	s := g.tree.steps[h]
	if s.state == q {
		return history.Success
	}
	if s.state == g.initial && q != g.initial {
		return history.StrongFail
	}
	if !first && g.w.Get(s.state, q) {
		return history.Success
	}
	if s.trans < 0 {
		if g.w.Get(s.state, q) {
			return history.Success
		}
		if len(g.cand[s.state]) == 0 {
			// Nothing can extend a dead leaf.
			return history.StrongFail
		}
		return history.WeakFail
	}

	if !first {
		if _, ok := g.good.Lookup(g.key(g.good, h, q)); ok {
			g.st.CacheHits++
			return history.Success
		}
		if v, ok := g.bad.Lookup(g.key(g.bad, h, q)); ok {
			g.st.CacheHits++
			return v
		}
	}

	tr := g.cand[s.state][s.trans]
	result := history.StrongFail
	for _, answer := range g.m.Transitions(q, tr.Symbol) {
		acc := history.Success
		for i, child := range answer.Children {
			acc = g.logic.TieBreak(acc, g.defend(s.first+handle(i), child, false))
			if g.logic.Absorbing(acc) {
				break
			}
		}
		result = best(result, acc)
		if result == history.Success {
			break
		}
	}

	if !first {
		if result == history.Success {
			g.store(g.good, h, q, result)
		} else {
			g.store(g.bad, h, q, result)
		}
	}
	return result
}

// key builds the history key for the step at h under the cache's scope.
func (g *game) key(c *history.Cache, h handle, q automaton.State) history.Key {
	k := history.Key{Dest: q, Ante: g.tree.steps[h].state}
	switch c.Scope() {
	case history.Local:
		k.Disc = int64(h)
	case history.SemiGlobal:
		k.Disc = g.tree.steps[h].id
	case history.Global, history.GlobalV2:
		k.Disc = g.code(h)
	}
	return k
}

func (g *game) store(c *history.Cache, h handle, q automaton.State, v history.Verdict) {
	if !c.Enabled() {
		return
	}
	c.Store(g.key(c, h, q), v)
	g.st.CacheInserts++
}

func (g *game) treeChanged() {
	g.good.TreeChanged()
	g.bad.TreeChanged()
}

// relationChanged drops history entries computed against the old relation.
func (g *game) relationChanged() {
	g.good.RelationChanged()
	g.bad.RelationChanged()
}

func (g *game) endPass() {
	g.good.EndPass()
	g.bad.EndPass()
}

// lookups folds the caches' lookup counters into the run statistics.
func (g *game) lookups() int64 {
	lg, _, _ := g.good.Counters()
	lb, _, _ := g.bad.Counters()
	return lg + lb
}
