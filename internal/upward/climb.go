package upward

import (
	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/timeout"
)

// climb holds one attack: the root pair and Spoiler's chain of occurrences
// from the root upwards.
type climb struct {
	e     *Engine
	w     *relation.Matrix
	guard timeout.Guard
	st    *stats.Stats

	root automaton.State
	path []automaton.Occurrence
}

func (c *climb) attackPair(p, q automaton.State) bool {
	c.root = p
	c.path = c.path[:0]
	return c.attack(p, q)
}

// attack extends Spoiler's climb from s by one occurrence and reports
// whether some extension wins.
func (c *climb) attack(s, q automaton.State) bool {
	c.guard.Check()
	c.st.Attacks++

	depth := len(c.path)
	if depth == c.e.config.Lookahead {
		return !c.defend(0, c.root, q)
	}
	if depth > 0 && c.defend(0, c.root, q) {
		return false
	}

	occ := c.e.index.Occurrences(s)
	if len(occ) == 0 {
		// s is a root of every tree it appears in. At depth 0 only the
		// finality check can refute the pair; deeper, the prefix already
		// failed.
		if depth == 0 {
			return !c.defend(0, c.root, q)
		}
		return true
	}

	for _, o := range occ {
		c.st.Combinations++
		c.path = append(c.path, o)
		won := c.attack(o.Transition.Parent, q)
		c.path = c.path[:depth]
		if won {
			return true
		}
	}
	return false
}

// defend reports whether q answers Spoiler's climb from level upwards,
// where s is Spoiler's state at that level.
func (c *climb) defend(level int, s, q automaton.State) bool {
	c.guard.Check()
	c.st.Defends++

	if s == q {
		return true
	}
	top := level == len(c.path)
	if level == 0 || top || c.e.config.Finality == Strict {
		if c.e.m.IsFinal(s) && !c.e.m.IsFinal(q) {
			return false
		}
	}
	if level > 0 && c.w.Get(s, q) {
		return true
	}
	if top {
		return level == 0
	}

	o := c.path[level]
	for _, a := range c.e.index.Occurrences(q) {
		if a.Position != o.Position || a.Transition.Symbol != o.Transition.Symbol {
			continue
		}
		if !c.siblings(o, a) {
			continue
		}
		if c.defend(level+1, o.Transition.Parent, a.Transition.Parent) {
			return true
		}
	}
	return false
}

// siblings reports whether every sibling of Spoiler's occurrence is
// dominated by the sibling at the same position in Duplicator's.
func (c *climb) siblings(o, a automaton.Occurrence) bool {
	for j, x := range o.Transition.Children {
		if j == o.Position {
			continue
		}
		y := a.Transition.Children[j]
		if x != y && !c.e.param.Get(x, y) {
			return false
		}
	}
	return true
}
