// Package automaton provides the tree automaton model consumed by the
// simulation engines.
//
// States and symbols are dense integer indices. A transition
// (q, f, (q1..qn)) reads top-down: state q accepts f(t1..tn) when each qi
// accepts ti. Leaf rules are transitions over symbols of rank zero. Every
// automaton has exactly one initial (root) state and a set of final states
// used by the upward game.
package automaton

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// State is a dense state index in 0..NumStates()-1.
type State int

// Symbol is an index into the rank table.
type Symbol int

// Transition is a single rule of the automaton.
type Transition struct {
	Parent   State   `json:"parent"`
	Symbol   Symbol  `json:"symbol"`
	Children []State `json:"children"`
}

// Arity returns the number of children of the transition.
func (t Transition) Arity() int {
	return len(t.Children)
}

// Key returns a compact identity for the transition, suitable as a map key.
func (t Transition) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(t.Parent)))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(int(t.Symbol)))
	for _, c := range t.Children {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(c)))
	}
	return b.String()
}

// String renders the transition bottom-up, e.g. "f1(1,1)->0".
func (t Transition) String() string {
	children := make([]string, len(t.Children))
	for i, c := range t.Children {
		children[i] = strconv.Itoa(int(c))
	}
	if len(children) == 0 {
		return fmt.Sprintf("f%d->%d", t.Symbol, t.Parent)
	}
	return fmt.Sprintf("f%d(%s)->%d", t.Symbol, strings.Join(children, ","), t.Parent)
}

// Model is the read-only query surface the engines depend on.
type Model interface {
	// NumStates returns the number of states; states are 0..NumStates()-1.
	NumStates() int

	// NumSymbols returns the size of the rank table.
	NumSymbols() int

	// Rank returns the arity of symbol s.
	Rank(s Symbol) int

	// Initial returns the unique initial state.
	Initial() State

	// IsFinal reports whether q is a final state.
	IsFinal(q State) bool

	// Symbols returns, in ascending order, the symbols labelling at least
	// one transition of q.
	Symbols(q State) []Symbol

	// Transitions returns the transitions of q labelled by s.
	Transitions(q State, s Symbol) []Transition
}

// Automaton is the in-memory Model implementation. It is mutable only
// through Add, which the saturator uses on a clone.
type Automaton struct {
	ranks   []int
	initial State
	final   []bool
	trans   [][][]Transition // indexed [state][symbol]
	symbols [][]Symbol
	keys    map[string]struct{}
}

// New creates an automaton with numStates states, the given rank table and
// initial state.
func New(numStates int, ranks []int, initial State) *Automaton {
	if numStates <= 0 {
		panic(fmt.Sprintf("automaton: need at least one state, got %d", numStates))
	}
	if initial < 0 || int(initial) >= numStates {
		panic(fmt.Sprintf("automaton: initial state %d out of range [0,%d)", initial, numStates))
	}
	for s, r := range ranks {
		if r < 0 {
			panic(fmt.Sprintf("automaton: symbol %d has negative rank %d", s, r))
		}
	}

	a := &Automaton{
		ranks:   append([]int(nil), ranks...),
		initial: initial,
		final:   make([]bool, numStates),
		trans:   make([][][]Transition, numStates),
		symbols: make([][]Symbol, numStates),
		keys:    make(map[string]struct{}),
	}
	for q := range a.trans {
		a.trans[q] = make([][]Transition, len(ranks))
	}
	return a
}

// NumStates implements Model.
func (a *Automaton) NumStates() int { return len(a.trans) }

// NumSymbols implements Model.
func (a *Automaton) NumSymbols() int { return len(a.ranks) }

// Rank implements Model.
func (a *Automaton) Rank(s Symbol) int {
	a.checkSymbol(s)
	return a.ranks[s]
}

// Initial implements Model.
func (a *Automaton) Initial() State { return a.initial }

// IsFinal implements Model.
func (a *Automaton) IsFinal(q State) bool {
	a.checkState(q)
	return a.final[q]
}

// Symbols implements Model.
func (a *Automaton) Symbols(q State) []Symbol {
	a.checkState(q)
	return a.symbols[q]
}

// Transitions implements Model.
func (a *Automaton) Transitions(q State, s Symbol) []Transition {
	a.checkState(q)
	a.checkSymbol(s)
	return a.trans[q][s]
}

// SetFinal marks q as a final state.
func (a *Automaton) SetFinal(q State) {
	a.checkState(q)
	a.final[q] = true
}

// Contains reports whether t is already a transition of a.
func (a *Automaton) Contains(t Transition) bool {
	_, ok := a.keys[t.Key()]
	return ok
}

// Add inserts t and reports whether it was new. A transition whose arity
// does not match the rank of its symbol, or that mentions an unknown state,
// is a programmer error and panics.
func (a *Automaton) Add(t Transition) bool {
	a.checkState(t.Parent)
	a.checkSymbol(t.Symbol)
	if len(t.Children) != a.ranks[t.Symbol] {
		panic(fmt.Sprintf("automaton: malformed transition %s: symbol %d has rank %d",
			t, t.Symbol, a.ranks[t.Symbol]))
	}
	for _, c := range t.Children {
		a.checkState(c)
	}

	key := t.Key()
	if _, ok := a.keys[key]; ok {
		return false
	}
	a.keys[key] = struct{}{}

	t.Children = append([]State(nil), t.Children...)
	q, s := t.Parent, t.Symbol
	if len(a.trans[q][s]) == 0 {
		i := sort.Search(len(a.symbols[q]), func(i int) bool { return a.symbols[q][i] >= s })
		a.symbols[q] = append(a.symbols[q], 0)
		copy(a.symbols[q][i+1:], a.symbols[q][i:])
		a.symbols[q][i] = s
	}
	a.trans[q][s] = append(a.trans[q][s], t)
	return true
}

// Len returns the number of transitions.
func (a *Automaton) Len() int { return len(a.keys) }

// All returns every transition ordered by parent, then symbol, then
// insertion order.
func (a *Automaton) All() []Transition {
	out := make([]Transition, 0, len(a.keys))
	for q := range a.trans {
		for _, s := range a.symbols[q] {
			out = append(out, a.trans[q][s]...)
		}
	}
	return out
}

// Clone returns a deep copy of a.
func (a *Automaton) Clone() *Automaton {
	c := New(len(a.trans), a.ranks, a.initial)
	copy(c.final, a.final)
	for _, t := range a.All() {
		c.Add(t)
	}
	return c
}

func (a *Automaton) checkState(q State) {
	if q < 0 || int(q) >= len(a.trans) {
		panic(fmt.Sprintf("automaton: state %d out of range [0,%d)", q, len(a.trans)))
	}
}

func (a *Automaton) checkSymbol(s Symbol) {
	if s < 0 || int(s) >= len(a.ranks) {
		panic(fmt.Sprintf("automaton: symbol %d out of range [0,%d)", s, len(a.ranks)))
	}
}

// TransitionsOf returns every transition of q across all symbols, grouped
// by ascending symbol.
func TransitionsOf(m Model, q State) []Transition {
	var out []Transition
	for _, s := range m.Symbols(q) {
		out = append(out, m.Transitions(q, s)...)
	}
	return out
}
