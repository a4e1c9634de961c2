package automaton

import (
	"fmt"
	"math/rand/v2"
)

// Shape describes a random automaton.
type Shape struct {
	States      int
	Ranks       []int
	Transitions int
	Finals      int
}

// DefaultRanks is the rank table used when a Shape leaves Ranks empty:
// two constants, one unary and one binary symbol.
var DefaultRanks = []int{0, 0, 1, 2}

// Generate builds a pseudo-random automaton of the given shape. The same
// seed and shape always produce the same automaton. State 0 is initial;
// the first Finals states after it are final.
func Generate(seed uint64, shape Shape) *Automaton {
	if shape.States <= 0 {
		panic(fmt.Sprintf("automaton: shape needs at least one state, got %d", shape.States))
	}
	ranks := shape.Ranks
	if len(ranks) == 0 {
		ranks = DefaultRanks
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	a := New(shape.States, ranks, 0)
	for i := 0; i < shape.Finals && i+1 < shape.States; i++ {
		a.SetFinal(State(i + 1))
	}

	// Bounded so dense shapes cannot loop forever on duplicates.
	for attempts := 0; a.Len() < shape.Transitions && attempts < 20*shape.Transitions+20; attempts++ {
		s := Symbol(rng.IntN(len(ranks)))
		children := make([]State, ranks[s])
		for i := range children {
			// The initial state is the root of accepted trees and only
			// rarely appears as an argument.
			if shape.States == 1 || rng.IntN(8) == 0 {
				children[i] = 0
				continue
			}
			children[i] = State(1 + rng.IntN(shape.States-1))
		}
		a.Add(Transition{Parent: State(rng.IntN(shape.States)), Symbol: s, Children: children})
	}
	return a
}
