// Package combine merges a downward and an upward simulation into one
// relation.
package combine

import (
	"fmt"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/relation"
)

// Compose returns the relation C with C(p, k) true when some j satisfies
// dw(p, j) and up(k, j).
func Compose(dw, up *relation.Matrix) *relation.Matrix {
	n := checkSizes(dw, up)
	c := relation.New(n)
	for p := 0; p < n; p++ {
		ps := automaton.State(p)
		row := dw.Row(ps)
		for k := 0; k < n; k++ {
			ks := automaton.State(k)
			for _, j := range row {
				if up.Get(ks, j) {
					c.Set(ps, ks, true)
					break
				}
			}
		}
	}
	return c
}

// Combine composes dw and up, then removes every pair (q, r) of the
// composition for which some s with dw(r, s) is not composed-related to q,
// so the result is closed under further downward steps on its right side.
func Combine(dw, up *relation.Matrix) *relation.Matrix {
	composed := Compose(dw, up)
	n := composed.Size()
	combined := composed.Clone()
	for q := 0; q < n; q++ {
		qs := automaton.State(q)
		for r := 0; r < n; r++ {
			rs := automaton.State(r)
			if !combined.Get(qs, rs) {
				continue
			}
			for _, s := range dw.Row(rs) {
				if !composed.Get(qs, s) {
					combined.Clear(qs, rs)
					break
				}
			}
		}
	}
	return combined
}

func checkSizes(dw, up *relation.Matrix) int {
	if dw.Size() != up.Size() {
		panic(fmt.Sprintf("combine: relation sizes differ: %d and %d", dw.Size(), up.Size()))
	}
	return dw.Size()
}
