// Package relation provides the boolean n×n matrix used as a candidate
// simulation preorder.
//
// Get(p, q) == true reads "q simulates p": every behaviour of p can be
// matched by q. Refinement engines only ever clear entries.
package relation

import (
	"fmt"
	"strings"

	"github.com/nvandessel/treesim/internal/automaton"
)

// Matrix is a dense boolean relation over states 0..n-1.
type Matrix struct {
	n    int
	bits []bool
}

// Options controls Init.
type Options struct {
	// Strict makes the diagonal false.
	Strict bool

	// Default is the initial value of off-diagonal entries.
	Default bool

	// Guard applies the initiality guard: row Initial is false except on
	// the diagonal.
	Guard   bool
	Initial automaton.State
}

// DefaultOptions returns the options used by the downward engine: identity
// plus every off-diagonal pair, with the initiality guard.
func DefaultOptions(initial automaton.State) Options {
	return Options{Default: true, Guard: true, Initial: initial}
}

// New returns an all-false n×n matrix.
func New(n int) *Matrix {
	if n < 0 {
		panic(fmt.Sprintf("relation: negative size %d", n))
	}
	return &Matrix{n: n, bits: make([]bool, n*n)}
}

// Init builds the starting relation for a refinement run.
func Init(n int, opts Options) *Matrix {
	m := New(n)
	if opts.Guard {
		m.check(int(opts.Initial), 0)
	}
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			v := opts.Default
			if p == q {
				v = !opts.Strict
			} else if opts.Guard && automaton.State(p) == opts.Initial {
				v = false
			}
			m.bits[p*n+q] = v
		}
	}
	return m
}

// Identity returns the identity relation.
func Identity(n int) *Matrix {
	m := New(n)
	for p := 0; p < n; p++ {
		m.bits[p*n+p] = true
	}
	return m
}

// Size returns n.
func (m *Matrix) Size() int { return m.n }

// Get reports whether (p, q) is in the relation.
func (m *Matrix) Get(p, q automaton.State) bool {
	m.check(int(p), int(q))
	return m.bits[int(p)*m.n+int(q)]
}

// Set writes (p, q). Refinement code uses Clear; Set exists for building
// relations such as compositions.
func (m *Matrix) Set(p, q automaton.State, v bool) {
	m.check(int(p), int(q))
	m.bits[int(p)*m.n+int(q)] = v
}

// Clear removes (p, q) and reports whether it was present.
func (m *Matrix) Clear(p, q automaton.State) bool {
	m.check(int(p), int(q))
	i := int(p)*m.n + int(q)
	was := m.bits[i]
	m.bits[i] = false
	return was
}

// Clone returns an independent copy.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{n: m.n, bits: append([]bool(nil), m.bits...)}
}

// Count returns the number of pairs in the relation.
func (m *Matrix) Count() int {
	c := 0
	for _, b := range m.bits {
		if b {
			c++
		}
	}
	return c
}

// Equal reports whether m and o contain the same pairs.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.n != o.n {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every pair of m is in o.
func (m *Matrix) SubsetOf(o *Matrix) bool {
	if m.n != o.n {
		panic(fmt.Sprintf("relation: size mismatch %d vs %d", m.n, o.n))
	}
	for i := range m.bits {
		if m.bits[i] && !o.bits[i] {
			return false
		}
	}
	return true
}

// Pairs returns every (p, q) in the relation in row-major order.
func (m *Matrix) Pairs() [][2]automaton.State {
	var out [][2]automaton.State
	for p := 0; p < m.n; p++ {
		for q := 0; q < m.n; q++ {
			if m.bits[p*m.n+q] {
				out = append(out, [2]automaton.State{automaton.State(p), automaton.State(q)})
			}
		}
	}
	return out
}

// Row returns the states q with (p, q) in the relation.
func (m *Matrix) Row(p automaton.State) []automaton.State {
	m.check(int(p), 0)
	var out []automaton.State
	for q := 0; q < m.n; q++ {
		if m.bits[int(p)*m.n+q] {
			out = append(out, automaton.State(q))
		}
	}
	return out
}

// Column returns the states p with (p, q) in the relation.
func (m *Matrix) Column(q automaton.State) []automaton.State {
	m.check(0, int(q))
	var out []automaton.State
	for p := 0; p < m.n; p++ {
		if m.bits[p*m.n+int(q)] {
			out = append(out, automaton.State(p))
		}
	}
	return out
}

// String renders the matrix as rows of 0/1.
func (m *Matrix) String() string {
	var b strings.Builder
	for p := 0; p < m.n; p++ {
		for q := 0; q < m.n; q++ {
			if m.bits[p*m.n+q] {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Matrix) check(p, q int) {
	if p < 0 || p >= m.n || q < 0 || q >= m.n {
		panic(fmt.Sprintf("relation: index (%d,%d) out of range for %dx%d matrix", p, q, m.n, m.n))
	}
}
