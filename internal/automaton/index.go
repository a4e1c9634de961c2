package automaton

// Occurrence records that a state appears as argument Position of
// Transition.
type Occurrence struct {
	Transition Transition
	Position   int
}

// Site identifies an argument slot: symbol and child position.
type Site struct {
	Symbol   Symbol
	Position int
}

// Index is the bottom-up view of a Model: for every state, the transitions
// in which it occurs as an argument, and occurrence counts per site.
type Index struct {
	occurrences [][]Occurrence
	counts      []map[Site]int
}

// NewIndex builds the bottom-up index of m.
func NewIndex(m Model) *Index {
	n := m.NumStates()
	ix := &Index{
		occurrences: make([][]Occurrence, n),
		counts:      make([]map[Site]int, n),
	}
	for q := range ix.counts {
		ix.counts[q] = make(map[Site]int)
	}

	for q := 0; q < n; q++ {
		for _, t := range TransitionsOf(m, State(q)) {
			for pos, c := range t.Children {
				ix.occurrences[c] = append(ix.occurrences[c], Occurrence{Transition: t, Position: pos})
				ix.counts[c][Site{Symbol: t.Symbol, Position: pos}]++
			}
		}
	}
	return ix
}

// Occurrences returns every (transition, position) in which q is an argument.
func (ix *Index) Occurrences(q State) []Occurrence {
	return ix.occurrences[q]
}

// Count returns how often q occurs at the given site.
func (ix *Index) Count(q State, site Site) int {
	return ix.counts[q][site]
}

// Sites returns the sites at which q occurs at least once.
func (ix *Index) Sites(q State) []Site {
	out := make([]Site, 0, len(ix.counts[q]))
	for s := range ix.counts[q] {
		out = append(out, s)
	}
	return out
}
