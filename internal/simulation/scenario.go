package simulation

import (
	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/pipeline"
	"github.com/nvandessel/treesim/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name      string
	Automaton *automaton.Automaton
	Variants  []Variant

	// BeforeVariant, when non-nil, is called before each variant executes.
	// Use this to inspect or seed the store between runs.
	BeforeVariant func(index int, s store.RunStore)
}

// Variant is one pipeline configuration of a scenario.
type Variant struct {
	// Label identifies the variant in assertion messages. Must be unique
	// within a scenario.
	Label   string
	Options pipeline.Options
}

// VariantResult captures the outcome of a single variant.
type VariantResult struct {
	Index  int
	Label  string
	Result *pipeline.Result

	// Run is the record read back from the store.
	Run *store.Run
}

// SimulationResult captures all variants and the final store state.
type SimulationResult struct {
	Name     string
	Variants []VariantResult
	Store    *store.SQLiteRunStore
}

// Variant returns the result with the given label, or nil.
func (r SimulationResult) Variant(label string) *VariantResult {
	for i := range r.Variants {
		if r.Variants[i].Label == label {
			return &r.Variants[i]
		}
	}
	return nil
}
