// Package constants holds the defaults and bounds shared by the engines,
// the configuration layer and the CLI.
package constants

import "time"

// Lookahead constants
const (
	// DefaultLookahead is the attack tree depth used when none is configured.
	DefaultLookahead = 2

	// MaxLookahead bounds the lookahead accepted by configuration.
	MaxLookahead = 8

	// DefaultUpwardLookahead is the climb depth of the upward game.
	DefaultUpwardLookahead = 1
)

// Pre-refinement depth table. AutoDepth maps lookahead 2-3 to depth 1 and
// 4-5 to depth 2; everything else gets no pre-refinement.
const (
	// ShallowPrerefineDepth is used for lookahead 2 and 3.
	ShallowPrerefineDepth = 1

	// DeepPrerefineDepth is used for lookahead 4 and 5.
	DeepPrerefineDepth = 2

	// AutoPrerefineDepth requests the depth heuristic in configuration.
	AutoPrerefineDepth = -1
)

// Run constants
const (
	// DefaultRunTimeout bounds a single refinement or saturation stage.
	DefaultRunTimeout = 30 * time.Second

	// CombinationLogLimit caps the combination count computed for debug logs.
	CombinationLogLimit = 1 << 20
)

// Benchmark generator constants
const (
	// DefaultBenchStates is the number of states of generated automata.
	DefaultBenchStates = 6

	// DefaultBenchTransitions is the number of transitions of generated automata.
	DefaultBenchTransitions = 12

	// DefaultBenchSeeds is the number of automata generated per bench run.
	DefaultBenchSeeds = 8
)
