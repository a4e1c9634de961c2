// Package upward implements the upward simulation game, the structural
// dual of the downward game.
//
// An attack on (p, q) climbs from p through up to Lookahead argument
// occurrences: at each level Spoiler picks a transition in which the
// current state occurs and moves to its parent. Duplicator answers the
// whole climb from q with occurrences of the same symbol at the same
// position whose siblings dominate Spoiler's siblings under the downward
// parameter relation, and must end in a state related to Spoiler's.
package upward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/logging"
	"github.com/nvandessel/treesim/internal/prerefine"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/timeout"
)

// Stage names the upward stage in timeout errors and logs.
const Stage = "upward"

// Finality selects where the acceptance constraint applies: a final state
// may only be simulated by a final state.
type Finality int

const (
	// Weak checks finality at the top of the climb only.
	Weak Finality = iota
	// Strict checks finality at every level of the climb.
	Strict
)

func (f Finality) String() string {
	switch f {
	case Weak:
		return "weak"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("finality(%d)", int(f))
	}
}

// ParseFinality maps a configuration string to a Finality. The empty
// string is Weak.
func ParseFinality(s string) (Finality, error) {
	switch strings.ToLower(s) {
	case "", "weak":
		return Weak, nil
	case "strict":
		return Strict, nil
	default:
		return Weak, fmt.Errorf("invalid finality: %s (valid: weak, strict)", s)
	}
}

// Config holds the tunable parameters of the upward engine.
type Config struct {
	// Lookahead is the maximum climb length. Must be at least 1.
	Lookahead int

	// Finality selects weak or strict acceptance checks.
	Finality Finality

	// Prerefine runs the occurrence filter before the game.
	Prerefine bool
}

// DefaultConfig returns the default upward configuration.
func DefaultConfig() Config {
	return Config{
		Lookahead: constants.DefaultUpwardLookahead,
		Finality:  Weak,
		Prerefine: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Lookahead < 1 || c.Lookahead > constants.MaxLookahead {
		return fmt.Errorf("upward lookahead must be between 1 and %d, got %d", constants.MaxLookahead, c.Lookahead)
	}
	if c.Finality != Weak && c.Finality != Strict {
		return fmt.Errorf("invalid finality %d", int(c.Finality))
	}
	return nil
}

// InitOptions returns the starting relation options for the upward game:
// every pair, no initiality guard.
func InitOptions() relation.Options {
	return relation.Options{Default: true}
}

// Engine refines upward relations over a fixed automaton and downward
// parameter relation.
type Engine struct {
	m      automaton.Model
	param  *relation.Matrix
	index  *automaton.Index
	config Config
	logger *slog.Logger
	trace  *logging.TraceLogger
}

// NewEngine creates an upward engine. param is the downward relation that
// sibling positions must respect; it is only read.
func NewEngine(m automaton.Model, param *relation.Matrix, config Config) *Engine {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("upward: %v", err))
	}
	if param.Size() != m.NumStates() {
		panic(fmt.Sprintf("upward: parameter relation is %dx%d but automaton has %d states",
			param.Size(), param.Size(), m.NumStates()))
	}
	return &Engine{m: m, param: param, index: automaton.NewIndex(m), config: config}
}

// SetLogger sets the structured logger and the refinement trace.
func (e *Engine) SetLogger(logger *slog.Logger, trace *logging.TraceLogger) {
	e.logger = logger
	e.trace = trace
}

// Refine removes from w every pair Spoiler refutes by climbing, until the
// fixpoint. On timeout w must be discarded.
func (e *Engine) Refine(ctx context.Context, w *relation.Matrix) (st stats.Stats, err error) {
	if w.Size() != e.m.NumStates() {
		panic(fmt.Sprintf("upward: relation is %dx%d but automaton has %d states", w.Size(), w.Size(), e.m.NumStates()))
	}
	start := time.Now()
	defer func() { st.Elapsed = time.Since(start) }()
	defer timeout.Recover(&err, Stage, e.m)

	if e.config.Prerefine {
		st.Prerefined = int64(prerefine.Upward(e.m, e.index, w))
		if st.Prerefined > 0 {
			e.trace.Log(logging.EventPrerefined, map[string]any{"stage": Stage, "removed": st.Prerefined})
		}
	}

	c := &climb{e: e, w: w, guard: timeout.NewGuard(ctx), st: &st}
	n := w.Size()
	total := n * n
	stale, idx := 0, 0
	for stale < total {
		p, q := automaton.State(idx/n), automaton.State(idx%n)
		st.Visits++

		if p != q && w.Get(p, q) && c.attackPair(p, q) {
			w.Clear(p, q)
			st.Refinements++
			stale = 0
			e.removed(p, q)
		} else {
			stale++
		}

		idx++
		if idx == total {
			idx = 0
			st.Passes++
		}
	}

	if e.logger != nil {
		e.logger.Debug("upward refinement finished",
			"lookahead", e.config.Lookahead,
			"finality", e.config.Finality.String(),
			"prerefined", st.Prerefined,
			"refinements", st.Refinements,
			"passes", st.Passes)
	}
	return st, nil
}

// Attack reports whether Spoiler refutes (p, q) against the current w.
func (e *Engine) Attack(ctx context.Context, w *relation.Matrix, p, q automaton.State) (won bool, err error) {
	defer timeout.Recover(&err, Stage, e.m)
	if p == q {
		return false, nil
	}
	var st stats.Stats
	c := &climb{e: e, w: w, guard: timeout.NewGuard(ctx), st: &st}
	return c.attackPair(p, q), nil
}

func (e *Engine) removed(p, q automaton.State) {
	logging.Trace(e.logger, "pair removed", "stage", Stage, "p", p, "q", q)
	e.trace.PairRemoved(Stage, int(p), int(q), e.config.Lookahead)
}
