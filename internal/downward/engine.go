// Package downward implements the lookahead simulation game over tree
// automata.
//
// For a candidate pair (p, q) Spoiler builds an attack tree of depth at most
// Lookahead from p, choosing one transition for every open frontier state
// per level. Duplicator answers from q, matching symbols top-down and
// falling back to the current relation at the leaves and at any inner node
// already related. Refine removes every pair for which Spoiler wins and
// repeats until a full sweep removes nothing.
package downward

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/history"
	"github.com/nvandessel/treesim/internal/logging"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/timeout"
)

// Stage names the downward stage in timeout errors and logs.
const Stage = "downward"

// Engine refines relations over a fixed automaton.
type Engine struct {
	m      automaton.Model
	config Config
	logger *slog.Logger
	trace  *logging.TraceLogger
}

// NewEngine creates a downward engine. An invalid configuration is a
// programmer error.
func NewEngine(m automaton.Model, config Config) *Engine {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("downward: %v", err))
	}
	return &Engine{m: m, config: config}
}

// SetLogger sets the structured logger and the refinement trace.
func (e *Engine) SetLogger(logger *slog.Logger, trace *logging.TraceLogger) {
	e.logger = logger
	e.trace = trace
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Refine removes from w every pair Spoiler can refute with lookahead
// attacks, until the fixpoint. w is modified in place and only loses
// entries. On timeout w is left partially refined and must be discarded.
func (e *Engine) Refine(ctx context.Context, w *relation.Matrix) (st stats.Stats, err error) {
	e.checkSize(w)
	start := time.Now()
	defer func() { st.Elapsed = time.Since(start) }()
	defer timeout.Recover(&err, Stage, e.m)

	guard := timeout.NewGuard(ctx)
	if e.config.Lookahead == 1 && e.config.Shortcut {
		refineOrdinary(e.m, w, guard, &st, e.removed)
		e.done(&st, "ordinary")
		return st, nil
	}

	g := newGame(e.m, w, e.config, guard, &st)
	n := w.Size()
	total := n * n
	stale, idx := 0, 0
	for stale < total {
		p, q := automaton.State(idx/n), automaton.State(idx%n)
		st.Visits++

		changed := false
		if p != q && w.Get(p, q) && g.attackPair(p, q).Failed() {
			w.Clear(p, q)
			changed = true
		}

		if changed {
			stale = 0
			st.Refinements++
			g.relationChanged()
			e.removed(p, q)
		} else {
			stale++
		}

		idx++
		if idx == total {
			idx = 0
			st.Passes++
			g.endPass()
			if e.logger != nil {
				e.logger.Debug("downward pass completed", "pass", st.Passes, "pairs", w.Count(), "refinements", st.Refinements)
			}
		}
	}

	st.CacheLookups = g.lookups()
	e.done(&st, g.logic.Name)
	return st, nil
}

// Attack reports whether Spoiler refutes (p, q) against the current w,
// without modifying w.
func (e *Engine) Attack(ctx context.Context, w *relation.Matrix, p, q automaton.State) (won bool, err error) {
	v, err := e.pairVerdict(ctx, w, p, q)
	return v.Failed(), err
}

// Verdict returns the 3-valued outcome of the attack on (p, q): Success when
// Duplicator answers every attack, StrongFail when Spoiler's win does not
// depend on the relation at extendable leaves, WeakFail otherwise. Calling
// it on a boolean engine is a programmer error.
func (e *Engine) Verdict(ctx context.Context, w *relation.Matrix, p, q automaton.State) (history.Verdict, error) {
	if !LogicFor(e.config.Mode).ThreeValued {
		panic("downward: Verdict called while 3-valued logic is disabled")
	}
	return e.pairVerdict(ctx, w, p, q)
}

func (e *Engine) pairVerdict(ctx context.Context, w *relation.Matrix, p, q automaton.State) (v history.Verdict, err error) {
	e.checkSize(w)
	defer timeout.Recover(&err, Stage, e.m)
	if p == q {
		return history.Success, nil
	}
	var st stats.Stats
	g := newGame(e.m, w, e.config, timeout.NewGuard(ctx), &st)
	return g.attackPair(p, q), nil
}

func (e *Engine) checkSize(w *relation.Matrix) {
	if w.Size() != e.m.NumStates() {
		panic(fmt.Sprintf("downward: relation is %dx%d but automaton has %d states", w.Size(), w.Size(), e.m.NumStates()))
	}
}

func (e *Engine) removed(p, q automaton.State) {
	logging.Trace(e.logger, "pair removed", "stage", Stage, "p", p, "q", q)
	e.trace.PairRemoved(Stage, int(p), int(q), e.config.Lookahead)
}

func (e *Engine) done(st *stats.Stats, logic string) {
	if e.logger != nil {
		e.logger.Debug("downward refinement finished",
			"lookahead", e.config.Lookahead,
			"logic", logic,
			"order", e.config.Order.String(),
			"visits", st.Visits,
			"refinements", st.Refinements,
			"attacks", st.Attacks,
			"cache_hits", st.CacheHits)
	}
}
