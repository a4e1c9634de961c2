// Package pipeline runs the full simulation flow over one automaton:
// pre-refinement -> downward game -> optional upward game and combination
// -> optional saturation, recording each run in a RunStore.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/combine"
	"github.com/nvandessel/treesim/internal/config"
	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/downward"
	"github.com/nvandessel/treesim/internal/history"
	"github.com/nvandessel/treesim/internal/logging"
	"github.com/nvandessel/treesim/internal/prerefine"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/saturate"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/store"
	"github.com/nvandessel/treesim/internal/timeout"
	"github.com/nvandessel/treesim/internal/upward"
)

// Options configures a pipeline run.
type Options struct {
	Downward downward.Config

	// Prerefine and PrerefineDepth select the structural filter run before
	// the downward game. A negative depth derives it from the lookahead.
	Prerefine      prerefine.Mode
	PrerefineDepth int

	// Upward enables the upward game and the combination step when non-nil.
	Upward *upward.Config

	// Saturate adds the transitions implied by the final relation.
	Saturate bool

	// Timeout bounds every stage separately. Zero disables the deadline.
	Timeout time.Duration
}

// DefaultOptions returns the options of a plain downward run.
func DefaultOptions() Options {
	return Options{
		Downward:       downward.DefaultConfig(),
		Prerefine:      prerefine.Linear,
		PrerefineDepth: constants.AutoPrerefineDepth,
		Timeout:        constants.DefaultRunTimeout,
	}
}

// FromConfig converts the string-typed configuration into engine options.
func FromConfig(cfg *config.TreesimConfig) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid config: %w", err)
	}

	order, err := downward.ParseOrder(cfg.Downward.Order)
	if err != nil {
		return Options{}, err
	}
	mode, err := downward.ParseMode(cfg.Downward.ThreeValued)
	if err != nil {
		return Options{}, err
	}
	good, err := history.ParseScope(cfg.Downward.GoodCache)
	if err != nil {
		return Options{}, err
	}
	bad, err := history.ParseScope(cfg.Downward.BadCache)
	if err != nil {
		return Options{}, err
	}
	pre, err := prerefine.ParseMode(cfg.Downward.Prerefine)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Downward: downward.Config{
			Lookahead: cfg.Downward.Lookahead,
			Order:     order,
			Mode:      mode,
			GoodCache: good,
			BadCache:  bad,
			Shortcut:  cfg.Downward.Shortcut,
		},
		Prerefine:      pre,
		PrerefineDepth: cfg.Downward.PrerefineDepth,
		Saturate:       cfg.Run.Saturate,
		Timeout:        cfg.Run.Timeout,
	}

	if cfg.Upward.Enabled {
		finality, err := upward.ParseFinality(cfg.Upward.Finality)
		if err != nil {
			return Options{}, err
		}
		opts.Upward = &upward.Config{
			Lookahead: cfg.Upward.Lookahead,
			Finality:  finality,
			Prerefine: cfg.Upward.Prerefine,
		}
	}
	return opts, nil
}

// Stage returns the stage recorded for runs with these options.
func (o Options) Stage() constants.Stage {
	switch {
	case o.Saturate:
		return constants.StageSaturate
	case o.Upward != nil:
		return constants.StageCombined
	default:
		return constants.StageDownward
	}
}

// depth resolves the pre-refinement depth.
func (o Options) depth() int {
	if o.Prerefine == prerefine.Off {
		return 0
	}
	if o.PrerefineDepth < 0 {
		return prerefine.AutoDepth(o.Downward.Lookahead)
	}
	return o.PrerefineDepth
}

// describe flattens the options for the run record.
func (o Options) describe() map[string]string {
	d := map[string]string{
		"order":           o.Downward.Order.String(),
		"three_valued":    o.Downward.Mode.String(),
		"good_cache":      o.Downward.GoodCache.String(),
		"bad_cache":       o.Downward.BadCache.String(),
		"shortcut":        strconv.FormatBool(o.Downward.Shortcut),
		"prerefine":       o.Prerefine.String(),
		"prerefine_depth": strconv.Itoa(o.depth()),
	}
	if o.Upward != nil {
		d["upward_lookahead"] = strconv.Itoa(o.Upward.Lookahead)
		d["finality"] = o.Upward.Finality.String()
	}
	return d
}

// Result holds everything a run computed.
type Result struct {
	RunID string
	Stage constants.Stage

	// Downward is the downward lookahead simulation.
	Downward *relation.Matrix

	// Upward is the upward relation; nil unless the upward game ran.
	Upward *relation.Matrix

	// Relation is the final relation: the combination when the upward game
	// ran, the downward relation otherwise.
	Relation *relation.Matrix

	// Saturated and Added are set when saturation ran.
	Saturated *automaton.Automaton
	Added     []automaton.Transition

	Stats stats.Stats
}

// Pipeline orchestrates the full simulation flow.
type Pipeline struct {
	opts   Options
	store  store.RunStore
	logger *slog.Logger
	trace  *logging.TraceLogger
}

// New creates a pipeline. s may be nil, in which case runs are not recorded.
func New(opts Options, s store.RunStore) *Pipeline {
	if err := opts.Downward.Validate(); err != nil {
		panic(fmt.Sprintf("pipeline: %v", err))
	}
	if opts.Upward != nil {
		if err := opts.Upward.Validate(); err != nil {
			panic(fmt.Sprintf("pipeline: %v", err))
		}
	}
	return &Pipeline{opts: opts, store: s}
}

// SetLogger sets the structured logger and the refinement trace handed to
// every engine.
func (p *Pipeline) SetLogger(logger *slog.Logger, trace *logging.TraceLogger) {
	p.logger = logger
	p.trace = trace
}

// Options returns the pipeline options.
func (p *Pipeline) Options() Options { return p.opts }

// Run computes the configured relations for a. a is not modified. The run
// is recorded in the store whether it succeeds or not; a timeout returns
// a *timeout.Error and no result.
func (p *Pipeline) Run(ctx context.Context, a *automaton.Automaton) (*Result, error) {
	if err := Check(a); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{RunID: store.NewRunID(), Stage: p.opts.Stage()}
	n := a.NumStates()

	w := relation.Init(n, relation.DefaultOptions(a.Initial()))
	before := w.Count()

	tr := p.trace.WithRun(res.RunID)
	runErr := p.run(ctx, a, w, res, tr)
	res.Stats.Elapsed = time.Since(start)

	if err := p.record(ctx, a, res, before, runErr, tr); err != nil {
		if runErr == nil {
			return nil, err
		}
		p.warn("failed to record run", "run_id", res.RunID, "error", err)
	}
	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, a *automaton.Automaton, w *relation.Matrix, res *Result, tr *logging.TraceLogger) error {
	if depth := p.opts.depth(); depth > 0 {
		removed := prerefine.Downward(a, w, p.opts.Prerefine, depth)
		res.Stats.Prerefined += int64(removed)
		tr.Log(logging.EventPrerefined, map[string]any{"stage": downward.Stage, "removed": removed, "depth": depth})
	}

	dw := downward.NewEngine(a, p.opts.Downward)
	dw.SetLogger(p.logger, tr)
	st, err := stage(ctx, p.opts.Timeout, func(ctx context.Context) (stats.Stats, error) {
		return dw.Refine(ctx, w)
	})
	res.Stats.Merge(st)
	if err != nil {
		return err
	}
	res.Downward = w
	res.Relation = w

	if p.opts.Upward != nil {
		up := relation.Init(a.NumStates(), upward.InitOptions())
		ue := upward.NewEngine(a, w, *p.opts.Upward)
		ue.SetLogger(p.logger, tr)
		st, err := stage(ctx, p.opts.Timeout, func(ctx context.Context) (stats.Stats, error) {
			return ue.Refine(ctx, up)
		})
		res.Stats.Merge(st)
		if err != nil {
			return err
		}
		res.Upward = up
		res.Relation = combine.Combine(w, up)
	}

	if p.opts.Saturate {
		var out *automaton.Automaton
		var added []automaton.Transition
		st, err := stage(ctx, p.opts.Timeout, func(ctx context.Context) (st stats.Stats, err error) {
			out, added, st, err = saturate.Saturate(ctx, a, res.Relation)
			return st, err
		})
		res.Stats.Merge(st)
		if err != nil {
			return err
		}
		res.Saturated, res.Added = out, added
		tr.Log(logging.EventSaturated, map[string]any{"stage": saturate.Stage, "added": len(added)})
	}

	if p.logger != nil {
		p.logger.Info("run finished",
			"run_id", res.RunID,
			"stage", res.Stage.String(),
			"lookahead", p.opts.Downward.Lookahead,
			"pairs", res.Relation.Count(),
			"refinements", res.Stats.Refinements,
			"added", res.Stats.Added)
	}
	return nil
}

// stage runs fn under its own deadline.
func stage(ctx context.Context, d time.Duration, fn func(context.Context) (stats.Stats, error)) (stats.Stats, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}

func (p *Pipeline) record(ctx context.Context, a *automaton.Automaton, res *Result, before int, runErr error, tr *logging.TraceLogger) error {
	if p.store == nil {
		return nil
	}

	run := store.Run{
		ID:          res.RunID,
		Stage:       res.Stage,
		Lookahead:   p.opts.Downward.Lookahead,
		Options:     p.opts.describe(),
		States:      a.NumStates(),
		Transitions: a.Len(),
		PairsBefore: before,
		Stats:       res.Stats,
		Duration:    res.Stats.Elapsed,
		Outcome:     store.OutcomeOK,
	}
	switch {
	case runErr == nil:
		run.PairsAfter = res.Relation.Count()
		run.Pairs = res.Relation.Pairs()
	case timeout.IsTimeout(runErr):
		run.Outcome = store.OutcomeTimeout
		run.Error = runErr.Error()
	default:
		run.Outcome = store.OutcomeError
		run.Error = runErr.Error()
	}

	// The caller's context may be the one that expired.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if _, err := p.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	tr.Log(logging.EventRunRecorded, map[string]any{"outcome": string(run.Outcome)})
	return nil
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

// ErrEmpty is returned by Check for an automaton without states.
var ErrEmpty = errors.New("automaton has no states")

// Check rejects automata the engines cannot run on.
func Check(a *automaton.Automaton) error {
	if a == nil || a.NumStates() == 0 {
		return ErrEmpty
	}
	return nil
}
