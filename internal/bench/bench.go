// Package bench runs the pipeline over seeded random automata under many
// configurations in parallel and checks the properties that must hold
// across configurations.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/combine"
	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/downward"
	"github.com/nvandessel/treesim/internal/history"
	"github.com/nvandessel/treesim/internal/pipeline"
	"github.com/nvandessel/treesim/internal/prerefine"
	"github.com/nvandessel/treesim/internal/relation"
	"github.com/nvandessel/treesim/internal/saturate"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/store"
	"github.com/nvandessel/treesim/internal/timeout"
	"github.com/nvandessel/treesim/internal/upward"
)

// Property names used in violations.
const (
	PropertyAgreement   = "fixpoint-agreement"
	PropertyMonotone    = "lookahead-monotone"
	PropertyIdentity    = "saturation-identity"
	PropertyCombiner    = "combiner-bounds"
	referenceLabel      = "reference"
	combinedLabel       = "combined"
	combinedLookahead   = 1
	defaultMaxLookahead = 3
)

// Config holds the tunable parameters of a bench run.
type Config struct {
	// Seeds is the number of automata generated, starting at FirstSeed.
	Seeds     int
	FirstSeed uint64

	// Shape controls the generated automata.
	Shape automaton.Shape

	// Lookaheads lists the lookaheads every configuration runs at.
	Lookaheads []int

	// Workers bounds concurrent cases. Zero uses GOMAXPROCS.
	Workers int

	// Timeout bounds every stage of every case.
	Timeout time.Duration
}

// DefaultConfig returns the default bench configuration.
func DefaultConfig() Config {
	las := make([]int, defaultMaxLookahead)
	for i := range las {
		las[i] = i + 1
	}
	return Config{
		Seeds:     constants.DefaultBenchSeeds,
		FirstSeed: 1,
		Shape: automaton.Shape{
			States:      constants.DefaultBenchStates,
			Transitions: constants.DefaultBenchTransitions,
			Finals:      1,
		},
		Lookaheads: las,
		Timeout:    constants.DefaultRunTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Seeds < 1 {
		return fmt.Errorf("seeds must be positive, got %d", c.Seeds)
	}
	if c.Shape.States < 1 {
		return fmt.Errorf("states must be positive, got %d", c.Shape.States)
	}
	if len(c.Lookaheads) == 0 {
		return fmt.Errorf("at least one lookahead is required")
	}
	for _, la := range c.Lookaheads {
		if la < 1 || la > constants.MaxLookahead {
			return fmt.Errorf("lookahead must be between 1 and %d, got %d", constants.MaxLookahead, la)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// CaseResult is the outcome of one (seed, lookahead, configuration) run.
type CaseResult struct {
	Seed      uint64        `json:"seed"`
	Lookahead int           `json:"lookahead"`
	Label     string        `json:"label"`
	RunID     string        `json:"run_id,omitempty"`
	Pairs     int           `json:"pairs"`
	Stats     stats.Stats   `json:"stats"`
	Outcome   store.Outcome `json:"outcome"`
	Error     string        `json:"error,omitempty"`

	result *pipeline.Result
}

// Violation is a property that failed on one automaton.
type Violation struct {
	Seed     uint64 `json:"seed"`
	Property string `json:"property"`
	Detail   string `json:"detail"`
}

// Report is the outcome of a bench run.
type Report struct {
	Cases      []CaseResult  `json:"cases"`
	Violations []Violation   `json:"violations"`
	Timeouts   int           `json:"timeouts"`
	Elapsed    time.Duration `json:"elapsed"`
}

// OK reports whether every property held.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Runner executes bench runs.
type Runner struct {
	config Config
	store  store.RunStore
	logger *slog.Logger
}

// NewRunner creates a bench runner. s may be nil.
func NewRunner(config Config, s store.RunStore) *Runner {
	return &Runner{config: config, store: s}
}

// SetLogger sets the structured logger.
func (r *Runner) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// benchCase is one scheduled pipeline run.
type benchCase struct {
	seed      uint64
	lookahead int
	label     string
	opts      pipeline.Options
}

// variants returns the configurations compared at one lookahead. The first
// one is the reference: plain game, no caches, no pre-refinement.
func (r *Runner) variants(la int) []benchCase {
	base := func() pipeline.Options {
		opts := pipeline.DefaultOptions()
		opts.Downward.Lookahead = la
		opts.Downward.Shortcut = false
		opts.Prerefine = prerefine.Off
		opts.Timeout = r.config.Timeout
		return opts
	}

	ref := base()

	global := base()
	global.Downward.Mode = downward.ModeV1
	global.Downward.GoodCache = history.Global
	global.Downward.BadCache = history.GlobalV2
	global.Downward.Order = downward.OrderArityFirst

	local := base()
	local.Downward.Mode = downward.ModeV2
	local.Downward.GoodCache = history.SemiGlobal
	local.Downward.BadCache = history.Local
	local.Downward.Order = downward.OrderInitialFirst

	branching := base()
	branching.Prerefine = prerefine.Branching
	branching.PrerefineDepth = max(1, prerefine.AutoDepth(la))

	shortcut := base()
	shortcut.Downward.Shortcut = true
	shortcut.Prerefine = prerefine.Linear
	shortcut.PrerefineDepth = constants.AutoPrerefineDepth

	return []benchCase{
		{lookahead: la, label: referenceLabel, opts: ref},
		{lookahead: la, label: "global-v1", opts: global},
		{lookahead: la, label: "local-v2", opts: local},
		{lookahead: la, label: "branching", opts: branching},
		{lookahead: la, label: "default", opts: shortcut},
	}
}

func (r *Runner) combined() benchCase {
	opts := pipeline.DefaultOptions()
	opts.Downward.Lookahead = combinedLookahead
	opts.Timeout = r.config.Timeout
	cfg := upward.DefaultConfig()
	opts.Upward = &cfg
	return benchCase{lookahead: combinedLookahead, label: combinedLabel, opts: opts}
}

// Run executes every case and checks the cross-configuration properties.
// Case timeouts are reported, not returned; any other failure cancels the
// remaining cases and is returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bench config: %w", err)
	}
	start := time.Now()

	automata := make(map[uint64]*automaton.Automaton, r.config.Seeds)
	var cases []benchCase
	for i := 0; i < r.config.Seeds; i++ {
		seed := r.config.FirstSeed + uint64(i)
		automata[seed] = automaton.Generate(seed, r.config.Shape)
		for _, la := range r.config.Lookaheads {
			for _, c := range r.variants(la) {
				c.seed = seed
				cases = append(cases, c)
			}
		}
		c := r.combined()
		c.seed = seed
		cases = append(cases, c)
	}

	results := make([]CaseResult, len(cases))
	var mu sync.Mutex
	timeouts := 0

	g, gCtx := errgroup.WithContext(ctx)
	workers := r.config.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for i, c := range cases {
		// Each case gets its own copy of the automaton.
		a := automata[c.seed].Clone()
		g.Go(func() error {
			res, err := pipeline.New(c.opts, r.store).Run(gCtx, a)
			cr := CaseResult{Seed: c.seed, Lookahead: c.lookahead, Label: c.label, Outcome: store.OutcomeOK}
			switch {
			case err == nil:
				cr.RunID = res.RunID
				cr.Pairs = res.Relation.Count()
				cr.Stats = res.Stats
				cr.result = res
			case timeout.IsTimeout(err) && gCtx.Err() == nil:
				cr.Outcome = store.OutcomeTimeout
				cr.Error = err.Error()
				mu.Lock()
				timeouts++
				mu.Unlock()
			default:
				return fmt.Errorf("seed %d la=%d %s: %w", c.seed, c.lookahead, c.label, err)
			}
			results[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Cases: results, Timeouts: timeouts}
	report.Violations = r.check(ctx, automata, results)
	report.Elapsed = time.Since(start)

	if r.logger != nil {
		r.logger.Info("bench finished",
			"seeds", r.config.Seeds,
			"cases", len(results),
			"timeouts", timeouts,
			"violations", len(report.Violations),
			"elapsed", report.Elapsed)
	}
	return report, nil
}

// check evaluates every property over the completed cases.
func (r *Runner) check(ctx context.Context, automata map[uint64]*automaton.Automaton, results []CaseResult) []Violation {
	type key struct {
		seed uint64
		la   int
	}
	byKey := make(map[key][]CaseResult)
	combined := make(map[uint64]*pipeline.Result)
	for _, cr := range results {
		if cr.result == nil {
			continue
		}
		if cr.Label == combinedLabel {
			combined[cr.Seed] = cr.result
			continue
		}
		k := key{cr.Seed, cr.Lookahead}
		byKey[k] = append(byKey[k], cr)
	}

	var out []Violation
	seeds := make([]uint64, 0, len(automata))
	for seed := range automata {
		seeds = append(seeds, seed)
	}
	slices.Sort(seeds)

	for _, seed := range seeds {
		var prev *relation.Matrix
		prevLa := 0
		for _, la := range r.config.Lookaheads {
			group := byKey[key{seed, la}]
			ref := reference(group)
			for _, cr := range group {
				if ref != nil && !cr.result.Relation.Equal(ref) {
					out = append(out, Violation{Seed: seed, Property: PropertyAgreement,
						Detail: fmt.Sprintf("la=%d: %s differs from %s", la, cr.Label, referenceLabel)})
				}
			}
			if ref == nil {
				continue
			}
			if prev != nil && prevLa < la && !prev.SubsetOf(ref) {
				out = append(out, Violation{Seed: seed, Property: PropertyMonotone,
					Detail: fmt.Sprintf("la=%d relation is not contained in la=%d", prevLa, la)})
			}
			prev, prevLa = ref, la
		}

		a := automata[seed]
		_, added, _, err := saturate.Saturate(ctx, a, relation.Identity(a.NumStates()))
		if err == nil && len(added) > 0 {
			out = append(out, Violation{Seed: seed, Property: PropertyIdentity,
				Detail: fmt.Sprintf("identity saturation added %d transitions", len(added))})
		}

		if res := combined[seed]; res != nil {
			composed := combine.Compose(res.Downward, res.Upward)
			if !res.Relation.SubsetOf(composed) || !res.Downward.SubsetOf(res.Relation) {
				out = append(out, Violation{Seed: seed, Property: PropertyCombiner,
					Detail: "combined relation outside [downward, composition]"})
			}
		}
	}
	return out
}

func reference(group []CaseResult) *relation.Matrix {
	for _, cr := range group {
		if cr.Label == referenceLabel {
			return cr.result.Relation
		}
	}
	return nil
}
