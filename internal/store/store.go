// Package store defines the RunStore interface for recording pipeline runs
// and the relations they computed.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/stats"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"      // Fixpoint reached
	OutcomeTimeout Outcome = "timeout" // A stage hit its deadline
	OutcomeError   Outcome = "error"   // Any other failure
)

// Run is one recorded pipeline run.
type Run struct {
	ID          string            `json:"id"`
	Stage       constants.Stage   `json:"stage"`
	Lookahead   int               `json:"lookahead"`
	Options     map[string]string `json:"options,omitempty"`
	States      int               `json:"states"`
	Transitions int               `json:"transitions"`
	PairsBefore int               `json:"pairs_before"`
	PairsAfter  int               `json:"pairs_after"`
	Stats       stats.Stats       `json:"stats"`
	Duration    time.Duration     `json:"duration"`
	Outcome     Outcome           `json:"outcome"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`

	// Pairs is the final relation, (p, q) meaning q simulates p. ListRuns
	// leaves it empty; GetRun fills it.
	Pairs [][2]automaton.State `json:"pairs,omitempty"`
}

// Filter restricts ListRuns. Zero fields match everything.
type Filter struct {
	Stage   constants.Stage
	Outcome Outcome
	Limit   int
}

func (f Filter) match(r Run) bool {
	if f.Stage != "" && r.Stage != f.Stage {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	return true
}

// RunStore defines the interface for storing and querying run history.
type RunStore interface {
	// SaveRun stores run, replacing any run with the same ID. An empty ID
	// is assigned a fresh one and a zero CreatedAt is set to now. Returns
	// the run ID.
	SaveRun(ctx context.Context, run Run) (string, error)

	// GetRun returns the run with its pairs. Returns nil if not found.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns matching runs, newest first, without pairs.
	ListRuns(ctx context.Context, filter Filter) ([]Run, error)

	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// prepare fills the ID and timestamp of a run about to be saved.
func prepare(run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return ValidateRun(*run)
}
