package store

import (
	"fmt"
)

// ValidationError describes a malformed run record.
type ValidationError struct {
	RunID string `json:"run_id"`
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("run %s: %s %s", e.RunID, e.Field, e.Issue)
}

// ValidateRun checks a run record before it is stored.
func ValidateRun(run Run) error {
	invalid := func(field, issue string) error {
		return &ValidationError{RunID: run.ID, Field: field, Issue: issue}
	}

	if run.ID == "" {
		return invalid("id", "is required")
	}
	if !run.Stage.Valid() {
		return invalid("stage", fmt.Sprintf("%q is not a known stage", run.Stage))
	}
	switch run.Outcome {
	case OutcomeOK, OutcomeTimeout, OutcomeError:
	default:
		return invalid("outcome", fmt.Sprintf("%q is not a known outcome", run.Outcome))
	}
	if run.Lookahead < 0 {
		return invalid("lookahead", "is negative")
	}
	if run.States < 0 || run.Transitions < 0 {
		return invalid("size", "is negative")
	}
	if run.Outcome == OutcomeOK && len(run.Pairs) > 0 && run.PairsAfter != len(run.Pairs) {
		return invalid("pairs", fmt.Sprintf("holds %d pairs but pairs_after is %d", len(run.Pairs), run.PairsAfter))
	}
	for _, pq := range run.Pairs {
		if int(pq[0]) < 0 || int(pq[0]) >= run.States || int(pq[1]) < 0 || int(pq[1]) >= run.States {
			return invalid("pairs", fmt.Sprintf("(%d,%d) is outside %d states", pq[0], pq[1], run.States))
		}
	}
	return nil
}
