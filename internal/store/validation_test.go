package store

import (
	"errors"
	"testing"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/constants"
)

func TestValidateRun(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Run)
		wantField string
	}{
		{"valid", func(*Run) {}, ""},
		{"missing id", func(r *Run) { r.ID = "" }, "id"},
		{"unknown stage", func(r *Run) { r.Stage = "sideways" }, "stage"},
		{"unknown outcome", func(r *Run) { r.Outcome = "maybe" }, "outcome"},
		{"negative lookahead", func(r *Run) { r.Lookahead = -1 }, "lookahead"},
		{"negative size", func(r *Run) { r.Transitions = -1 }, "size"},
		{"pair count mismatch", func(r *Run) { r.PairsAfter = 5 }, "pairs"},
		{"pair out of range", func(r *Run) { r.Pairs = append(r.Pairs[:3], [2]automaton.State{2, 3}) }, "pairs"},
		{"timeout without pairs", func(r *Run) {
			r.Outcome = OutcomeTimeout
			r.Pairs = nil
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := sampleRun("run-1", constants.StageDownward, 0)
			tt.modify(&run)
			err := ValidateRun(run)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateRun() error = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ValidateRun() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}
