package constants

// Stage identifies the computation a run performed.
type Stage string

const (
	// StageDownward is a downward lookahead refinement.
	StageDownward Stage = "downward"

	// StageUpward is an upward lookahead refinement.
	StageUpward Stage = "upward"

	// StageCombined is a downward and upward refinement followed by the combiner.
	StageCombined Stage = "combined"

	// StageSaturate is a downward refinement followed by saturation.
	StageSaturate Stage = "saturate"
)

// Valid returns true if the stage is a recognized value.
func (s Stage) Valid() bool {
	switch s {
	case StageDownward, StageUpward, StageCombined, StageSaturate:
		return true
	}
	return false
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}
