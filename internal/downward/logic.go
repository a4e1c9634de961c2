package downward

import "github.com/nvandessel/treesim/internal/history"

// CodeKind selects the structural code that keys global history entries.
type CodeKind int

const (
	// CodeHeadless identifies a subtree by its symbol and the (state, code)
	// pairs of its children, independent of its own root state.
	CodeHeadless CodeKind = iota
	// CodeSetBased interns full node descriptors, root state included, so
	// the code alone names the subtree.
	CodeSetBased
)

// Logic is the verdict strategy shared by the boolean and both 3-valued
// variants. The variants differ only in TieBreak, Absorbing and Code.
type Logic struct {
	Name string

	// ThreeValued enables early exit on StrongFail and the Verdict query.
	ThreeValued bool

	// TieBreak combines the verdict accumulated so far at one transition
	// with the verdict of the next child.
	TieBreak func(acc, child history.Verdict) history.Verdict

	// Absorbing reports that no further child can change acc, so the
	// remaining children are skipped.
	Absorbing func(acc history.Verdict) bool

	// Code is the structural code used for global cache keys.
	Code CodeKind
}

// worstChild: any strong child makes the transition strong.
func worstChild(acc, child history.Verdict) history.Verdict {
	return max(acc, child)
}

// weakDominates: a transition with a weak child stays weak, since
// extending that child may still rescue it.
func weakDominates(acc, child history.Verdict) history.Verdict {
	switch {
	case acc == history.Success:
		return child
	case child == history.Success:
		return acc
	case acc == history.WeakFail || child == history.WeakFail:
		return history.WeakFail
	default:
		return history.StrongFail
	}
}

var (
	booleanLogic = Logic{
		Name:      "boolean",
		TieBreak:  worstChild,
		Absorbing: history.Verdict.Failed,
		Code:      CodeHeadless,
	}
	v1Logic = Logic{
		Name:        "v1",
		ThreeValued: true,
		TieBreak:    worstChild,
		Absorbing:   func(acc history.Verdict) bool { return acc == history.StrongFail },
		Code:        CodeHeadless,
	}
	v2Logic = Logic{
		Name:        "v2",
		ThreeValued: true,
		TieBreak:    weakDominates,
		Absorbing:   func(acc history.Verdict) bool { return acc == history.WeakFail },
		Code:        CodeSetBased,
	}
)

// LogicFor returns the strategy for mode.
func LogicFor(mode Mode) Logic {
	switch mode {
	case ModeV1:
		return v1Logic
	case ModeV2:
		return v2Logic
	default:
		return booleanLogic
	}
}

// best combines the verdicts of alternative transitions: the duplicator
// picks the least severe.
func best(a, b history.Verdict) history.Verdict {
	return min(a, b)
}
