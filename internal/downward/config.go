package downward

import (
	"fmt"
	"strings"

	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/history"
)

// Order is the attack-ordering heuristic. It changes which combinations
// are tried first, never the fixpoint.
type Order int

const (
	// OrderNone keeps transitions grouped by ascending symbol.
	OrderNone Order = iota
	// OrderInitialFirst tries transitions into the initial state first.
	OrderInitialFirst
	// OrderArityFirst tries higher-arity symbols first.
	OrderArityFirst
)

var orderNames = map[Order]string{
	OrderNone:         "none",
	OrderInitialFirst: "initial-first",
	OrderArityFirst:   "arity-first",
}

func (o Order) String() string {
	if n, ok := orderNames[o]; ok {
		return n
	}
	return fmt.Sprintf("order(%d)", int(o))
}

// ParseOrder maps a configuration string to an Order.
func ParseOrder(s string) (Order, error) {
	if s == "" {
		return OrderNone, nil
	}
	for o, n := range orderNames {
		if strings.EqualFold(s, n) {
			return o, nil
		}
	}
	return OrderNone, fmt.Errorf("invalid order: %s (valid: none, initial-first, arity-first)", s)
}

// Mode selects boolean or 3-valued verdict logic.
type Mode int

const (
	ModeBoolean Mode = iota
	ModeV1
	ModeV2
)

var modeNames = map[Mode]string{
	ModeBoolean: "off",
	ModeV1:      "v1",
	ModeV2:      "v2",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a configuration string to a Mode. "" and "off" are the
// boolean logic.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeBoolean, nil
	}
	for m, n := range modeNames {
		if strings.EqualFold(s, n) {
			return m, nil
		}
	}
	return ModeBoolean, fmt.Errorf("invalid three_valued mode: %s (valid: off, v1, v2)", s)
}

// Config holds the tunable parameters of the downward engine.
type Config struct {
	// Lookahead is the maximum attack tree depth (la). Must be at least 1.
	Lookahead int

	// Order is the attack-ordering heuristic.
	Order Order

	// Mode selects boolean or 3-valued logic.
	Mode Mode

	// GoodCache and BadCache select the history scope for discovered
	// defences and violations respectively.
	GoodCache history.Scope
	BadCache  history.Scope

	// Shortcut routes Lookahead == 1 to the ordinary simulation fixpoint.
	Shortcut bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Lookahead: constants.DefaultLookahead,
		Order:     OrderNone,
		Mode:      ModeBoolean,
		GoodCache: history.None,
		BadCache:  history.None,
		Shortcut:  true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Lookahead < 1 || c.Lookahead > constants.MaxLookahead {
		return fmt.Errorf("lookahead must be between 1 and %d, got %d", constants.MaxLookahead, c.Lookahead)
	}
	if _, ok := orderNames[c.Order]; !ok {
		return fmt.Errorf("invalid order %d", int(c.Order))
	}
	if _, ok := modeNames[c.Mode]; !ok {
		return fmt.Errorf("invalid mode %d", int(c.Mode))
	}
	return nil
}
