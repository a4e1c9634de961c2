// Package timeout implements cooperative cancellation for the recursive
// engines.
//
// Engines call Guard.Check at every recursive entry point. Once the context
// is done, Check unwinds the whole computation with a private panic value
// which Recover, deferred at the public entry point, turns into an *Error.
// The relation being refined is left in an unspecified intermediate state
// and must be discarded.
package timeout

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/treesim/internal/automaton"
)

// Error reports that a run was abandoned because its context ended.
type Error struct {
	// Stage names the computation that was interrupted, e.g. "downward".
	Stage string

	// Automaton is the automaton the stage was working on, for the caller
	// to log or retry with a smaller lookahead.
	Automaton automaton.Model

	// Err is the context error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: interrupted, partial result discarded: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is an interrupted run.
func IsTimeout(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

type abort struct{ err error }

// Guard checks a context for cancellation.
type Guard struct {
	ctx  context.Context
	done <-chan struct{}
}

// NewGuard returns a guard bound to ctx.
func NewGuard(ctx context.Context) Guard {
	return Guard{ctx: ctx, done: ctx.Done()}
}

// Check unwinds the caller when the context is done.
func (g Guard) Check() {
	if g.done == nil {
		return
	}
	select {
	case <-g.done:
		panic(abort{err: g.ctx.Err()})
	default:
	}
}

// Recover converts an unwinding Check into an *Error stored in *errp. Any
// other panic is re-raised. It must be deferred directly.
func Recover(errp *error, stage string, m automaton.Model) {
	r := recover()
	if r == nil {
		return
	}
	a, ok := r.(abort)
	if !ok {
		panic(r)
	}
	*errp = &Error{Stage: stage, Automaton: m, Err: a.err}
}
