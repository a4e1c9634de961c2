package timeout

import (
	"context"
	"errors"
	"testing"

	"github.com/nvandessel/treesim/internal/automaton"
)

func run(ctx context.Context, depth int) (err error) {
	a := automaton.New(1, nil, 0)
	defer Recover(&err, "test", a)
	g := NewGuard(ctx)
	var rec func(int)
	rec = func(d int) {
		g.Check()
		if d > 0 {
			rec(d - 1)
		}
	}
	rec(depth)
	return nil
}

func TestGuard_LiveContext(t *testing.T) {
	if err := run(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGuard_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(%v, context.Canceled) = false", err)
	}
	var te *Error
	if errors.As(err, &te) {
		if te.Stage != "test" {
			t.Errorf("Stage = %q, want test", te.Stage)
		}
		if te.Automaton == nil {
			t.Error("Automaton not carried by the error")
		}
	}
}

func TestRecover_RepanicsForeignValues(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	func() (err error) {
		defer Recover(&err, "test", nil)
		panic("boom")
	}()
}
