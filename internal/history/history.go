// Package history memoizes sub-game verdicts of the attack/defense search.
//
// A single Cache type serves every strategy. The Scope decides what the
// discriminator part of a Key means and which lifecycle events drop the
// entries:
//
//	Scope       Discriminator                   Dropped on
//	Local       tree position (arena handle)    tree change, end of attack
//	SemiGlobal  node id, unique per pass        end of pass
//	Global      headless structural code        relation change
//	GlobalV2    structural code, erased eagerly relation change
//
// Entries never outlive the relation they were computed against, so no
// scope changes the fixpoint of a refinement, only the work done to reach it.
package history

import (
	"fmt"
	"strings"

	"github.com/nvandessel/treesim/internal/automaton"
)

// Verdict is the outcome of a defence. The boolean engine uses Success and
// StrongFail only; the 3-valued engine orders them
// Success < WeakFail < StrongFail.
type Verdict uint8

const (
	Success Verdict = iota
	WeakFail
	StrongFail
)

// Failed reports whether v is a failure of either strength.
func (v Verdict) Failed() bool { return v != Success }

func (v Verdict) String() string {
	switch v {
	case Success:
		return "success"
	case WeakFail:
		return "weak_fail"
	case StrongFail:
		return "strong_fail"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(v))
	}
}

// Scope selects key shape and lifetime.
type Scope int

const (
	None Scope = iota
	Local
	SemiGlobal
	Global
	GlobalV2
)

var scopeNames = map[Scope]string{
	None:       "none",
	Local:      "local",
	SemiGlobal: "semi-global",
	Global:     "global",
	GlobalV2:   "global-v2",
}

func (s Scope) String() string {
	if n, ok := scopeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Scopes lists every scope, None first.
func Scopes() []Scope {
	return []Scope{None, Local, SemiGlobal, Global, GlobalV2}
}

// ParseScope maps a configuration string to a Scope. The empty string is
// None.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return None, nil
	}
	for sc, n := range scopeNames {
		if strings.EqualFold(s, n) {
			return sc, nil
		}
	}
	return None, fmt.Errorf("invalid cache scope: %s (valid: none, local, semi-global, global, global-v2)", s)
}

// Structural reports whether the scope keys entries by structural code.
func (s Scope) Structural() bool {
	return s == Global || s == GlobalV2
}

// Key identifies a sub-game: can the attack subtree rooted at a step of
// state Ante be answered from Dest? Disc is scope dependent.
type Key struct {
	Dest automaton.State
	Ante automaton.State
	Disc int64
}

type event uint8

const (
	treeChanged event = 1 << iota
	attackEnded
	passEnded
	relationChanged
)

var dropOn = map[Scope]event{
	None:       0,
	Local:      treeChanged | attackEnded,
	SemiGlobal: passEnded,
	Global:     relationChanged,
	GlobalV2:   relationChanged,
}

// Cache stores verdicts for one kind of outcome (good or bad attacks).
type Cache struct {
	scope   Scope
	entries map[Key]Verdict

	lookups int64
	hits    int64
	inserts int64
}

// New creates a cache for the given scope. A None cache never stores.
func New(scope Scope) *Cache {
	if _, ok := dropOn[scope]; !ok {
		panic(fmt.Sprintf("history: unknown scope %d", int(scope)))
	}
	return &Cache{scope: scope, entries: make(map[Key]Verdict)}
}

// Scope returns the cache's scope.
func (c *Cache) Scope() Scope { return c.scope }

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool { return c.scope != None }

// Lookup returns the verdict stored for k.
func (c *Cache) Lookup(k Key) (Verdict, bool) {
	if c.scope == None {
		return Success, false
	}
	c.lookups++
	v, ok := c.entries[k]
	if ok {
		c.hits++
	}
	return v, ok
}

// Store records v for k.
func (c *Cache) Store(k Key, v Verdict) {
	if c.scope == None {
		return
	}
	c.inserts++
	c.entries[k] = v
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return len(c.entries) }

// TreeChanged signals that the attack tree was extended or retracted.
func (c *Cache) TreeChanged() { c.on(treeChanged) }

// EndAttack signals the end of an outermost attack.
func (c *Cache) EndAttack() { c.on(attackEnded) }

// EndPass signals the end of a sweep over all pairs.
func (c *Cache) EndPass() { c.on(passEnded) }

// RelationChanged signals that an entry of the relation was cleared.
func (c *Cache) RelationChanged() { c.on(relationChanged) }

// Reset drops every entry regardless of scope.
func (c *Cache) Reset() { clear(c.entries) }

// Counters returns lookups, hits and inserts since creation.
func (c *Cache) Counters() (lookups, hits, inserts int64) {
	return c.lookups, c.hits, c.inserts
}

func (c *Cache) on(e event) {
	if dropOn[c.scope]&e != 0 && len(c.entries) > 0 {
		clear(c.entries)
	}
}
