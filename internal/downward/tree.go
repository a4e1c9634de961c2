package downward

import (
	"encoding/binary"

	"github.com/nvandessel/treesim/internal/automaton"
)

// handle indexes a step in the arena.
type handle int32

const noHandle handle = -1

// step is one node of the attack tree. Children of an extended step are
// contiguous in the arena starting at first.
type step struct {
	state  automaton.State
	trans  int32 // index into game.cand[state]; -1 while a leaf
	first  handle
	parent handle

	// id changes whenever the subtree below the step changes.
	id int64

	// code is the lazily computed structural code. It is valid when codeGen
	// matches the tree generation (batch invalidation) and codeOK is set
	// (eager erasure); each mechanism is only maintained when a cache scope
	// needs it.
	code    int64
	codeGen uint64
	codeOK  bool
}

type savedID struct {
	h  handle
	id int64
}

// mark records what retract must undo.
type mark struct {
	size  int
	saved int
}

// tree is the arena holding the current attack tree. Steps are only ever
// appended at the end and removed in stack order.
type tree struct {
	steps  []step
	idLog  []savedID
	nextID int64
	gen    uint64

	batch bool // maintain codeGen
	eager bool // erase codeOK along changed paths
}

func (t *tree) reset(root automaton.State) {
	t.steps = t.steps[:0]
	t.idLog = t.idLog[:0]
	t.gen++
	t.steps = append(t.steps, step{state: root, trans: -1, first: noHandle, parent: noHandle, id: t.newID()})
}

func (t *tree) newID() int64 {
	t.nextID++
	return t.nextID
}

// extend attaches the chosen transition to every frontier step whose choice
// is not the placeholder and returns the new frontier.
func (t *tree) extend(g *game, frontier []handle, combo []int) ([]handle, mark) {
	mk := mark{size: len(t.steps), saved: len(t.idLog)}
	var next []handle

	for i, h := range frontier {
		c := combo[i]
		if c < 0 {
			continue
		}
		tr := g.cand[t.steps[h].state][c]
		t.steps[h].trans = int32(c)
		t.steps[h].first = handle(len(t.steps))
		for _, child := range tr.Children {
			t.steps = append(t.steps, step{
				state:  child,
				trans:  -1,
				first:  noHandle,
				parent: h,
				id:     t.newID(),
			})
			next = append(next, handle(len(t.steps)-1))
		}
		t.touch(h)
	}
	t.gen++
	return next, mk
}

// retract undoes the matching extend.
func (t *tree) retract(frontier []handle, mk mark) {
	for _, h := range frontier {
		if t.steps[h].trans >= 0 {
			t.steps[h].trans = -1
			t.steps[h].first = noHandle
			if t.eager {
				t.erase(h)
			}
		}
	}
	t.steps = t.steps[:mk.size]
	for i := len(t.idLog) - 1; i >= mk.saved; i-- {
		s := t.idLog[i]
		t.steps[s.h].id = s.id
	}
	t.idLog = t.idLog[:mk.saved]
	t.gen++
}

// touch gives h and its ancestors fresh ids, logging the old ones.
func (t *tree) touch(h handle) {
	for ; h != noHandle; h = t.steps[h].parent {
		t.idLog = append(t.idLog, savedID{h: h, id: t.steps[h].id})
		t.steps[h].id = t.newID()
		if t.eager {
			t.steps[h].codeOK = false
		}
	}
}

// erase clears the codes of h and its ancestors.
func (t *tree) erase(h handle) {
	for ; h != noHandle; h = t.steps[h].parent {
		t.steps[h].codeOK = false
	}
}

func (t *tree) codeValid(h handle) bool {
	s := &t.steps[h]
	if t.batch && s.codeGen != t.gen {
		return false
	}
	if t.eager && !s.codeOK {
		return false
	}
	return t.batch || t.eager
}

// codeTable interns structural descriptors.
type codeTable struct {
	codes map[string]int64
}

func newCodeTable() *codeTable {
	return &codeTable{codes: make(map[string]int64)}
}

func (c *codeTable) intern(desc []byte) int64 {
	if id, ok := c.codes[string(desc)]; ok {
		return id
	}
	id := int64(len(c.codes) + 1)
	c.codes[string(desc)] = id
	return id
}

// code returns the structural code of the subtree at h.
func (g *game) code(h handle) int64 {
	t := &g.tree
	if t.codeValid(h) {
		return t.steps[h].code
	}

	s := t.steps[h]
	var desc []byte
	if g.logic.Code == CodeSetBased {
		desc = binary.AppendVarint(desc, int64(s.state))
	}
	if s.trans < 0 {
		desc = append(desc, 'L')
	} else {
		tr := g.cand[s.state][s.trans]
		desc = append(desc, 'T')
		desc = binary.AppendVarint(desc, int64(tr.Symbol))
		for i, child := range tr.Children {
			if g.logic.Code == CodeHeadless {
				desc = binary.AppendVarint(desc, int64(child))
			}
			desc = binary.AppendVarint(desc, g.code(s.first+handle(i)))
		}
	}

	c := g.codes.intern(desc)
	t.steps[h].code = c
	t.steps[h].codeGen = t.gen
	t.steps[h].codeOK = true
	return c
}
