package core

import (
	"fmt"

	"github.com/comalice/blendx/internal/primitives"
)

// Handle identifies a node in a Graph's arena. The zero Handle is never
// valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.generation == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.index, h.generation)
}

type slot struct {
	generation uint32
	node       *node
}

// arena is the slab owning every blend node of a graph. Freed slots are
// reused through a free list; their generation is bumped so handles into the
// old node go stale.
type arena struct {
	slots []slot
	free  []uint32
	live  int
}

func (a *arena) alloc(n *node) Handle {
	var idx uint32
	if k := len(a.free); k > 0 {
		idx = a.free[k-1]
		a.free = a.free[:k-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.node = n
	a.live++
	h := Handle{index: idx, generation: s.generation}
	n.handle = h
	return h
}

func (a *arena) get(h Handle) (*node, bool) {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.index]
	if s.generation != h.generation || s.node == nil {
		return nil, false
	}
	return s.node, true
}

func (a *arena) release(h Handle) {
	if _, ok := a.get(h); !ok {
		return
	}
	s := &a.slots[h.index]
	s.node = nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.free = append(a.free, h.index)
	a.live--
}

func (a *arena) len() int { return a.live }

// mustNode resolves h or panics with ErrStaleHandle.
func (g *Graph) mustNode(h Handle, kind NodeKind, op string) *node {
	if g == nil {
		panic(primitives.Misuse(op, primitives.ErrStaleHandle, "zero value %s", kind))
	}
	n, ok := g.nodes.get(h)
	if !ok {
		panic(primitives.Misuse(op, primitives.ErrStaleHandle, "%s %v was destroyed", kind, h))
	}
	if n.kind != kind {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "%v is a %s, not a %s", h, n.kind, kind))
	}
	return n
}
