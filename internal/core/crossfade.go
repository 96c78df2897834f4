package core

import (
	"fmt"
	"math"

	"github.com/comalice/blendx/internal/primitives"
)

// FadeMode selects how CrossFade interprets its duration.
type FadeMode uint8

const (
	// FixedSpeed scales the duration by how far the state's weight is from
	// 1, so every fade changes weight at the same rate.
	FixedSpeed FadeMode = iota
	// FixedDuration uses the duration as given.
	FixedDuration
	// FromStart fades in a weightless clone from time 0 when the state is
	// already contributing, so the old instance can play out.
	FromStart
	// NormalizedSpeed is FixedSpeed with the duration in motion lengths.
	NormalizedSpeed
	// NormalizedDuration is FixedDuration in motion lengths.
	NormalizedDuration
	// NormalizedFromStart is FromStart in motion lengths.
	NormalizedFromStart
)

var fadeModeNames = [...]string{"fixed-speed", "fixed-duration", "from-start", "normalized-speed", "normalized-duration", "normalized-from-start"}

func (m FadeMode) String() string {
	if int(m) < len(fadeModeNames) {
		return fadeModeNames[m]
	}
	return fmt.Sprintf("FadeMode(%d)", m)
}

// ParseFadeMode accepts the names printed by String.
func ParseFadeMode(s string) (FadeMode, error) {
	for i, name := range fadeModeNames {
		if name == s {
			return FadeMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fade mode %q: %w", s, primitives.ErrInvalidArgument)
}

// DefaultMaxWeightlessDepth bounds the clone chain walked by FromStart fades.
const DefaultMaxWeightlessDepth = 5

// CrossFade fades s in over duration and every other state on the layer
// out. It returns the state actually faded in, which is a weightless clone
// for the FromStart modes. A non-positive duration is a Play.
//
// An in-flight fade of s towards 1 that would finish within duration is
// left alone. A layer fading out is faded back in over duration.
func (l Layer) CrossFade(s State, duration float64, mode FadeMode) (State, error) {
	const op = "Layer.CrossFade"
	ln := l.node(op)
	l.own(s, op)
	if math.IsNaN(duration) {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "duration is NaN"))
	}
	if duration <= 0 {
		return l.Play(s), nil
	}

	s, duration, err := l.prepareFade(s, duration, mode)
	if err != nil {
		return State{}, err
	}
	if duration <= 0 {
		return l.Play(s), nil
	}
	if ln.isIdle() {
		l.g.startFade(ln, 1, duration)
		return l.Play(s), nil
	}
	if ln.fadeSpeed != 0 && ln.target != 1 {
		// A layer fading out would stop the new state when it settles.
		l.g.startFade(ln, 1, duration)
	}

	sn := l.own(s, op)
	l.g.setCurrent(ln, sn)
	l.g.setPlaying(sn, true)
	if !fadeFinishesWithin(sn, 1, duration) {
		l.g.startFade(sn, 1, duration)
	}
	for _, h := range ln.layer.states {
		if h == sn.handle {
			continue
		}
		if o, ok := l.g.nodes.get(h); ok {
			l.g.startFade(o, 0, duration)
		}
	}
	l.g.logger.Debug("cross fade", "layer", ln.layer.name, "state", keyString(sn.state.key),
		"duration", duration, "mode", mode.String())
	return s, nil
}

// fadeFinishesWithin reports whether n is already fading to target and
// will get there in at most duration seconds.
func fadeFinishesWithin(n *node, target, duration float64) bool {
	if n.fadeSpeed == 0 || n.target != target {
		return false
	}
	return math.Abs(target-n.weight)/n.fadeSpeed <= duration
}

func (l Layer) prepareFade(s State, duration float64, mode FadeMode) (State, float64, error) {
	n := l.own(s, "Layer.CrossFade")
	switch mode {
	case FixedSpeed:
		duration *= math.Abs(1 - n.weight)
	case FixedDuration:
	case FromStart:
		return l.fromStart(s, duration)
	case NormalizedSpeed:
		duration *= math.Abs(1-n.weight) * n.state.length
	case NormalizedDuration:
		duration *= n.state.length
	case NormalizedFromStart:
		return l.fromStart(s, duration*n.state.length)
	default:
		panic(primitives.Misuse("Layer.CrossFade", primitives.ErrInvalidArgument, "unknown fade mode %d", mode))
	}
	return s, duration, nil
}

func (l Layer) fromStart(s State, duration float64) (State, float64, error) {
	if s.Weight() != 0 {
		clone, err := l.GetOrCreateWeightlessState(s)
		if err != nil {
			return State{}, 0, err
		}
		s = clone
	}
	s.SetTime(0)
	return s, duration, nil
}

// cloneKey registers weightless clones on the layer. label is the key of
// the state at the head of the chain and depth the clone's position in it.
type cloneKey struct {
	of    Handle
	label string
	depth int
}

func (k cloneKey) String() string { return fmt.Sprintf("%s~clone%d", k.label, k.depth) }

// GetOrCreateWeightlessState walks the chain of clones of s and returns the
// first idle one, creating a new clone at the end of the chain if needed.
// It fails with ErrCapacityExceeded once the chain is longer than the
// graph's maximum depth, which usually means a FromStart fade is being
// requested every frame. Clones live until destroyed explicitly.
func (l Layer) GetOrCreateWeightlessState(s State) (State, error) {
	const op = "Layer.GetOrCreateWeightlessState"
	ln := l.node(op)
	cur := l.own(s, op)
	for depth := 0; ; depth++ {
		if cur.isIdle() {
			return State{g: l.g, h: cur.handle}, nil
		}
		if depth >= l.g.maxWeightlessDepth {
			return State{}, fmt.Errorf("%s: state %s has %d weightless clones: %w",
				op, keyString(s.Key()), depth, primitives.ErrCapacityExceeded)
		}
		next, ok := l.g.nodes.get(cur.state.weightless)
		if !ok {
			return State{g: l.g, h: l.g.cloneState(ln, cur)}, nil
		}
		cur = next
	}
}

func (g *Graph) cloneState(ln, src *node) Handle {
	key := cloneKey{of: src.handle, label: keyString(src.state.key), depth: 1}
	if k, ok := src.state.key.(cloneKey); ok {
		key.label, key.depth = k.label, k.depth+1
	}
	// Clones outlive the state they were made from, so a new state with the
	// same key can meet an older chain.
	for g.findByKeyString(ln, key.String()) != nil {
		key.depth++
	}
	h := g.createState(ln, key, src.state.motion)
	n, _ := g.nodes.get(h)
	n.state.cloneOf = src.handle
	src.state.weightless = h
	g.setSpeed(n, src.speed)
	g.setIK(n, src.applyIK, src.applyFootIK)
	if src.state.events != nil {
		g.bindEvents(n, src.state.events.seq())
	}
	return h
}
