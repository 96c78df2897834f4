package core

import (
	"errors"
	"fmt"

	"github.com/comalice/blendx/internal/primitives"
)

// ErrDuplicateKey is returned when a state key is already registered on a
// layer.
var ErrDuplicateKey = errors.New("state key already registered")

// Layer mixes a list of states and tracks which one is current. Like State
// it is a handle into the graph.
type Layer struct {
	g *Graph
	h Handle
}

func (l Layer) node(op string) *node { return l.g.mustNode(l.h, KindLayer, op) }

func (l Layer) IsValid() bool {
	if l.g == nil {
		return false
	}
	n, ok := l.g.nodes.get(l.h)
	return ok && n.kind == KindLayer
}

func (l Layer) Handle() Handle { return l.h }
func (l Layer) Graph() *Graph  { return l.g }

// Index is the port of the layer on the root mixer.
func (l Layer) Index() int     { return l.node("Layer.Index").port }
func (l Layer) Name() string   { return l.node("Layer.Name").layer.name }
func (l Layer) String() string { return fmt.Sprintf("Layer(%d %s)", l.Index(), l.Name()) }

func (l Layer) Weight() float64       { return l.node("Layer.Weight").weight }
func (l Layer) TargetWeight() float64 { return l.node("Layer.TargetWeight").target }
func (l Layer) FadeSpeed() float64    { return l.node("Layer.FadeSpeed").fadeSpeed }
func (l Layer) IsFading() bool        { return l.node("Layer.IsFading").fadeSpeed != 0 }

// SetWeight panics with a *ProgrammerError if w is negative or not finite.
func (l Layer) SetWeight(w float64) { l.g.setWeight(l.node("Layer.SetWeight"), w) }

func (l Layer) StartFade(target, duration float64) {
	l.g.startFade(l.node("Layer.StartFade"), target, duration)
}

func (l Layer) Speed() float64 { return l.node("Layer.Speed").speed }

// SetSpeed panics with a *ProgrammerError if speed is not finite.
func (l Layer) SetSpeed(speed float64) { l.g.setSpeed(l.node("Layer.SetSpeed"), speed) }

// EffectiveSpeed equals Speed: layers hang off the root.
func (l Layer) EffectiveSpeed() float64 {
	return l.g.effectiveSpeed(l.node("Layer.EffectiveSpeed"))
}

// CommandCount increases every time the current state is set, even to the
// same state.
func (l Layer) CommandCount() uint64 { return l.node("Layer.CommandCount").layer.commandCount }

// CurrentState returns the last state passed to Play or CrossFade. The
// result is invalid if there is none.
func (l Layer) CurrentState() State {
	ld := l.node("Layer.CurrentState").layer
	return State{g: l.g, h: ld.current}
}

func (l Layer) StateCount() int { return len(l.node("Layer.StateCount").layer.states) }

// State returns the state on port i.
func (l Layer) State(i int) State {
	ld := l.node("Layer.State").layer
	if i < 0 || i >= len(ld.states) {
		panic(primitives.Misuse("Layer.State", primitives.ErrInvalidArgument, "index %d out of range [0,%d)", i, len(ld.states)))
	}
	return State{g: l.g, h: ld.states[i]}
}

func (l Layer) States() []State {
	ld := l.node("Layer.States").layer
	out := make([]State, len(ld.states))
	for i, h := range ld.states {
		out[i] = State{g: l.g, h: h}
	}
	return out
}

// GetState looks a state up by key.
func (l Layer) GetState(key any) (State, bool) {
	h, ok := l.node("Layer.GetState").layer.keys[key]
	if !ok {
		return State{}, false
	}
	return State{g: l.g, h: h}, true
}

// CreateState adds a state for motion keyed by the motion itself.
func (l Layer) CreateState(motion primitives.Motion) (State, error) {
	return l.CreateStateWithKey(motion, motion)
}

// CreateStateWithKey adds a state for motion under key. Keys must be
// comparable.
func (l Layer) CreateStateWithKey(key any, motion primitives.Motion) (State, error) {
	n := l.node("Layer.CreateState")
	if motion == nil {
		return State{}, primitives.Misuse("Layer.CreateState", primitives.ErrInvalidArgument, "nil motion")
	}
	if _, ok := n.layer.keys[key]; ok {
		return State{}, fmt.Errorf("layer %q: key %s: %w", n.layer.name, keyString(key), ErrDuplicateKey)
	}
	return State{g: l.g, h: l.g.createState(n, key, motion)}, nil
}

// GetOrCreateState returns the state registered under key or creates it.
func (l Layer) GetOrCreateState(key any, motion primitives.Motion) (State, error) {
	if s, ok := l.GetState(key); ok {
		return s, nil
	}
	return l.CreateStateWithKey(key, motion)
}

// Play makes s the current state at full weight and stops every other state
// on the layer. The layer weight snaps to 1 if it was idle.
func (l Layer) Play(s State) State {
	ln := l.node("Layer.Play")
	sn := l.own(s, "Layer.Play")
	if ln.isIdle() {
		l.g.setWeight(ln, 1)
	}
	l.g.setCurrent(ln, sn)
	l.g.playState(sn)
	for _, h := range ln.layer.states {
		if h == sn.handle {
			continue
		}
		if o, ok := l.g.nodes.get(h); ok {
			l.g.stopState(o)
		}
	}
	return s
}

// Stop zeroes the layer weight and stops every state.
func (l Layer) Stop() { l.g.stopNode(l.node("Layer.Stop")) }

// IsAnyStatePlaying reports whether some state on the layer is playing.
func (l Layer) IsAnyStatePlaying() bool {
	for _, h := range l.node("Layer.IsAnyStatePlaying").layer.states {
		if n, ok := l.g.nodes.get(h); ok && n.state.isPlaying {
			return true
		}
	}
	return false
}

// own resolves s and checks that it lives on this layer.
func (l Layer) own(s State, op string) *node {
	if s.g != l.g {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "state belongs to another graph"))
	}
	sn := l.g.mustNode(s.h, KindState, op)
	if sn.parent != l.h {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "%v belongs to another layer", s))
	}
	return sn
}

func (g *Graph) setCurrent(ln, sn *node) {
	ln.layer.current = sn.handle
	ln.layer.commandCount++
}

func (g *Graph) createState(ln *node, key any, motion primitives.Motion) Handle {
	length := motion.Length()
	checkLength("Layer.CreateState", length)
	n := newNode(KindState, motion.CreateTrack(g.host))
	n.state.key = key
	n.state.motion = motion
	n.state.length = length
	n.state.looping = motion.IsLooping()
	h := g.nodes.alloc(n)

	ld := ln.layer
	n.parent = ln.handle
	n.port = len(ld.states)
	ld.states = append(ld.states, h)
	ld.keys[key] = h

	n.track.Pause()
	if g.keepChildrenConnected {
		g.connect(n, ln.track)
		ln.track.SetInputWeight(n.port, 0)
	}
	g.logger.Debug("state created", "layer", ld.name, "key", keyString(key), "port", n.port)
	return h
}

// detachState removes n from its layer. The last state takes over its port.
func (g *Graph) detachState(n *node) {
	ln, ok := g.nodes.get(n.parent)
	if !ok {
		return
	}
	ld := ln.layer
	g.disconnect(n, ln.track)
	port := n.port
	last := len(ld.states) - 1
	if port != last {
		m, _ := g.nodes.get(ld.states[last])
		connected := m.connected
		g.disconnect(m, ln.track)
		m.port = port
		ld.states[port] = m.handle
		if connected {
			g.connect(m, ln.track)
			ln.track.SetInputWeight(port, m.weight)
		}
	}
	ld.states[last] = Handle{}
	ld.states = ld.states[:last]
	if ld.keys[n.state.key] == n.handle {
		delete(ld.keys, n.state.key)
	}
	if ld.current == n.handle {
		ld.current = Handle{}
	}
	n.port = -1
	n.parent = Handle{}
}
