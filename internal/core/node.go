package core

import (
	"math"

	"github.com/comalice/blendx/internal/primitives"
)

// NodeKind selects the payload of a blend node.
type NodeKind uint8

const (
	KindLayer NodeKind = iota + 1
	KindState
)

func (k NodeKind) String() string {
	switch k {
	case KindLayer:
		return "layer"
	case KindState:
		return "state"
	default:
		return "node"
	}
}

// fadeEpsilon absorbs rounding so a fade whose durations add up exactly
// lands on its target.
const fadeEpsilon = 1e-6

// node is a blend node: a track with a weight, an optional fade towards a
// target weight, and a speed. Exactly one of layer and state is set.
type node struct {
	kind   NodeKind
	handle Handle

	track primitives.Track
	// parent is the owning layer for states and zero for layers, whose
	// parent is the root mixer.
	parent    Handle
	port      int
	connected bool

	weight      float64
	target      float64
	fadeSpeed   float64
	weightDirty bool

	speed       float64
	applyIK     bool
	applyFootIK bool

	layer *layerData
	state *stateData
}

type layerData struct {
	name         string
	states       []Handle
	current      Handle
	commandCount uint64
	keys         map[any]Handle
}

type stateData struct {
	key     any
	motion  primitives.Motion
	length  float64
	looping bool

	isPlaying    bool
	playingDirty bool

	cachedTime  float64
	cachedFrame uint64
	hasCache    bool
	mustSetTime bool

	events *eventDispatcher

	// weightless is the next clone in the chain used by FromStart fades.
	weightless Handle
	cloneOf    Handle
}

func newNode(kind NodeKind, track primitives.Track) *node {
	n := &node{kind: kind, track: track, port: -1, speed: 1}
	switch kind {
	case KindLayer:
		n.layer = &layerData{keys: make(map[any]Handle)}
	case KindState:
		n.state = &stateData{}
	}
	return n
}

func (n *node) isIdle() bool { return n.weight == 0 && n.fadeSpeed == 0 }

func checkWeight(op string, w float64) {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "weight %v must be finite and non-negative", w))
	}
}

func checkFinite(op, what string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "%s %v must be finite", what, v))
	}
}

// setWeight snaps the weight and cancels any fade.
func (g *Graph) setWeight(n *node, w float64) {
	checkWeight("SetWeight", w)
	n.fadeSpeed = 0
	n.target = w
	if n.weight != w {
		n.weight = w
		n.weightDirty = true
	}
	g.requestUpdate(n)
}

// startFade moves the weight towards target over duration seconds. A
// non-positive duration snaps on the next update.
func (g *Graph) startFade(n *node, target, duration float64) {
	checkWeight("StartFade", target)
	if math.IsNaN(duration) {
		panic(primitives.Misuse("StartFade", primitives.ErrInvalidArgument, "duration is NaN"))
	}
	n.target = target
	if target == n.weight {
		n.fadeSpeed = 0
		if target == 0 {
			g.stopNode(n)
		}
		return
	}
	if duration <= 0 {
		n.fadeSpeed = math.Inf(1)
	} else {
		n.fadeSpeed = math.Abs(n.weight-target) / duration
	}
	g.requestUpdate(n)
}

func (g *Graph) requestUpdate(n *node) {
	g.dirty.add(n.handle)
}

// updateNode advances the fade, pushes the weight to the parent port and
// applies pending playback changes. It reports whether the node needs
// another update.
func (g *Graph) updateNode(n *node, dt float64) bool {
	if n.fadeSpeed != 0 {
		g.updateFade(n, dt)
	}
	g.applyWeight(n)
	if n.kind == KindState {
		g.applyPlayback(n)
	}
	return n.fadeSpeed != 0
}

func (g *Graph) updateFade(n *node, dt float64) {
	remaining := math.Abs(n.target - n.weight)
	if !math.IsInf(n.fadeSpeed, 1) {
		delta := n.fadeSpeed * math.Abs(g.parentSpeed(n)) * dt
		if remaining > delta+fadeEpsilon {
			if n.weight < n.target {
				n.weight += delta
			} else {
				n.weight -= delta
			}
			n.weightDirty = true
			return
		}
	}
	n.weight = n.target
	n.fadeSpeed = 0
	n.weightDirty = true
	if n.target == 0 {
		g.stopNode(n)
	}
}

// applyWeight pushes a changed weight to the parent mixer, connecting the
// node first or disconnecting it once it is idle.
func (g *Graph) applyWeight(n *node) {
	if !n.weightDirty {
		return
	}
	n.weightDirty = false
	parent := g.parentTrack(n)
	if parent == nil || n.port < 0 {
		return
	}
	if n.isIdle() && !g.keepConnected(n) {
		parent.SetInputWeight(n.port, 0)
		g.disconnect(n, parent)
		return
	}
	g.connect(n, parent)
	parent.SetInputWeight(n.port, n.weight)
}

func (g *Graph) keepConnected(n *node) bool {
	return n.kind == KindLayer || g.keepChildrenConnected
}

func (g *Graph) connect(n *node, parent primitives.Track) {
	if n.connected {
		return
	}
	parent.ConnectInput(n.port, n.track)
	n.connected = true
}

func (g *Graph) disconnect(n *node, parent primitives.Track) {
	if !n.connected {
		return
	}
	parent.DisconnectInput(n.port)
	n.connected = false
}

func (g *Graph) parentTrack(n *node) primitives.Track {
	if n.kind == KindLayer {
		return g.root
	}
	if p, ok := g.nodes.get(n.parent); ok {
		return p.track
	}
	return nil
}

// parentSpeed is the product of all ancestor speeds, excluding the graph.
func (g *Graph) parentSpeed(n *node) float64 {
	if n.kind == KindLayer {
		return 1
	}
	if p, ok := g.nodes.get(n.parent); ok {
		return p.speed
	}
	return 1
}

func (g *Graph) effectiveSpeed(n *node) float64 {
	return n.speed * g.parentSpeed(n)
}

func (g *Graph) setSpeed(n *node, s float64) {
	checkFinite("SetSpeed", "speed", s)
	n.speed = s
	n.track.SetSpeed(s)
}

func (g *Graph) setIK(n *node, ik, foot bool) {
	n.applyIK = ik
	n.applyFootIK = foot
	if t, ok := n.track.(primitives.IKTrack); ok {
		t.SetApplyIK(ik)
		t.SetApplyFootIK(foot)
	}
}

// stopNode is called when a node settles at zero weight.
func (g *Graph) stopNode(n *node) {
	switch n.kind {
	case KindState:
		g.stopState(n)
	case KindLayer:
		g.setWeight(n, 0)
		// States re-added to the dirty list during the early pass are only
		// visited next tick, after Evaluate. Apply them now.
		early := g.phase == phaseEarly
		for _, h := range n.layer.states {
			if s, ok := g.nodes.get(h); ok {
				g.stopState(s)
				if early {
					g.applyWeight(s)
					g.applyPlayback(s)
				}
			}
		}
	}
}
