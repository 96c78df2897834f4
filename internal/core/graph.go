// Package core is the blend graph runtime: layers of weighted states, the
// fade state machine and the per-frame scheduler.
//
// A Graph is single-threaded. Every method must be called from the goroutine
// that ticks it; the realtime package wraps a Graph for concurrent use.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/timeline"
)

// Pluggable components.

// EventPublisher receives every event fired by states that publish their
// events (see State.AddPublishedEvent).
type EventPublisher interface {
	Publish(ctx context.Context, event primitives.FiredEvent) error
	Close() error
}

// Persister stores graph snapshots.
type Persister interface {
	Save(ctx context.Context, snapshot GraphSnapshot) error
	Load(ctx context.Context, graphID string) (GraphSnapshot, error)
}

// Visualizer renders snapshots.
type Visualizer interface {
	ExportDOT(snapshot GraphSnapshot) string
	ExportJSON(snapshot GraphSnapshot) ([]byte, error)
}

// CommandSource feeds commands applied at the start of each early pass.
type CommandSource interface {
	Commands() <-chan Command
}

// Option applies configuration to a Graph via functional options.
type Option func(*Graph)

// ErrNotConfigured is returned when an operation needs a component the
// graph was built without.
var ErrNotConfigured = errors.New("component not configured")

const (
	DefaultMaxLayers          = 64
	DefaultMaxCommandsPerTick = 64
	defaultRunnerPoolSize     = 64
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseEarly
	phaseLate
)

// Graph owns the layers, the node arena and the update lists.
type Graph struct {
	id        string
	host      primitives.TrackHost
	evaluator primitives.Evaluator
	root      primitives.Track

	nodes        arena
	layers       []Handle
	dirty        indexedList[Handle]
	early        indexedList[Updatable]
	late         indexedList[Updatable]
	pendingTimes []Handle
	runners      *primitives.Pool[*timeline.Runner]
	retired      []*timeline.Runner

	frameID   uint64
	deltaTime float64
	phase     phase
	updating  bool
	destroyed bool

	maxLayers             int
	maxWeightlessDepth    int
	maxCommandsPerTick    int
	keepChildrenConnected bool

	logger     *slog.Logger
	onError    func(error)
	invoker    primitives.Invoker
	publisher  EventPublisher
	persister  Persister
	visualizer Visualizer
	commands   CommandSource
}

// NewGraph creates a graph whose tracks are created by host. If host also
// implements primitives.Evaluator, Update evaluates it between the passes.
func NewGraph(host primitives.TrackHost, opts ...Option) *Graph {
	g := &Graph{
		id:                 "graph",
		host:               host,
		dirty:              newIndexedList[Handle](),
		early:              newIndexedList[Updatable](),
		late:               newIndexedList[Updatable](),
		maxLayers:          DefaultMaxLayers,
		maxWeightlessDepth: DefaultMaxWeightlessDepth,
		maxCommandsPerTick: DefaultMaxCommandsPerTick,
		logger:             slog.Default(),
		invoker:            recoverInvoker{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.onError == nil {
		g.onError = g.logError
	}
	g.runners = primitives.NewPool(timeline.NewRunner, defaultRunnerPoolSize)
	if ev, ok := host.(primitives.Evaluator); ok {
		g.evaluator = ev
	}
	g.root = host.NewMixer()
	g.root.Play()
	return g
}

func (g *Graph) ID() string { return g.id }

// FrameID is the id of the last completed late pass.
func (g *Graph) FrameID() uint64 { return g.frameID }

// DeltaTime is the elapsed time passed to the current or last update.
func (g *Graph) DeltaTime() float64 { return g.deltaTime }

func (g *Graph) Logger() *slog.Logger { return g.logger }

// NodeCount returns the number of live layers and states.
func (g *Graph) NodeCount() int { return g.nodes.len() }

// Speed is the speed of the root mixer. It is not part of EffectiveSpeed.
func (g *Graph) Speed() float64 { return g.root.Speed() }

// SetSpeed panics with a *ProgrammerError if s is not finite.
func (g *Graph) SetSpeed(s float64) {
	checkFinite("Graph.SetSpeed", "speed", s)
	g.root.SetSpeed(s)
}

func (g *Graph) IsPlaying() bool { return g.root.IsPlaying() }
func (g *Graph) Play()           { g.root.Play() }
func (g *Graph) Pause()          { g.root.Pause() }

// AddLayer appends a layer connected to the root mixer.
func (g *Graph) AddLayer(name string) (Layer, error) {
	if len(g.layers) >= g.maxLayers {
		return Layer{}, fmt.Errorf("graph %q: adding layer %q beyond %d layers: %w",
			g.id, name, g.maxLayers, primitives.ErrCapacityExceeded)
	}
	n := newNode(KindLayer, g.host.NewMixer())
	n.layer.name = name
	h := g.nodes.alloc(n)
	n.port = len(g.layers)
	g.layers = append(g.layers, h)
	n.track.Play()
	g.connect(n, g.root)
	g.root.SetInputWeight(n.port, 0)
	g.logger.Debug("layer added", "graph", g.id, "layer", name, "index", n.port)
	return Layer{g: g, h: h}, nil
}

func (g *Graph) LayerCount() int { return len(g.layers) }

// Layer returns the layer at index i.
func (g *Graph) Layer(i int) Layer {
	if i < 0 || i >= len(g.layers) {
		panic(primitives.Misuse("Graph.Layer", primitives.ErrInvalidArgument, "layer %d out of range [0,%d)", i, len(g.layers)))
	}
	return Layer{g: g, h: g.layers[i]}
}

func (g *Graph) Layers() []Layer {
	out := make([]Layer, len(g.layers))
	for i, h := range g.layers {
		out[i] = Layer{g: g, h: h}
	}
	return out
}

// LayerByName returns the first layer called name.
func (g *Graph) LayerByName(name string) (Layer, bool) {
	for _, h := range g.layers {
		if n, ok := g.nodes.get(h); ok && n.layer.name == name {
			return Layer{g: g, h: h}, true
		}
	}
	return Layer{}, false
}

// FindState looks key up on every layer, lowest index first.
func (g *Graph) FindState(key any) (State, bool) {
	for _, h := range g.layers {
		n, ok := g.nodes.get(h)
		if !ok {
			continue
		}
		if sh, ok := n.layer.keys[key]; ok {
			return State{g: g, h: sh}, true
		}
	}
	return State{}, false
}

// RequireEarlyUpdate registers u to run at the start of every update, before
// the dirty nodes.
func (g *Graph) RequireEarlyUpdate(u Updatable) { g.early.add(u) }

// RequireLateUpdate registers u to run after the frame id advanced.
func (g *Graph) RequireLateUpdate(u Updatable) { g.late.add(u) }

// CancelUpdate removes u from both passes. It is safe to call from inside
// an update.
func (g *Graph) CancelUpdate(u Updatable) {
	g.early.remove(u)
	g.late.remove(u)
}

// CancelNodeUpdate stops updating the node until its weight or playback
// changes again.
func (g *Graph) CancelNodeUpdate(h Handle) { g.dirty.remove(h) }

// IsUpdateRequired reports whether u is registered in either pass.
func (g *Graph) IsUpdateRequired(u Updatable) bool {
	return g.early.contains(u) || g.late.contains(u)
}

// Tick runs Update with the next frame id.
func (g *Graph) Tick(dt float64) error {
	return g.Update(dt, g.frameID+1)
}

// Update runs one frame: the early pass, the host evaluation when the host
// is an Evaluator, and the late pass with frameID. frameID must increase.
func (g *Graph) Update(dt float64, frameID uint64) error {
	if err := g.begin("Graph.Update"); err != nil {
		return err
	}
	defer g.end()
	if err := g.checkFrame("Graph.Update", frameID); err != nil {
		return err
	}
	if err := g.earlyPass(dt); err != nil {
		return err
	}
	if g.evaluator != nil {
		g.evaluator.Evaluate(dt)
	}
	return g.latePass(frameID)
}

// EarlyUpdate runs only the early pass, for hosts that evaluate their own
// render graph and call LateUpdate afterwards.
func (g *Graph) EarlyUpdate(dt float64) error {
	if err := g.begin("Graph.EarlyUpdate"); err != nil {
		return err
	}
	defer g.end()
	return g.earlyPass(dt)
}

// LateUpdate advances the frame id and runs the late pass.
func (g *Graph) LateUpdate(frameID uint64) error {
	if err := g.begin("Graph.LateUpdate"); err != nil {
		return err
	}
	defer g.end()
	if err := g.checkFrame("Graph.LateUpdate", frameID); err != nil {
		return err
	}
	return g.latePass(frameID)
}

func (g *Graph) begin(op string) error {
	if g.destroyed {
		return primitives.Misuse(op, primitives.ErrStaleHandle, "graph %q was destroyed", g.id)
	}
	if g.updating {
		return primitives.Misuse(op, primitives.ErrReentrantUpdate, "called from inside an update of graph %q", g.id)
	}
	g.updating = true
	return nil
}

func (g *Graph) end() {
	g.updating = false
	g.phase = phaseIdle
	g.releaseRetired()
}

func (g *Graph) checkFrame(op string, frameID uint64) error {
	if frameID <= g.frameID {
		return primitives.Misuse(op, primitives.ErrFrameOrder, "frame %d after %d", frameID, g.frameID)
	}
	return nil
}

func (g *Graph) earlyPass(dt float64) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return primitives.Misuse("Graph.Update", primitives.ErrInvalidArgument, "delta time %v", dt)
	}
	g.phase = phaseEarly
	g.deltaTime = dt

	g.drainCommands()
	if err := g.runUpdatables(&g.early, "Graph.EarlyUpdate"); err != nil {
		return err
	}
	err := g.dirty.each("Graph.EarlyUpdate", func(h Handle) bool {
		n, ok := g.nodes.get(h)
		if !ok || !g.updateNode(n, dt) {
			g.dirty.remove(h)
		}
		return true
	})
	if err != nil {
		return err
	}
	g.applyPendingTimes()
	return nil
}

func (g *Graph) latePass(frameID uint64) error {
	g.frameID = frameID
	g.phase = phaseLate
	return g.runUpdatables(&g.late, "Graph.LateUpdate")
}

// runUpdatables isolates failures of individual updatables. Programmer
// errors abort the pass.
func (g *Graph) runUpdatables(list *indexedList[Updatable], op string) error {
	var fatal error
	err := list.each(op, func(u Updatable) bool {
		name := updatableName(u)
		var uerr error
		if err := g.invoker.Invoke(name, func() { uerr = u.Update() }); err != nil {
			uerr = err
		}
		if uerr == nil {
			return true
		}
		if primitives.IsProgrammerError(uerr) {
			fatal = fmt.Errorf("updatable %s: %w", name, uerr)
			return false
		}
		g.report(name, uerr)
		return true
	})
	if err != nil {
		return err
	}
	return fatal
}

func (g *Graph) drainCommands() {
	if g.commands == nil {
		return
	}
	ch := g.commands.Commands()
	for i := 0; i < g.maxCommandsPerTick; i++ {
		select {
		case cmd, ok := <-ch:
			if !ok {
				g.commands = nil
				return
			}
			g.Apply(cmd)
		default:
			return
		}
	}
}

// Apply runs a command immediately, isolating and reporting its failure.
func (g *Graph) Apply(cmd Command) {
	if cmd.Apply == nil {
		return
	}
	source := "command/" + cmd.Name
	var cerr error
	if err := g.invoker.Invoke(source, func() { cerr = cmd.Apply(g) }); err != nil {
		cerr = err
	}
	if cerr != nil {
		g.report(source, cerr)
	}
}

// report hands a callback failure to the error handler.
func (g *Graph) report(source string, err error) {
	g.onError(&primitives.CallbackError{Source: source, Frame: g.frameID, Err: err})
}

func (g *Graph) logError(err error) {
	var ce *primitives.CallbackError
	if errors.As(err, &ce) {
		g.logger.Error("callback failed", "graph", g.id, "source", ce.Source, "frame", ce.Frame, "err", ce.Err)
		return
	}
	g.logger.Error("graph error", "graph", g.id, "err", err)
}

// DestroyState removes s from its layer and destroys its track. Weightless
// clones of s are kept.
func (g *Graph) DestroyState(s State) {
	if s.g != g {
		panic(primitives.Misuse("Graph.DestroyState", primitives.ErrInvalidArgument, "state belongs to another graph"))
	}
	g.destroyState(g.mustNode(s.h, KindState, "Graph.DestroyState"))
}

func (g *Graph) destroyState(n *node) {
	sd := n.state
	g.clearEvents(n)
	g.dirty.remove(n.handle)
	sd.mustSetTime = false

	// Splice n out of its clone chain.
	if prev, ok := g.nodes.get(sd.cloneOf); ok && prev.state.weightless == n.handle {
		prev.state.weightless = sd.weightless
	}
	if next, ok := g.nodes.get(sd.weightless); ok && next.state.cloneOf == n.handle {
		next.state.cloneOf = sd.cloneOf
	}

	g.detachState(n)
	n.track.Destroy()
	g.nodes.release(n.handle)
}

// Destroy tears down every node and track. The graph cannot be used
// afterwards.
func (g *Graph) Destroy() {
	if g.destroyed {
		return
	}
	for _, lh := range g.layers {
		ln, ok := g.nodes.get(lh)
		if !ok {
			continue
		}
		for len(ln.layer.states) > 0 {
			last := ln.layer.states[len(ln.layer.states)-1]
			if sn, ok := g.nodes.get(last); ok {
				g.destroyState(sn)
			} else {
				ln.layer.states = ln.layer.states[:len(ln.layer.states)-1]
			}
		}
		g.dirty.remove(lh)
		ln.track.Destroy()
		g.nodes.release(lh)
	}
	g.layers = nil
	g.early.clear()
	g.late.clear()
	g.root.Destroy()
	g.destroyed = true
	g.logger.Debug("graph destroyed", "graph", g.id)
}

func (g *Graph) IsDestroyed() bool { return g.destroyed }

// recoverInvoker is the default Invoker: it turns a panic into a
// *primitives.PanicError.
type recoverInvoker struct{}

func (recoverInvoker) Invoke(_ string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &primitives.PanicError{Value: r}
		}
	}()
	fn()
	return nil
}
