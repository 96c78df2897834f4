package core

import (
	"context"
	"math"

	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/timeline"
)

// eventDispatcher runs a state's event runner in the late pass while the
// state is playing.
type eventDispatcher struct {
	g      *Graph
	h      Handle
	label  string
	runner *timeline.Runner
}

func (d *eventDispatcher) Name() string { return "events/" + d.label }

func (d *eventDispatcher) seq() *timeline.Sequence { return d.runner.Sequence() }

func (d *eventDispatcher) Update() error {
	n, ok := d.g.nodes.get(d.h)
	if !ok {
		d.g.late.remove(d)
		return nil
	}
	sd := n.state
	return d.runner.Update(d.g.stateTime(n), sd.length, sd.looping, d.g.effectiveSpeed(n))
}

func (sd *stateData) runner() *timeline.Runner {
	if sd.events == nil {
		return nil
	}
	return sd.events.runner
}

// Events returns the event sequence of the state, creating an empty one on
// first use.
func (s State) Events() *timeline.Sequence {
	n := s.node("State.Events")
	if n.state.events != nil {
		return n.state.events.seq()
	}
	seq := timeline.NewSequence()
	s.g.bindEvents(n, seq)
	return seq
}

func (s State) HasEvents() bool { return s.node("State.HasEvents").state.events != nil }

// SetEvents shares seq with this state. Several states may use the same
// sequence; each keeps its own runner. A nil seq clears the events.
func (s State) SetEvents(seq *timeline.Sequence) {
	n := s.node("State.SetEvents")
	if seq == nil {
		s.g.clearEvents(n)
		return
	}
	s.g.bindEvents(n, seq)
}

// ClearEvents detaches the sequence and returns the runner to the pool.
func (s State) ClearEvents() { s.g.clearEvents(s.node("State.ClearEvents")) }

// AddPublishedEvent adds an event that publishes a primitives.FiredEvent
// through the graph's EventPublisher.
func (s State) AddPublishedEvent(name string, normalizedTime float64) int {
	return s.Events().Add(name, normalizedTime, s.g.publishCallback)
}

// SetPublishedEndEvent sets an end event that publishes a FiredEvent. A NaN
// time selects the direction default.
func (s State) SetPublishedEndEvent(name string, normalizedTime float64) {
	s.Events().SetEnd(name, normalizedTime, s.g.publishCallback)
}

func (g *Graph) bindEvents(n *node, seq *timeline.Sequence) {
	sd := n.state
	if sd.events == nil {
		label := g.stateLabel(n)
		r := g.runners.Acquire()
		r.Configure(g.invoker, g.report)
		sd.events = &eventDispatcher{g: g, h: n.handle, label: label, runner: r}
	}
	sd.events.runner.Bind(seq, State{g: g, h: n.handle}, sd.events.label)
	sd.events.runner.Restart(normalize(g.stateTime(n), sd.length))
	if sd.isPlaying {
		g.late.add(sd.events)
	}
}

func (g *Graph) clearEvents(n *node) {
	sd := n.state
	if sd.events == nil {
		return
	}
	g.late.remove(sd.events)
	sd.events.runner.Detach()
	g.retire(sd.events.runner)
	sd.events = nil
}

// retire returns a runner to the pool, or after the late pass when it may
// still be walking.
func (g *Graph) retire(r *timeline.Runner) {
	if g.phase == phaseLate {
		g.retired = append(g.retired, r)
		return
	}
	g.runners.Release(r)
}

func (g *Graph) releaseRetired() {
	for _, r := range g.retired {
		g.runners.Release(r)
	}
	clear(g.retired)
	g.retired = g.retired[:0]
}

func (g *Graph) stateLabel(n *node) string {
	label := keyString(n.state.key)
	if p, ok := g.nodes.get(n.parent); ok && p.layer.name != "" {
		label = p.layer.name + "/" + label
	}
	return label
}

// publishCallback forwards a fired event to the publisher.
func (g *Graph) publishCallback(inv timeline.Invocation) {
	s, ok := inv.Source.(State)
	if !ok || !s.IsValid() {
		return
	}
	n := s.node("publish")
	layer := -1
	if p, ok := g.nodes.get(n.parent); ok {
		layer = p.port
	}
	t := inv.NormalizedTime
	if math.IsNaN(t) {
		t = normalize(g.stateTime(n), n.state.length)
	}
	ev := primitives.NewFiredEvent(inv.Name, keyString(n.state.key), layer, t, inv.End, g.frameID)
	if g.publisher == nil {
		g.logger.Debug("event fired", "event", ev.Name, "state", ev.State, "frame", ev.Frame)
		return
	}
	if err := g.publisher.Publish(context.Background(), ev); err != nil {
		g.report("publish/"+inv.Name, err)
	}
}
