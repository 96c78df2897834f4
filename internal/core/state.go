package core

import (
	"fmt"
	"math"

	"github.com/comalice/blendx/internal/primitives"
)

// State is a leaf blend node playing one motion. It is a handle: copies
// refer to the same node, and every method panics with ErrStaleHandle once
// the state has been destroyed.
type State struct {
	g *Graph
	h Handle
}

func (s State) node(op string) *node { return s.g.mustNode(s.h, KindState, op) }

// IsValid reports whether the state is still alive.
func (s State) IsValid() bool {
	if s.g == nil {
		return false
	}
	n, ok := s.g.nodes.get(s.h)
	return ok && n.kind == KindState
}

func (s State) Handle() Handle { return s.h }
func (s State) Graph() *Graph  { return s.g }

// Key is the registration key inside the layer.
func (s State) Key() any { return s.node("State.Key").state.key }

func (s State) Motion() primitives.Motion { return s.node("State.Motion").state.motion }

// Length is the motion length in seconds.
func (s State) Length() float64 { return s.node("State.Length").state.length }

func (s State) IsLooping() bool { return s.node("State.IsLooping").state.looping }

// Layer returns the layer owning this state.
func (s State) Layer() Layer {
	return Layer{g: s.g, h: s.node("State.Layer").parent}
}

// Index is the port of the state on its layer mixer.
func (s State) Index() int { return s.node("State.Index").port }

// IsClone reports whether the state is a weightless clone created by a
// FromStart fade.
func (s State) IsClone() bool { return !s.node("State.IsClone").state.cloneOf.IsZero() }

func (s State) Weight() float64       { return s.node("State.Weight").weight }
func (s State) TargetWeight() float64 { return s.node("State.TargetWeight").target }
func (s State) FadeSpeed() float64    { return s.node("State.FadeSpeed").fadeSpeed }
func (s State) IsFading() bool        { return s.node("State.IsFading").fadeSpeed != 0 }

// SetWeight snaps the weight and cancels any fade.
// Panics with a *ProgrammerError if w is negative or not finite.
func (s State) SetWeight(w float64) { s.g.setWeight(s.node("State.SetWeight"), w) }

// StartFade moves the weight to target over duration seconds.
func (s State) StartFade(target, duration float64) {
	s.g.startFade(s.node("State.StartFade"), target, duration)
}

func (s State) Speed() float64 { return s.node("State.Speed").speed }

// SetSpeed panics with a *ProgrammerError if speed is not finite.
func (s State) SetSpeed(speed float64) { s.g.setSpeed(s.node("State.SetSpeed"), speed) }

// EffectiveSpeed is the state speed times the layer speed.
func (s State) EffectiveSpeed() float64 {
	return s.g.effectiveSpeed(s.node("State.EffectiveSpeed"))
}

func (s State) ApplyIK() bool     { return s.node("State.ApplyIK").applyIK }
func (s State) ApplyFootIK() bool { return s.node("State.ApplyFootIK").applyFootIK }

// SetApplyIK forwards the flags to tracks implementing primitives.IKTrack.
func (s State) SetApplyIK(ik, footIK bool) { s.g.setIK(s.node("State.SetApplyIK"), ik, footIK) }

func (s State) IsPlaying() bool { return s.node("State.IsPlaying").state.isPlaying }

// SetPlaying plays or pauses the track without touching the weight.
func (s State) SetPlaying(playing bool) {
	s.g.setPlaying(s.node("State.SetPlaying"), playing)
}

// Play marks the state as playing at full weight and restarts its events
// from the current time.
func (s State) Play() { s.g.playState(s.node("State.Play")) }

// Stop zeroes the weight, pauses and rewinds to 0.
func (s State) Stop() { s.g.stopState(s.node("State.Stop")) }

// Time is the local time in seconds. It is read from the track at most once
// per frame.
func (s State) Time() float64 { return s.g.stateTime(s.node("State.Time")) }

// SetTime moves the state to t seconds. From the late pass the track write
// is deferred to the next early pass; Time reports t immediately.
// Panics with a *ProgrammerError if t is not finite.
func (s State) SetTime(t float64) { s.g.setStateTime(s.node("State.SetTime"), t) }

// NormalizedTime is Time divided by Length, or 0 for zero-length motions.
func (s State) NormalizedTime() float64 {
	n := s.node("State.NormalizedTime")
	return normalize(s.g.stateTime(n), n.state.length)
}

func (s State) SetNormalizedTime(v float64) {
	n := s.node("State.SetNormalizedTime")
	checkFinite("State.SetNormalizedTime", "normalized time", v)
	s.g.setStateTime(n, v*n.state.length)
}

// IsPlayingAndNotEnding reports whether the state is playing and has not
// passed its end time in the current direction. The end time is the end
// event time when set, otherwise Length forwards and 0 backwards.
func (s State) IsPlayingAndNotEnding() bool {
	n := s.node("State.IsPlayingAndNotEnding")
	sd := n.state
	if !sd.isPlaying {
		return false
	}
	forward := s.g.effectiveSpeed(n) >= 0
	end := 0.0
	if forward {
		end = sd.length
	}
	if sd.events != nil && sd.events.seq().HasEndTime() {
		end = sd.events.seq().NormalizedEndTime(forward) * sd.length
	}
	t := s.g.stateTime(n)
	if forward {
		return t <= end
	}
	return t >= end
}

func (s State) String() string {
	if !s.IsValid() {
		return "State(invalid)"
	}
	return fmt.Sprintf("State(%s)", keyString(s.node("State.String").state.key))
}

func normalize(t, length float64) float64 {
	if length == 0 {
		return 0
	}
	return t / length
}

func (g *Graph) stateTime(n *node) float64 {
	sd := n.state
	if sd.hasCache && sd.cachedFrame == g.frameID {
		return sd.cachedTime
	}
	t := n.track.Time()
	sd.cachedTime = t
	sd.cachedFrame = g.frameID
	sd.hasCache = true
	return t
}

func (g *Graph) setStateTime(n *node, t float64) {
	checkFinite("State.SetTime", "time", t)
	sd := n.state
	sd.cachedTime = t
	sd.cachedFrame = g.frameID
	sd.hasCache = true
	if g.phase == phaseLate {
		if !sd.mustSetTime {
			sd.mustSetTime = true
			g.pendingTimes = append(g.pendingTimes, n.handle)
		}
	} else {
		sd.mustSetTime = false
		writeTime(n.track, t)
	}
	if r := sd.runner(); r != nil {
		r.Restart(normalize(t, sd.length))
	}
}

// writeTime applies t twice so the motion's embedded triggers between the
// old and new time are skipped.
func writeTime(track primitives.Track, t float64) {
	track.SetTime(t)
	track.SetTime(t)
}

func (g *Graph) applyPendingTimes() {
	for _, h := range g.pendingTimes {
		n, ok := g.nodes.get(h)
		if !ok || !n.state.mustSetTime {
			continue
		}
		n.state.mustSetTime = false
		writeTime(n.track, n.state.cachedTime)
	}
	clear(g.pendingTimes)
	g.pendingTimes = g.pendingTimes[:0]
}

func (g *Graph) setPlaying(n *node, playing bool) {
	sd := n.state
	if sd.isPlaying == playing {
		return
	}
	sd.isPlaying = playing
	sd.playingDirty = true
	g.requestUpdate(n)
	if sd.events == nil {
		return
	}
	if playing {
		sd.events.runner.Restart(normalize(g.stateTime(n), sd.length))
		g.late.add(sd.events)
	} else {
		g.late.remove(sd.events)
	}
}

func (g *Graph) applyPlayback(n *node) {
	sd := n.state
	if !sd.playingDirty {
		return
	}
	sd.playingDirty = false
	if sd.isPlaying {
		n.track.Play()
	} else {
		n.track.Pause()
	}
}

func (g *Graph) playState(n *node) {
	g.setPlaying(n, true)
	g.setWeight(n, 1)
	if r := n.state.runner(); r != nil {
		r.Restart(normalize(g.stateTime(n), n.state.length))
	}
}

func (g *Graph) stopState(n *node) {
	g.setWeight(n, 0)
	g.setPlaying(n, false)
	g.setStateTime(n, 0)
}

// keyString renders a registration key for logs and snapshots.
func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	case primitives.NamedMotion:
		return k.Name()
	default:
		return fmt.Sprint(k)
	}
}

// motionName is the name recorded in snapshots.
func motionName(m primitives.Motion) string {
	if nm, ok := m.(primitives.NamedMotion); ok {
		return nm.Name()
	}
	return fmt.Sprintf("%T", m)
}

func checkLength(op string, length float64) {
	if length < 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		panic(primitives.Misuse(op, primitives.ErrInvalidArgument, "motion length %v must be finite and non-negative", length))
	}
}
