// Package simtrack is an in-memory render graph. Tracks only keep time,
// speed and mixer wiring, which is enough to drive a blend graph headless
// and to observe what it does to its tracks.
package simtrack

import (
	"fmt"
	"sort"

	"github.com/comalice/blendx/internal/primitives"
)

// Host creates tracks and advances them. The first mixer it creates is the
// root evaluated by Evaluate.
type Host struct {
	root   *Track
	tracks []*Track

	Evaluations int
}

func NewHost() *Host { return &Host{} }

// NewMixer implements primitives.TrackHost.
func (h *Host) NewMixer() primitives.Track {
	t := h.newTrack(nil)
	if h.root == nil {
		h.root = t
	}
	return t
}

// Evaluate implements primitives.Evaluator. Playing tracks reachable from
// the root advance by dt times their speed and the speeds of their
// ancestors. A paused track holds its inputs too.
func (h *Host) Evaluate(dt float64) {
	h.Evaluations++
	if h.root != nil {
		h.root.advance(dt, 1)
	}
}

func (h *Host) Root() *Track { return h.root }

// Tracks returns every track created so far, destroyed ones included.
func (h *Host) Tracks() []*Track { return append([]*Track(nil), h.tracks...) }

// LiveTracks counts tracks not yet destroyed.
func (h *Host) LiveTracks() int {
	n := 0
	for _, t := range h.tracks {
		if t.IsValid() {
			n++
		}
	}
	return n
}

func (h *Host) newTrack(clip *Clip) *Track {
	t := &Track{
		clip:    clip,
		speed:   1,
		inputs:  make(map[int]*Track),
		weights: make(map[int]float64),
	}
	h.tracks = append(h.tracks, t)
	return t
}

// Clip is a motion with a name, a length and a looping flag.
type Clip struct {
	name    string
	length  float64
	looping bool
}

func NewClip(name string, length float64, looping bool) *Clip {
	return &Clip{name: name, length: length, looping: looping}
}

func (c *Clip) Name() string    { return c.name }
func (c *Clip) Length() float64 { return c.length }
func (c *Clip) IsLooping() bool { return c.looping }
func (c *Clip) String() string  { return c.name }

// CreateTrack implements primitives.Motion. Tracks created for a foreign
// host are not tracked by any Host.
func (c *Clip) CreateTrack(host primitives.TrackHost) primitives.Track {
	if h, ok := host.(*Host); ok {
		return h.newTrack(c)
	}
	return (&Host{}).newTrack(c)
}

// Track is a clip player or a mixer. Time is not wrapped for looping clips.
type Track struct {
	clip    *Clip
	playing bool
	time    float64
	speed   float64

	parent  *Track
	inputs  map[int]*Track
	weights map[int]float64

	destroyed   bool
	applyIK     bool
	applyFootIK bool

	SetTimeCalls int
	TimeReads    int
}

// Motion returns the clip played by the track, or nil for mixers.
func (t *Track) Motion() *Clip { return t.clip }

// ClipName returns the clip name, or "" for mixers.
func (t *Track) ClipName() string {
	if t.clip == nil {
		return ""
	}
	return t.clip.name
}

func (t *Track) Play()           { t.playing = true }
func (t *Track) Pause()          { t.playing = false }
func (t *Track) IsPlaying() bool { return t.playing }

func (t *Track) Time() float64 {
	t.TimeReads++
	return t.time
}

func (t *Track) SetTime(v float64) {
	t.SetTimeCalls++
	t.time = v
}

func (t *Track) Speed() float64     { return t.speed }
func (t *Track) SetSpeed(s float64) { t.speed = s }

// ConnectInput wires input into port, replacing whatever was there.
func (t *Track) ConnectInput(port int, input primitives.Track) {
	in, ok := input.(*Track)
	if !ok {
		panic(fmt.Sprintf("simtrack: cannot connect %T", input))
	}
	if old := t.inputs[port]; old != nil {
		old.parent = nil
	}
	t.inputs[port] = in
	in.parent = t
}

func (t *Track) DisconnectInput(port int) {
	if in := t.inputs[port]; in != nil {
		in.parent = nil
	}
	delete(t.inputs, port)
	delete(t.weights, port)
}

func (t *Track) SetInputWeight(port int, w float64) { t.weights[port] = w }

// Input returns the track on port, or nil.
func (t *Track) Input(port int) *Track { return t.inputs[port] }

// InputWeight returns the weight set on port.
func (t *Track) InputWeight(port int) float64 { return t.weights[port] }

// Ports lists the connected ports in order.
func (t *Track) Ports() []int {
	ports := make([]int, 0, len(t.inputs))
	for p := range t.inputs {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

func (t *Track) Parent() *Track { return t.parent }

func (t *Track) IsValid() bool { return !t.destroyed }

// Destroy disconnects the track from its parent.
func (t *Track) Destroy() {
	if t.parent != nil {
		for p, in := range t.parent.inputs {
			if in == t {
				t.parent.DisconnectInput(p)
			}
		}
	}
	t.destroyed = true
}

func (t *Track) SetApplyIK(enabled bool)     { t.applyIK = enabled }
func (t *Track) SetApplyFootIK(enabled bool) { t.applyFootIK = enabled }
func (t *Track) ApplyIK() bool               { return t.applyIK }
func (t *Track) ApplyFootIK() bool           { return t.applyFootIK }

func (t *Track) advance(dt, parentSpeed float64) {
	if !t.playing || t.destroyed {
		return
	}
	s := parentSpeed * t.speed
	t.time += dt * s
	for _, in := range t.inputs {
		in.advance(dt, s)
	}
}

// Peek returns the time without counting a read.
func (t *Track) Peek() float64 { return t.time }
