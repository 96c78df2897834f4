package blendx

import (
	"math"

	"github.com/comalice/blendx/internal/primitives"
)

// RigBuilder provides a fluent API for describing a rig in code instead of
// a rig file.
type RigBuilder struct {
	cfg primitives.RigConfig
}

// LayerBuilder configures the most recently added layer.
type LayerBuilder struct {
	b     *RigBuilder
	layer int
}

// StateBuilder configures the most recently added state of a layer.
type StateBuilder struct {
	l     *LayerBuilder
	state int
}

// NewRigBuilder creates a builder for a rig with the given id.
func NewRigBuilder(id string) *RigBuilder {
	return &RigBuilder{cfg: primitives.RigConfig{Schema: primitives.SchemaVersion, ID: id}}
}

// Version pins the rig version instead of the content hash.
func (b *RigBuilder) Version(v string) *RigBuilder {
	b.cfg.Version = v
	return b
}

// Scheduler sets graph and runtime limits.
func (b *RigBuilder) Scheduler(s primitives.SchedulerConfig) *RigBuilder {
	b.cfg.Scheduler = &s
	return b
}

// Motion declares a clip.
func (b *RigBuilder) Motion(name string, length float64, looping bool) *RigBuilder {
	b.cfg.Motions = append(b.cfg.Motions, primitives.MotionConfig{Name: name, Length: length, Looping: looping})
	return b
}

// Layer starts a new layer.
func (b *RigBuilder) Layer(name string) *LayerBuilder {
	b.cfg.Layers = append(b.cfg.Layers, primitives.LayerConfig{Name: name})
	return &LayerBuilder{b: b, layer: len(b.cfg.Layers) - 1}
}

// Build validates the rig and returns it.
func (b *RigBuilder) Build() (*primitives.RigConfig, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *LayerBuilder) config() *primitives.LayerConfig { return &l.b.cfg.Layers[l.layer] }

// Weight sets the initial layer weight.
func (l *LayerBuilder) Weight(w float64) *LayerBuilder {
	l.config().Weight = &w
	return l
}

func (l *LayerBuilder) Speed(s float64) *LayerBuilder {
	l.config().Speed = &s
	return l
}

// State adds a state playing motion on this layer.
func (l *LayerBuilder) State(key, motion string) *StateBuilder {
	c := l.config()
	c.States = append(c.States, *primitives.NewStateConfig(key, motion))
	return &StateBuilder{l: l, state: len(c.States) - 1}
}

// Layer starts the next layer.
func (l *LayerBuilder) Layer(name string) *LayerBuilder { return l.b.Layer(name) }

func (l *LayerBuilder) Build() (*primitives.RigConfig, error) { return l.b.Build() }

func (s *StateBuilder) config() *primitives.StateConfig {
	return &s.l.config().States[s.state]
}

func (s *StateBuilder) Speed(v float64) *StateBuilder {
	s.config().WithSpeed(v)
	return s
}

// Event adds a published event at a normalized time.
func (s *StateBuilder) Event(name string, normalizedTime float64) *StateBuilder {
	s.config().AddEvent(name, normalizedTime)
	return s
}

// End sets the published end event at a normalized time.
func (s *StateBuilder) End(name string, normalizedTime float64) *StateBuilder {
	s.config().WithEnd(name, normalizedTime)
	return s
}

// EndDefault sets the published end event at the direction default.
func (s *StateBuilder) EndDefault(name string) *StateBuilder {
	return s.End(name, math.NaN())
}

// State adds a sibling state on the same layer.
func (s *StateBuilder) State(key, motion string) *StateBuilder { return s.l.State(key, motion) }

// Layer starts the next layer.
func (s *StateBuilder) Layer(name string) *LayerBuilder { return s.l.b.Layer(name) }

func (s *StateBuilder) Build() (*primitives.RigConfig, error) { return s.l.b.Build() }
