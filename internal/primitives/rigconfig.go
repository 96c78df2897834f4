// RigConfig is the declarative description of a blend graph: the motions it
// plays, its layers, the states on each layer and their event timelines.
// It decodes from YAML, JSON and HCL; Validate must pass before a rig is built.

package primitives

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SchemaVersion is the only rig file schema this package understands.
const SchemaVersion = 1

// RigConfig defines a complete rig.
type RigConfig struct {
	Schema    int              `json:"schema" yaml:"schema" hcl:"schema,optional"`
	Version   string           `json:"version,omitempty" yaml:"version,omitempty" hcl:"version,optional"`
	ID        string           `json:"id" yaml:"id" hcl:"id"`
	Scheduler *SchedulerConfig `json:"scheduler,omitempty" yaml:"scheduler,omitempty" hcl:"scheduler,block"`
	Motions   []MotionConfig   `json:"motions" yaml:"motions" hcl:"motion,block"`
	Layers    []LayerConfig    `json:"layers" yaml:"layers" hcl:"layer,block"`
}

// SchedulerConfig carries graph and runtime limits. Zero values select defaults.
type SchedulerConfig struct {
	TickRate              string `json:"tickRate,omitempty" yaml:"tick_rate,omitempty" hcl:"tick_rate,optional"`
	MaxCommandsPerTick    int    `json:"maxCommandsPerTick,omitempty" yaml:"max_commands_per_tick,omitempty" hcl:"max_commands_per_tick,optional"`
	MaxWeightlessDepth    int    `json:"maxWeightlessDepth,omitempty" yaml:"max_weightless_depth,omitempty" hcl:"max_weightless_depth,optional"`
	MaxLayers             int    `json:"maxLayers,omitempty" yaml:"max_layers,omitempty" hcl:"max_layers,optional"`
	KeepChildrenConnected bool   `json:"keepChildrenConnected,omitempty" yaml:"keep_children_connected,omitempty" hcl:"keep_children_connected,optional"`
}

// TickDuration parses TickRate. An empty rate yields zero.
func (s *SchedulerConfig) TickDuration() (time.Duration, error) {
	if s == nil || s.TickRate == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.TickRate)
	if err != nil {
		return 0, fmt.Errorf("tick_rate %q: %w", s.TickRate, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick_rate %q must be positive", s.TickRate)
	}
	return d, nil
}

// MotionConfig describes a clip by name.
type MotionConfig struct {
	Name    string  `json:"name" yaml:"name" hcl:"name,label"`
	Length  float64 `json:"length" yaml:"length" hcl:"length"`
	Looping bool    `json:"looping,omitempty" yaml:"looping,omitempty" hcl:"looping,optional"`
}

// LayerConfig describes one layer and the states registered on it.
type LayerConfig struct {
	Name   string        `json:"name" yaml:"name" hcl:"name,label"`
	Speed  *float64      `json:"speed,omitempty" yaml:"speed,omitempty" hcl:"speed,optional"`
	Weight *float64      `json:"weight,omitempty" yaml:"weight,omitempty" hcl:"weight,optional"`
	States []StateConfig `json:"states" yaml:"states" hcl:"state,block"`
}

// StateConfig describes a state bound to a motion.
type StateConfig struct {
	Key    string          `json:"key" yaml:"key" hcl:"key,label"`
	Motion string          `json:"motion" yaml:"motion" hcl:"motion"`
	Speed  *float64        `json:"speed,omitempty" yaml:"speed,omitempty" hcl:"speed,optional"`
	Events []EventConfig   `json:"events,omitempty" yaml:"events,omitempty" hcl:"event,block"`
	End    *EndEventConfig `json:"end,omitempty" yaml:"end,omitempty" hcl:"end,block"`
}

// EventConfig is a named event at a normalized time.
type EventConfig struct {
	Name string  `json:"name" yaml:"name" hcl:"name,label"`
	Time float64 `json:"time" yaml:"time" hcl:"time"`
}

// EndEventConfig is the optional end event of a state. A nil Time selects
// the direction-dependent default (1 forward, 0 backward).
type EndEventConfig struct {
	Name string   `json:"name,omitempty" yaml:"name,omitempty" hcl:"name,optional"`
	Time *float64 `json:"time,omitempty" yaml:"time,omitempty" hcl:"time,optional"`
}

// NewStateConfig creates a StateConfig for key playing motion.
func NewStateConfig(key, motion string) *StateConfig {
	return &StateConfig{Key: key, Motion: motion}
}

// WithSpeed sets the state speed.
func (s *StateConfig) WithSpeed(speed float64) *StateConfig {
	s.Speed = &speed
	return s
}

// AddEvent appends a named event.
func (s *StateConfig) AddEvent(name string, normalizedTime float64) *StateConfig {
	s.Events = append(s.Events, EventConfig{Name: name, Time: normalizedTime})
	return s
}

// WithEnd sets the end event. Pass math.NaN() for the default end time.
func (s *StateConfig) WithEnd(name string, normalizedTime float64) *StateConfig {
	end := &EndEventConfig{Name: name}
	if !math.IsNaN(normalizedTime) {
		end.Time = &normalizedTime
	}
	s.End = end
	return s
}

// Validate validates the entire rig:
// - Schema, ID and at least one layer
// - Unique motion names with finite, non-negative lengths
// - Unique layer names and state keys (keys are graph-wide)
// - State motions exist; speeds and event times are finite
// - Looping motions only carry events in [0, 1)
func (r *RigConfig) Validate() error {
	if r.Schema != 0 && r.Schema != SchemaVersion {
		return fmt.Errorf("unsupported rig schema: %d", r.Schema)
	}
	if r.ID == "" {
		return errors.New("rig ID is required")
	}
	if len(r.Layers) == 0 {
		return errors.New("at least one layer is required")
	}
	if _, err := r.Scheduler.TickDuration(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if s := r.Scheduler; s != nil {
		if s.MaxCommandsPerTick < 0 || s.MaxWeightlessDepth < 0 || s.MaxLayers < 0 {
			return errors.New("scheduler limits cannot be negative")
		}
		if s.MaxLayers > 0 && len(r.Layers) > s.MaxLayers {
			return fmt.Errorf("%d layers exceed max_layers %d: %w", len(r.Layers), s.MaxLayers, ErrCapacityExceeded)
		}
	}

	motions := make(map[string]*MotionConfig, len(r.Motions))
	for i := range r.Motions {
		m := &r.Motions[i]
		if m.Name == "" {
			return fmt.Errorf("motion %d: name is required", i)
		}
		if _, dup := motions[m.Name]; dup {
			return fmt.Errorf("duplicate motion %q", m.Name)
		}
		if m.Length < 0 || math.IsNaN(m.Length) || math.IsInf(m.Length, 0) {
			return fmt.Errorf("motion %q: length %v must be finite and non-negative", m.Name, m.Length)
		}
		motions[m.Name] = m
	}

	layers := make(map[string]bool, len(r.Layers))
	keys := make(map[string]string)
	for li := range r.Layers {
		l := &r.Layers[li]
		if l.Name == "" {
			return fmt.Errorf("layer %d: name is required", li)
		}
		if layers[l.Name] {
			return fmt.Errorf("duplicate layer %q", l.Name)
		}
		layers[l.Name] = true
		if l.Speed != nil && !finite(*l.Speed) {
			return fmt.Errorf("layer %q: speed must be finite", l.Name)
		}
		if l.Weight != nil && (!finite(*l.Weight) || *l.Weight < 0) {
			return fmt.Errorf("layer %q: weight must be finite and non-negative", l.Name)
		}
		for si := range l.States {
			if err := l.States[si].validate(motions); err != nil {
				return fmt.Errorf("layer %q state %d validation failed: %w", l.Name, si, err)
			}
			key := l.States[si].Key
			if owner, dup := keys[key]; dup {
				return fmt.Errorf("duplicate state key %q (layers %q and %q)", key, owner, l.Name)
			}
			keys[key] = l.Name
		}
	}
	return nil
}

func (s *StateConfig) validate(motions map[string]*MotionConfig) error {
	if s.Key == "" {
		return errors.New("state key is required")
	}
	m, ok := motions[s.Motion]
	if !ok {
		return fmt.Errorf("state %q: unknown motion %q", s.Key, s.Motion)
	}
	if s.Speed != nil && !finite(*s.Speed) {
		return fmt.Errorf("state %q: speed must be finite", s.Key)
	}
	for i, e := range s.Events {
		if !finite(e.Time) {
			return fmt.Errorf("state %q event %d (%q): time must be finite", s.Key, i, e.Name)
		}
		if m.Looping && (e.Time < 0 || e.Time >= 1) {
			return fmt.Errorf("state %q event %q at %v: looping events must be in [0, 1): %w", s.Key, e.Name, e.Time, ErrEventOutOfRange)
		}
	}
	if s.End != nil && s.End.Time != nil && !finite(*s.End.Time) {
		return fmt.Errorf("state %q: end time must be finite", s.Key)
	}
	return nil
}

// Motion returns the named motion config.
func (r *RigConfig) Motion(name string) (*MotionConfig, error) {
	for i := range r.Motions {
		if r.Motions[i].Name == name {
			return &r.Motions[i], nil
		}
	}
	return nil, fmt.Errorf("motion %q not found", name)
}

// FindState resolves a state by key and returns it with its layer index.
func (r *RigConfig) FindState(key string) (*StateConfig, int, error) {
	if key == "" {
		return nil, -1, errors.New("key cannot be empty")
	}
	for li := range r.Layers {
		for si := range r.Layers[li].States {
			if r.Layers[li].States[si].Key == key {
				return &r.Layers[li].States[si], li, nil
			}
		}
	}
	return nil, -1, fmt.Errorf("state %q not found", key)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
