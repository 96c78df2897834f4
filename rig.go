package blendx

import (
	"fmt"
	"math"

	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/simtrack"
)

// Rig is a graph instantiated from a RigConfig.
type Rig struct {
	graph   *core.Graph
	config  *primitives.RigConfig
	version string
	layers  map[string]core.Layer
	states  map[string]core.State
}

// Clips creates an in-memory clip for every motion in cfg.
func Clips(cfg *primitives.RigConfig) map[string]primitives.Motion {
	out := make(map[string]primitives.Motion, len(cfg.Motions))
	for _, m := range cfg.Motions {
		out[m.Name] = simtrack.NewClip(m.Name, m.Length, m.Looping)
	}
	return out
}

// NewRig validates cfg, creates a graph on host with the rig's id and
// scheduler limits, and builds the rig on it. opts are applied after the
// rig's own options.
func NewRig(host primitives.TrackHost, cfg *primitives.RigConfig, motions map[string]primitives.Motion, opts ...core.Option) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rig %q: %w", cfg.ID, err)
	}
	opts = append([]core.Option{core.WithID(cfg.ID), core.WithSchedulerConfig(cfg.Scheduler)}, opts...)
	g := core.NewGraph(host, opts...)
	rig, err := BuildRig(g, cfg, motions)
	if err != nil {
		g.Destroy()
		return nil, err
	}
	return rig, nil
}

// BuildRig adds the layers and states of cfg to g, wiring every configured
// event to the graph's EventPublisher. motions maps motion names to the
// motions to play; a nil map selects Clips(cfg). Layers already on g are
// kept and the rig's layers follow them.
func BuildRig(g *core.Graph, cfg *primitives.RigConfig, motions map[string]primitives.Motion) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rig %q: %w", cfg.ID, err)
	}
	if motions == nil {
		motions = Clips(cfg)
	}
	for _, m := range cfg.Motions {
		if _, ok := motions[m.Name]; !ok {
			return nil, fmt.Errorf("rig %q: motion %q not provided", cfg.ID, m.Name)
		}
	}

	rig := &Rig{
		graph:   g,
		config:  cfg,
		version: primitives.ComputeVersion(cfg),
		layers:  make(map[string]core.Layer, len(cfg.Layers)),
		states:  make(map[string]core.State),
	}
	for _, lc := range cfg.Layers {
		layer, err := g.AddLayer(lc.Name)
		if err != nil {
			return nil, fmt.Errorf("rig %q: %w", cfg.ID, err)
		}
		if lc.Speed != nil {
			layer.SetSpeed(*lc.Speed)
		}
		if lc.Weight != nil {
			layer.SetWeight(*lc.Weight)
		}
		rig.layers[lc.Name] = layer
		for _, sc := range lc.States {
			s, err := layer.CreateStateWithKey(sc.Key, motions[sc.Motion])
			if err != nil {
				return nil, fmt.Errorf("rig %q: layer %q: %w", cfg.ID, lc.Name, err)
			}
			if sc.Speed != nil {
				s.SetSpeed(*sc.Speed)
			}
			for _, ec := range sc.Events {
				s.AddPublishedEvent(ec.Name, ec.Time)
			}
			if sc.End != nil {
				t := math.NaN()
				if sc.End.Time != nil {
					t = *sc.End.Time
				}
				s.SetPublishedEndEvent(sc.End.Name, t)
			}
			rig.states[sc.Key] = s
		}
	}
	g.Logger().Info("rig built", "rig", cfg.ID, "version", rig.version,
		"layers", len(rig.layers), "states", len(rig.states))
	return rig, nil
}

func (r *Rig) Graph() *core.Graph { return r.graph }

func (r *Rig) Config() *primitives.RigConfig { return r.config }

// Version is the rig's explicit version or a hash of its content.
func (r *Rig) Version() string { return r.version }

func (r *Rig) Layer(name string) (core.Layer, bool) {
	l, ok := r.layers[name]
	return l, ok
}

// State returns the state registered under key.
func (r *Rig) State(key string) (core.State, bool) {
	s, ok := r.states[key]
	return s, ok
}

func (r *Rig) lookup(key string) (core.State, error) {
	s, ok := r.states[key]
	if !ok || !s.IsValid() {
		return core.State{}, fmt.Errorf("rig %q: state %q: %w", r.config.ID, key, core.ErrUnknownState)
	}
	return s, nil
}

// Play plays the state on its layer, stopping the others.
func (r *Rig) Play(key string) (core.State, error) {
	s, err := r.lookup(key)
	if err != nil {
		return core.State{}, err
	}
	return s.Layer().Play(s), nil
}

// CrossFade fades to the state on its layer.
func (r *Rig) CrossFade(key string, duration float64, mode core.FadeMode) (core.State, error) {
	s, err := r.lookup(key)
	if err != nil {
		return core.State{}, err
	}
	return s.Layer().CrossFade(s, duration, mode)
}

// Command returns a command that cross-fades to key when applied, or plays
// it when duration is zero.
func (r *Rig) Command(key string, duration float64, mode core.FadeMode) core.Command {
	return core.Command{
		Name: fmt.Sprintf("rig %s: %s", r.config.ID, key),
		Apply: func(*core.Graph) error {
			_, err := r.CrossFade(key, duration, mode)
			return err
		},
	}
}
