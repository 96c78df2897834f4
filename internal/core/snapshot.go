package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comalice/blendx/internal/primitives"
)

// ErrUnknownState is returned by Restore when a snapshot names a state the
// graph does not have.
var ErrUnknownState = errors.New("unknown state")

// GraphSnapshot is the serializable playback state of a graph.
type GraphSnapshot struct {
	GraphID   string          `json:"graphID" yaml:"graphID"`
	Frame     uint64          `json:"frame" yaml:"frame"`
	Speed     float64         `json:"speed" yaml:"speed"`
	Playing   bool            `json:"playing" yaml:"playing"`
	Layers    []LayerSnapshot `json:"layers" yaml:"layers"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
}

type LayerSnapshot struct {
	Index        int             `json:"index" yaml:"index"`
	Name         string          `json:"name" yaml:"name"`
	Weight       float64         `json:"weight" yaml:"weight"`
	TargetWeight float64         `json:"targetWeight" yaml:"targetWeight"`
	FadeSpeed    float64         `json:"fadeSpeed,omitempty" yaml:"fadeSpeed,omitempty"`
	Speed        float64         `json:"speed" yaml:"speed"`
	Current      string          `json:"current,omitempty" yaml:"current,omitempty"`
	CommandCount uint64          `json:"commandCount" yaml:"commandCount"`
	States       []StateSnapshot `json:"states" yaml:"states"`
}

type StateSnapshot struct {
	Key          string  `json:"key" yaml:"key"`
	Motion       string  `json:"motion" yaml:"motion"`
	Clone        bool    `json:"clone,omitempty" yaml:"clone,omitempty"`
	Weight       float64 `json:"weight" yaml:"weight"`
	TargetWeight float64 `json:"targetWeight" yaml:"targetWeight"`
	FadeSpeed    float64 `json:"fadeSpeed,omitempty" yaml:"fadeSpeed,omitempty"`
	Speed        float64 `json:"speed" yaml:"speed"`
	Time         float64 `json:"time" yaml:"time"`
	Length       float64 `json:"length" yaml:"length"`
	Looping      bool    `json:"looping,omitempty" yaml:"looping,omitempty"`
	Playing      bool    `json:"playing" yaml:"playing"`
}

// Snapshot captures weights, fades, speeds, times and playing flags. A
// snap fade (infinite fade speed) is recorded as already settled.
func (g *Graph) Snapshot() GraphSnapshot {
	snap := GraphSnapshot{
		GraphID:   g.id,
		Frame:     g.frameID,
		Speed:     g.root.Speed(),
		Playing:   g.root.IsPlaying(),
		Layers:    make([]LayerSnapshot, 0, len(g.layers)),
		Timestamp: time.Now(),
	}
	for _, lh := range g.layers {
		ln, ok := g.nodes.get(lh)
		if !ok {
			continue
		}
		ls := LayerSnapshot{
			Index:        ln.port,
			Name:         ln.layer.name,
			Speed:        ln.speed,
			CommandCount: ln.layer.commandCount,
			States:       make([]StateSnapshot, 0, len(ln.layer.states)),
		}
		ls.Weight, ls.TargetWeight, ls.FadeSpeed = fadeOf(ln)
		if cur, ok := g.nodes.get(ln.layer.current); ok {
			ls.Current = keyString(cur.state.key)
		}
		for _, sh := range ln.layer.states {
			sn, ok := g.nodes.get(sh)
			if !ok {
				continue
			}
			sd := sn.state
			ss := StateSnapshot{
				Key:     keyString(sd.key),
				Motion:  motionName(sd.motion),
				Clone:   !sd.cloneOf.IsZero(),
				Speed:   sn.speed,
				Time:    g.stateTime(sn),
				Length:  sd.length,
				Looping: sd.looping,
				Playing: sd.isPlaying,
			}
			ss.Weight, ss.TargetWeight, ss.FadeSpeed = fadeOf(sn)
			ls.States = append(ls.States, ss)
		}
		snap.Layers = append(snap.Layers, ls)
	}
	return snap
}

func fadeOf(n *node) (weight, target, speed float64) {
	if n.fadeSpeed > 0 && n.fadeSpeed <= maxFadeSpeed {
		return n.weight, n.target, n.fadeSpeed
	}
	if n.fadeSpeed != 0 {
		return n.target, n.target, 0
	}
	return n.weight, n.target, 0
}

// maxFadeSpeed is the largest fade speed kept by snapshots.
const maxFadeSpeed = 1e12

// Restore applies a snapshot taken from a graph with the same layers and
// states. Clones missing from the graph are skipped; any other missing state
// fails with ErrUnknownState before anything is changed. The frame id is
// not restored.
func (g *Graph) Restore(snap GraphSnapshot) error {
	if g.updating {
		return primitives.Misuse("Graph.Restore", primitives.ErrReentrantUpdate, "graph %q is updating", g.id)
	}
	type target struct {
		n  *node
		ss StateSnapshot
	}
	var targets []target
	for _, ls := range snap.Layers {
		if ls.Index < 0 || ls.Index >= len(g.layers) {
			return fmt.Errorf("graph %q: layer %d: %w", g.id, ls.Index, ErrUnknownState)
		}
		ln, _ := g.nodes.get(g.layers[ls.Index])
		for _, ss := range ls.States {
			sn := g.findByKeyString(ln, ss.Key)
			if sn == nil {
				if ss.Clone {
					continue
				}
				return fmt.Errorf("graph %q: layer %q: state %q: %w", g.id, ls.Name, ss.Key, ErrUnknownState)
			}
			targets = append(targets, target{n: sn, ss: ss})
		}
	}

	g.root.SetSpeed(snap.Speed)
	if snap.Playing {
		g.root.Play()
	} else {
		g.root.Pause()
	}
	for _, ls := range snap.Layers {
		ln, _ := g.nodes.get(g.layers[ls.Index])
		g.setSpeed(ln, ls.Speed)
		g.restoreFade(ln, ls.Weight, ls.TargetWeight, ls.FadeSpeed)
		ln.layer.commandCount = ls.CommandCount
		ln.layer.current = Handle{}
		if cur := g.findByKeyString(ln, ls.Current); cur != nil {
			ln.layer.current = cur.handle
		}
	}
	for _, t := range targets {
		g.setSpeed(t.n, t.ss.Speed)
		g.setPlaying(t.n, t.ss.Playing)
		g.restoreFade(t.n, t.ss.Weight, t.ss.TargetWeight, t.ss.FadeSpeed)
		g.setStateTime(t.n, t.ss.Time)
	}
	g.logger.Info("graph restored", "graph", g.id, "layers", len(snap.Layers), "states", len(targets))
	return nil
}

func (g *Graph) restoreFade(n *node, weight, target, speed float64) {
	g.setWeight(n, weight)
	if speed > 0 && target != weight {
		checkWeight("Restore", target)
		n.target = target
		n.fadeSpeed = speed
	}
}

func (g *Graph) findByKeyString(ln *node, key string) *node {
	if key == "" {
		return nil
	}
	for _, h := range ln.layer.states {
		if n, ok := g.nodes.get(h); ok && keyString(n.state.key) == key {
			return n
		}
	}
	return nil
}

// Save stores a snapshot with the configured Persister.
func (g *Graph) Save(ctx context.Context) error {
	if g.persister == nil {
		return fmt.Errorf("graph %q: save: persister: %w", g.id, ErrNotConfigured)
	}
	return g.persister.Save(ctx, g.Snapshot())
}

// Load restores the snapshot stored for this graph's id.
func (g *Graph) Load(ctx context.Context) error {
	if g.persister == nil {
		return fmt.Errorf("graph %q: load: persister: %w", g.id, ErrNotConfigured)
	}
	snap, err := g.persister.Load(ctx, g.id)
	if err != nil {
		return fmt.Errorf("graph %q: load: %w", g.id, err)
	}
	return g.Restore(snap)
}

// ExportDOT renders the current snapshot with the configured Visualizer.
func (g *Graph) ExportDOT() (string, error) {
	if g.visualizer == nil {
		return "", fmt.Errorf("graph %q: export: visualizer: %w", g.id, ErrNotConfigured)
	}
	return g.visualizer.ExportDOT(g.Snapshot()), nil
}

// ExportJSON renders the current snapshot as JSON with the Visualizer.
func (g *Graph) ExportJSON() ([]byte, error) {
	if g.visualizer == nil {
		return nil, fmt.Errorf("graph %q: export: visualizer: %w", g.id, ErrNotConfigured)
	}
	return g.visualizer.ExportJSON(g.Snapshot())
}
