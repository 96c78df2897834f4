// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/comalice/blendx"
	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/simtrack"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// GenRigConfig creates a rig with the given number of layers, looping states
// per layer and evenly spaced events per state. State keys are "l<i>s<j>".
func GenRigConfig(layers, states, events int) *primitives.RigConfig {
	if layers < 1 {
		layers = 1
	}
	if states < 1 {
		states = 1
	}
	b := blendx.NewRigBuilder(fmt.Sprintf("rig_%dx%dx%d", layers, states, events)).
		Scheduler(primitives.SchedulerConfig{MaxLayers: layers})
	for j := 0; j < states; j++ {
		b.Motion(fmt.Sprintf("m%d", j), 1+float64(j)/10, true)
	}
	for i := 0; i < layers; i++ {
		l := b.Layer(fmt.Sprintf("layer%d", i))
		for j := 0; j < states; j++ {
			s := l.State(StateKey(i, j), fmt.Sprintf("m%d", j))
			for e := 0; e < events; e++ {
				s.Event(fmt.Sprintf("e%d", e), float64(e)/float64(events))
			}
		}
	}
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}

// StateKey names state j of layer i in generated rigs.
func StateKey(layer, state int) string { return fmt.Sprintf("l%ds%d", layer, state) }

// NewRig builds cfg on an in-memory host and plays the first state of every
// layer.
func NewRig(cfg *primitives.RigConfig, opts ...core.Option) *blendx.Rig {
	opts = append([]core.Option{core.WithLogger(quiet)}, opts...)
	rig, err := blendx.NewRig(simtrack.NewHost(), cfg, nil, opts...)
	if err != nil {
		panic(err)
	}
	for i := range cfg.Layers {
		if _, err := rig.Play(StateKey(i, 0)); err != nil {
			panic(err)
		}
	}
	return rig
}

// GenSnapshotYAML generates YAML bytes for a snapshot of a running rig.
func GenSnapshotYAML(layers, states int) []byte {
	rig := NewRig(GenRigConfig(layers, states, 0))
	defer rig.Graph().Destroy()
	if err := rig.Graph().Tick(0.1); err != nil {
		panic(err)
	}
	data, err := yaml.Marshal(rig.Graph().Snapshot())
	if err != nil {
		panic(err)
	}
	return data
}
