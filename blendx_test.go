package blendx

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/production"
	"github.com/comalice/blendx/internal/simtrack"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func heroRig(t *testing.T) *RigConfig {
	t.Helper()
	cfg, err := NewRigBuilder("hero").
		Scheduler(primitives.SchedulerConfig{MaxLayers: 2, MaxWeightlessDepth: 2}).
		Motion("idle", 2, true).
		Motion("walk", 1, true).
		Motion("jump", 0.5, false).
		Layer("base").
		State("idle", "idle").
		State("walk", "walk").Event("step", 0.5).
		State("jump", "jump").Speed(2).EndDefault("landed").
		Layer("upper").Weight(0.5).
		Build()
	require.NoError(t, err)
	return cfg
}

func TestRigBuilder(t *testing.T) {
	cfg := heroRig(t)
	require.Len(t, cfg.Layers, 2)
	base := cfg.Layers[0]
	require.Len(t, base.States, 3)
	assert.Equal(t, []primitives.EventConfig{{Name: "step", Time: 0.5}}, base.States[1].Events)
	require.NotNil(t, base.States[2].End)
	assert.Nil(t, base.States[2].End.Time)
	assert.Equal(t, 2.0, *base.States[2].Speed)
	assert.Equal(t, 0.5, *cfg.Layers[1].Weight)

	_, err := NewRigBuilder("bad").Motion("walk", 1, true).
		Layer("base").State("run", "run").Build()
	assert.ErrorContains(t, err, `unknown motion "run"`)

	_, err = NewRigBuilder("bad").Motion("walk", 1, true).
		Layer("base").State("walk", "walk").Event("late", 1.2).Build()
	assert.ErrorIs(t, err, ErrEventOutOfRange)
}

func TestNewRig_PlaysAndPublishes(t *testing.T) {
	ch := make(chan FiredEvent, 32)
	host := simtrack.NewHost()
	rig, err := NewRig(host, heroRig(t), nil,
		core.WithLogger(quiet), core.WithPublisher(production.NewChannelPublisher(ch)))
	require.NoError(t, err)
	g := rig.Graph()
	defer g.Destroy()

	assert.Equal(t, "hero", g.ID())
	assert.Equal(t, 2, g.LayerCount())
	assert.NotEmpty(t, rig.Version())
	upper, ok := rig.Layer("upper")
	require.True(t, ok)
	assert.Equal(t, 0.5, upper.Weight())

	_, err = g.AddLayer("extra")
	assert.ErrorIs(t, err, ErrCapacityExceeded, "scheduler limits apply to the graph")

	walk, err := rig.Play("walk")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		require.NoError(t, g.Tick(0.1))
	}
	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, "step", ev.Name)
	assert.Equal(t, "walk", ev.State)
	assert.Equal(t, 0, ev.Layer)
	assert.True(t, walk.IsPlaying())

	jump, err := rig.CrossFade("jump", 0.1, FixedDuration)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Tick(0.1))
	}
	assert.Equal(t, 1.0, jump.Weight())
	assert.Equal(t, 0.0, walk.Weight())

	var landed int
	for len(ch) > 0 {
		if ev := <-ch; ev.Name == "landed" && ev.End {
			landed++
		}
	}
	assert.Positive(t, landed, "jump runs at double speed and passes its end")

	_, err = rig.Play("missing")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestRig_Command(t *testing.T) {
	var reported []error
	rig, err := NewRig(simtrack.NewHost(), heroRig(t), nil, core.WithLogger(quiet),
		core.WithErrorHandler(func(err error) { reported = append(reported, err) }))
	require.NoError(t, err)
	g := rig.Graph()
	defer g.Destroy()

	g.Apply(rig.Command("idle", 0, FixedDuration))
	require.NoError(t, g.Tick(0.1))
	idle, _ := rig.State("idle")
	assert.True(t, idle.IsPlaying())
	assert.Equal(t, idle.Handle(), g.Layer(0).CurrentState().Handle())
	assert.Empty(t, reported)

	g.Apply(rig.Command("missing", 0.2, FixedDuration))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrUnknownState)
}

func TestBuildRig_MissingMotion(t *testing.T) {
	g := NewGraph(simtrack.NewHost(), core.WithLogger(quiet))
	defer g.Destroy()
	cfg := heroRig(t)
	motions := Clips(cfg)
	delete(motions, "jump")
	_, err := BuildRig(g, cfg, motions)
	assert.ErrorContains(t, err, `motion "jump" not provided`)
	assert.Zero(t, g.LayerCount())
}
