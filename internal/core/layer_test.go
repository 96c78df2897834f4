package core

import (
	"errors"
	"math"
	"testing"

	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/simtrack"
)

func TestLayer_PlayStopsOthers(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	b := f.state(t, "b", 1, false)

	f.layer.Play(a)
	f.tick(t, 0.3, 1)
	f.layer.Play(b)

	if f.layer.Weight() != 1 {
		t.Errorf("layer weight = %v, want 1", f.layer.Weight())
	}
	if a.Weight() != 0 || a.IsPlaying() || a.Time() != 0 {
		t.Errorf("a: weight=%v playing=%v time=%v, want stopped", a.Weight(), a.IsPlaying(), a.Time())
	}
	if b.Weight() != 1 || !b.IsPlaying() {
		t.Errorf("b: weight=%v playing=%v", b.Weight(), b.IsPlaying())
	}
	if f.layer.CurrentState() != b {
		t.Errorf("current = %v, want b", f.layer.CurrentState())
	}
}

func TestLayer_PlayKeepsFadingLayerWeight(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	f.layer.StartFade(1, 1)
	f.layer.Play(a)
	if f.layer.Weight() != 0 || !f.layer.IsFading() {
		t.Error("Play should not snap a layer that is fading in")
	}
}

func TestLayer_CommandCount(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	b := f.state(t, "b", 1, false)

	f.layer.Play(a)
	f.layer.Play(a)
	if got := f.layer.CommandCount(); got != 2 {
		t.Errorf("after replaying a: CommandCount = %d, want 2", got)
	}
	if _, err := f.layer.CrossFade(b, 0.25, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if _, err := f.layer.CrossFade(b, 0.25, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if got := f.layer.CommandCount(); got != 4 {
		t.Errorf("CommandCount = %d, want 4", got)
	}
}

func TestLayer_CrossFadeModes(t *testing.T) {
	tests := []struct {
		mode      FadeMode
		wantSpeed float64 // fade speed of b
	}{
		{FixedSpeed, 1},            // 1s * |1-0.5| = 0.5s
		{FixedDuration, 0.5},       // 1s
		{NormalizedSpeed, 0.5},     // 1s * 0.5 * 2 = 1s
		{NormalizedDuration, 0.25}, // 1s * 2 = 2s
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := newFixture(t)
			a := f.state(t, "a", 2, false)
			b := f.state(t, "b", 2, false)
			f.layer.Play(a)
			b.SetWeight(0.5)
			f.tick(t, 0.1, 1)

			got, err := f.layer.CrossFade(b, 1, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if got != b || f.layer.CurrentState() != b {
				t.Fatalf("faded in %v, want b", got)
			}
			if !b.IsPlaying() || b.TargetWeight() != 1 {
				t.Error("b should be playing towards weight 1")
			}
			if math.Abs(b.FadeSpeed()-tt.wantSpeed) > 1e-12 {
				t.Errorf("b fade speed = %v, want %v", b.FadeSpeed(), tt.wantSpeed)
			}
			if a.TargetWeight() != 0 || !a.IsFading() {
				t.Error("a should fade out")
			}
		})
	}
}

func TestLayer_CrossFadeNonPositiveIsPlay(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	b := f.state(t, "b", 1, false)
	f.layer.Play(a)

	if _, err := f.layer.CrossFade(b, 0, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if b.Weight() != 1 || a.Weight() != 0 || a.IsPlaying() {
		t.Error("zero duration cross fade should behave like Play")
	}

	// FixedSpeed towards a state already at full weight leaves nothing to
	// fade.
	if _, err := f.layer.CrossFade(b, 1, FixedSpeed); err != nil {
		t.Fatal(err)
	}
	if b.IsFading() {
		t.Error("b is already at full weight")
	}
}

func TestLayer_CrossFadeIdleLayer(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)

	if _, err := f.layer.CrossFade(a, 0.5, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if f.layer.TargetWeight() != 1 || f.layer.FadeSpeed() != 2 {
		t.Errorf("layer target=%v speed=%v, want fade in over 0.5s", f.layer.TargetWeight(), f.layer.FadeSpeed())
	}
	if a.Weight() != 1 || !a.IsPlaying() {
		t.Error("state should be played at full weight inside the fading layer")
	}
	f.tick(t, 0.25, 2)
	if f.layer.Weight() != 1 {
		t.Errorf("layer weight = %v, want 1", f.layer.Weight())
	}
}

func TestLayer_CrossFadeKeepsFasterFade(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	b := f.state(t, "b", 1, false)
	f.layer.Play(a)
	f.tick(t, 0.1, 1)

	if _, err := f.layer.CrossFade(b, 0.2, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if _, err := f.layer.CrossFade(b, 1, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if math.Abs(b.FadeSpeed()-5) > 1e-9 {
		t.Errorf("fade speed = %v, slower fade replaced a faster one", b.FadeSpeed())
	}
	if _, err := f.layer.CrossFade(b, 0.1, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if math.Abs(b.FadeSpeed()-10) > 1e-9 {
		t.Errorf("fade speed = %v, want 10", b.FadeSpeed())
	}
}

func TestLayer_CrossFadeFromStart(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, true)
	f.layer.Play(a)
	f.tick(t, 0.4, 1)

	clone, err := f.layer.CrossFade(a, 0.5, FromStart)
	if err != nil {
		t.Fatal(err)
	}
	if clone == a || !clone.IsClone() {
		t.Fatalf("expected a weightless clone, got %v", clone)
	}
	if clone.Time() != 0 || clone.TargetWeight() != 1 || clone.Motion() != a.Motion() {
		t.Error("clone should restart the same motion from 0 and fade in")
	}
	if a.TargetWeight() != 0 || !a.IsPlaying() {
		t.Error("original should keep playing while fading out")
	}
	if f.layer.CurrentState() != clone || f.layer.StateCount() != 2 {
		t.Error("clone should be current and registered on the layer")
	}

	f.tick(t, 1, 1)
	again, err := f.layer.CrossFade(a, 0.5, FromStart)
	if err != nil {
		t.Fatal(err)
	}
	if again != a || a.Time() != 0 {
		t.Errorf("idle original should restart without cloning, got %v", again)
	}
}

func TestLayer_WeightlessReuse(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	f.layer.Play(a)
	f.tick(t, 0.1, 1)

	first, err := f.layer.CrossFade(a, 0.5, FromStart)
	if err != nil {
		t.Fatal(err)
	}
	f.tick(t, 2, 1)
	if a.Weight() != 0 || first.Weight() != 1 {
		t.Fatal("fade did not complete")
	}

	if got, _ := f.layer.CrossFade(a, 0.5, FromStart); got != a {
		t.Fatalf("idle original should be used directly, got %v", got)
	}
	f.tick(t, 2, 1)

	got, err := f.layer.CrossFade(a, 0.5, FromStart)
	if err != nil {
		t.Fatal(err)
	}
	if got != first || f.layer.StateCount() != 2 {
		t.Errorf("expected the idle clone to be reused, got %v with %d states", got, f.layer.StateCount())
	}
}

func TestLayer_WeightlessDepthExceeded(t *testing.T) {
	f := newFixture(t, WithMaxWeightlessDepth(2))
	a := f.state(t, "a", 1, false)
	f.layer.Play(a)
	f.tick(t, 0.1, 1)

	for i := 0; i < 2; i++ {
		if _, err := f.layer.CrossFade(a, 0.5, FromStart); err != nil {
			t.Fatalf("fade %d: %v", i, err)
		}
		f.tick(t, 0.1, 1)
	}
	_, err := f.layer.CrossFade(a, 0.5, FromStart)
	if !errors.Is(err, primitives.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if f.layer.StateCount() != 3 {
		t.Errorf("StateCount = %d, want 3", f.layer.StateCount())
	}
}

func TestLayer_ForeignStatePanics(t *testing.T) {
	f := newFixture(t)
	other, err := f.g.AddLayer("other")
	if err != nil {
		t.Fatal(err)
	}
	s, err := other.CreateState(simtrack.NewClip("x", 1, false))
	if err != nil {
		t.Fatal(err)
	}
	expectMisuse(t, primitives.ErrInvalidArgument, func() { f.layer.Play(s) })
}

func TestLayer_DuplicateKey(t *testing.T) {
	f := newFixture(t)
	f.state(t, "a", 1, false)
	_, err := f.layer.CreateStateWithKey("a", simtrack.NewClip("a", 1, false))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	clip := simtrack.NewClip("walk", 1, true)
	s1, err := f.layer.GetOrCreateState(clip, clip)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := f.layer.GetOrCreateState(clip, clip)
	if err != nil || s1 != s2 {
		t.Error("GetOrCreateState should return the registered state")
	}
}

func TestLayer_DestroyStateMovesLastPort(t *testing.T) {
	f := newFixture(t, WithKeepChildrenConnected(true))
	a := f.state(t, "a", 1, false)
	f.state(t, "b", 1, false)
	c := f.state(t, "c", 1, false)
	c.SetWeight(0.4)
	f.tick(t, 0.1, 1)

	f.g.DestroyState(a)
	if a.IsValid() {
		t.Fatal("destroyed state still valid")
	}
	if c.Index() != 0 || f.layer.StateCount() != 2 {
		t.Fatalf("c port = %d, states = %d", c.Index(), f.layer.StateCount())
	}
	mixer := layerTrack(f.layer)
	if mixer.Input(0) != trackOf(c) || mixer.InputWeight(0) != 0.4 {
		t.Error("c should be rewired to port 0 with its weight")
	}
	if _, ok := f.layer.GetState("a"); ok {
		t.Error("key a still registered")
	}
	expectMisuse(t, primitives.ErrStaleHandle, func() { a.Weight() })
}

func TestLayer_Stop(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	f.layer.Play(a)
	f.tick(t, 0.1, 1)

	f.layer.StartFade(0, 0.2)
	f.tick(t, 0.1, 2)
	if f.layer.Weight() != 0 || a.IsPlaying() || f.layer.IsAnyStatePlaying() {
		t.Error("a layer that faded out should stop its states")
	}
}

func TestLayer_FadeOutResetsStates(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, false)
	f.layer.Play(a)
	f.tick(t, 0.1, 3)

	f.layer.StartFade(0, 0.2)
	f.tick(t, 0.1, 2)
	if f.layer.Weight() != 0 || a.Weight() != 0 || a.IsPlaying() {
		t.Fatalf("layer=%v a=%v playing=%v, want stopped", f.layer.Weight(), a.Weight(), a.IsPlaying())
	}
	if a.Time() != 0 || trackOf(a).IsPlaying() || trackOf(a).Peek() != 0 {
		t.Errorf("time=%v track playing=%v track time=%v, want a paused track at 0",
			a.Time(), trackOf(a).IsPlaying(), trackOf(a).Peek())
	}

	f.layer.Play(a)
	f.tick(t, 0.1, 1)
	if math.Abs(a.Time()-0.1) > 1e-9 {
		t.Errorf("replay time = %v, want 0.1", a.Time())
	}
}

func TestLayer_CrossFadeRevivesFadingLayer(t *testing.T) {
	f := newFixture(t)
	a := f.state(t, "a", 1, true)
	b := f.state(t, "b", 1, true)
	f.layer.Play(a)
	f.layer.StartFade(0, 0.5)
	f.tick(t, 0.1, 1)

	if _, err := f.layer.CrossFade(b, 0.2, FixedDuration); err != nil {
		t.Fatal(err)
	}
	if f.layer.TargetWeight() != 1 {
		t.Errorf("layer target = %v, want 1", f.layer.TargetWeight())
	}
	f.tick(t, 0.1, 10)
	if f.layer.Weight() != 1 || f.layer.CurrentState() != b {
		t.Fatalf("layer=%v current=%v, want b at full layer weight", f.layer.Weight(), f.layer.CurrentState())
	}
	if !b.IsPlaying() || b.Weight() != 1 || a.IsPlaying() || a.Weight() != 0 {
		t.Errorf("a=%v/%v b=%v/%v, want b playing alone", a.Weight(), a.IsPlaying(), b.Weight(), b.IsPlaying())
	}
}

func TestGraph_MaxLayers(t *testing.T) {
	f := newFixture(t, WithMaxLayers(1))
	_, err := f.g.AddLayer("extra")
	if !errors.Is(err, primitives.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}
