package core

import (
	"math"
	"testing"

	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/timeline"
)

func TestState_TimeCachedPerFrame(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	f.layer.Play(s)
	f.tick(t, 0.1, 1)

	tr := trackOf(s)
	reads := tr.TimeReads
	_ = s.Time()
	_ = s.Time()
	_ = s.NormalizedTime()
	if got := tr.TimeReads - reads; got != 1 {
		t.Errorf("track read %d times in one frame, want 1", got)
	}
	f.tick(t, 0.1, 1)
	_ = s.Time()
	if got := tr.TimeReads - reads; got != 2 {
		t.Errorf("track reads = %d after the next frame, want 2", got)
	}
}

func TestState_SetTimeWritesTwice(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	tr := trackOf(s)
	calls := tr.SetTimeCalls

	s.SetTime(0.5)
	if got := tr.SetTimeCalls - calls; got != 2 {
		t.Errorf("SetTime calls = %d, want 2", got)
	}
	if tr.Peek() != 0.5 || s.Time() != 0.5 {
		t.Errorf("track=%v state=%v, want 0.5", tr.Peek(), s.Time())
	}
}

func TestState_SetTimeDeferredInLatePass(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	tr := trackOf(s)

	var u *FuncUpdatable
	u = NewUpdatable("seek", func() error {
		s.SetTime(0.7)
		f.g.CancelUpdate(u)
		return nil
	})
	f.g.RequireLateUpdate(u)

	calls := tr.SetTimeCalls
	f.tick(t, 0.1, 1)
	if tr.SetTimeCalls != calls || tr.Peek() != 0 {
		t.Fatalf("track written during the late pass: calls=%d time=%v", tr.SetTimeCalls-calls, tr.Peek())
	}
	if s.Time() != 0.7 {
		t.Errorf("Time = %v, want the pending 0.7", s.Time())
	}

	f.tick(t, 0.1, 1)
	if got := tr.SetTimeCalls - calls; got != 2 {
		t.Errorf("SetTime calls = %d, want 2", got)
	}
	if tr.Peek() != 0.7 || s.Time() != 0.7 {
		t.Errorf("track=%v state=%v, want 0.7", tr.Peek(), s.Time())
	}
	if f.g.IsUpdateRequired(u) {
		t.Error("updatable should have cancelled itself")
	}
}

func TestState_NormalizedTime(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 2, false)
	s.SetNormalizedTime(0.25)
	if s.Time() != 0.5 || s.NormalizedTime() != 0.25 {
		t.Errorf("time=%v normalized=%v", s.Time(), s.NormalizedTime())
	}

	z := f.state(t, "pose", 0, false)
	z.SetTime(3)
	if z.NormalizedTime() != 0 {
		t.Errorf("zero-length normalized time = %v, want 0", z.NormalizedTime())
	}
}

func TestState_PlayAdvancesTime(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	f.layer.Play(s)
	f.tick(t, 0.1, 3)
	if got := s.Time(); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("Time = %v, want 0.3", got)
	}

	f.g.Pause()
	f.tick(t, 0.1, 3)
	if got := s.Time(); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("paused graph advanced to %v", got)
	}
}

func TestState_IsPlayingAndNotEnding(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	if s.IsPlayingAndNotEnding() {
		t.Error("stopped state reported as playing")
	}

	f.layer.Play(s)
	f.tick(t, 0.3, 3)
	if !s.IsPlayingAndNotEnding() {
		t.Errorf("ended early at %v", s.Time())
	}
	f.tick(t, 0.3, 1)
	if s.IsPlayingAndNotEnding() {
		t.Errorf("not ending at %v", s.Time())
	}

	s.SetSpeed(-1)
	s.SetTime(0.2)
	if !s.IsPlayingAndNotEnding() {
		t.Error("backwards play above 0 should not be ending")
	}
	f.tick(t, 0.3, 1)
	if s.IsPlayingAndNotEnding() {
		t.Errorf("backwards play below 0 should be ending, time %v", s.Time())
	}

	s.SetSpeed(1)
	s.Events().SetEnd("end", 0.5, func(timeline.Invocation) {})
	s.SetTime(0.4)
	if !s.IsPlayingAndNotEnding() {
		t.Error("before explicit end time")
	}
	s.SetTime(0.6)
	if s.IsPlayingAndNotEnding() {
		t.Error("after explicit end time")
	}
}

func TestState_Stop(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	f.layer.Play(s)
	f.tick(t, 0.25, 1)
	s.Stop()
	if s.Weight() != 0 || s.IsPlaying() || s.Time() != 0 {
		t.Errorf("weight=%v playing=%v time=%v", s.Weight(), s.IsPlaying(), s.Time())
	}
	f.tick(t, 0.25, 1)
	if trackOf(s).IsPlaying() {
		t.Error("track still playing")
	}
}

func TestState_IKForwarded(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	s.SetApplyIK(true, false)
	tr := trackOf(s)
	if !s.ApplyIK() || s.ApplyFootIK() || !tr.ApplyIK() || tr.ApplyFootIK() {
		t.Error("IK flags not forwarded")
	}
}

func TestState_ZeroValuePanics(t *testing.T) {
	var s State
	if s.IsValid() {
		t.Fatal("zero State is valid")
	}
	expectMisuse(t, primitives.ErrStaleHandle, func() { s.Weight() })
}

func TestState_InvalidTimePanics(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	expectMisuse(t, primitives.ErrInvalidArgument, func() { s.SetTime(math.NaN()) })
	expectMisuse(t, primitives.ErrInvalidArgument, func() { s.SetNormalizedTime(math.Inf(1)) })
}
