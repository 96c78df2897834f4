package core

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/simtrack"
)

func listOf(items ...int) *indexedList[int] {
	l := newIndexedList[int]()
	for _, v := range items {
		l.add(v)
	}
	return &l
}

func TestIndexedList_MostRecentFirst(t *testing.T) {
	l := listOf(1, 2, 3)
	var got []int
	if err := l.each("test", func(v int) bool { got = append(got, v); return true }); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 2, 1}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestIndexedList_RemoveDuringIteration(t *testing.T) {
	tests := []struct {
		name    string
		items   []int
		at      int   // value being visited when removing
		remove  []int // values removed at that point
		visited []int // expected visits, any order
	}{
		{"self", []int{1, 2, 3, 4}, 3, []int{3}, []int{1, 2, 3, 4}},
		{"pending", []int{1, 2, 3, 4}, 4, []int{1}, []int{2, 3, 4}},
		{"pending neighbour", []int{1, 2, 3, 4}, 3, []int{2}, []int{1, 3, 4}},
		{"processed", []int{1, 2, 3, 4}, 2, []int{4}, []int{1, 2, 3, 4}},
		{"self and pending", []int{1, 2, 3, 4, 5}, 4, []int{4, 1, 2}, []int{3, 4, 5}},
		{"everything", []int{1, 2, 3}, 3, []int{1, 2, 3}, []int{3}},
		{"last pending while current is last", []int{1, 2}, 2, []int{1}, []int{2}},
		{"self at end then pending", []int{1, 2, 3, 4}, 4, []int{4, 1}, []int{2, 3, 4}},
		{"self at end then pending neighbour", []int{1, 2, 3, 4}, 4, []int{4, 3}, []int{1, 2, 4}},
		{"self mid then pending", []int{1, 2, 3, 4, 5}, 3, []int{3, 1}, []int{2, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listOf(tt.items...)
			seen := map[int]int{}
			err := l.each("test", func(v int) bool {
				seen[v]++
				if v == tt.at {
					for _, r := range tt.remove {
						l.remove(r)
					}
				}
				return true
			})
			if err != nil {
				t.Fatal(err)
			}
			for v, n := range seen {
				if n != 1 {
					t.Errorf("%d visited %d times", v, n)
				}
			}
			var got []int
			for v := range seen {
				got = append(got, v)
			}
			if diff := cmp.Diff(tt.visited, got, sortInts); diff != "" {
				t.Errorf("visited (-want +got):\n%s", diff)
			}
			for _, r := range tt.remove {
				if l.contains(r) {
					t.Errorf("%d still present", r)
				}
			}
			if want := len(tt.items) - len(tt.remove); l.len() != want {
				t.Errorf("len = %d, want %d", l.len(), want)
			}
			for i, v := range l.items {
				if l.index[v] != i {
					t.Errorf("index of %d = %d, stored at %d", v, l.index[v], i)
				}
			}
		})
	}
}

func TestIndexedList_RandomRemovals(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 2000; trial++ {
		n := 1 + rng.Intn(8)
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		l := listOf(items...)
		seen := map[int]int{}
		dropped := map[int]bool{}
		err := l.each("test", func(v int) bool {
			seen[v]++
			for k := rng.Intn(3); k > 0; k-- {
				r := rng.Intn(n)
				if l.remove(r) && seen[r] == 0 {
					dropped[r] = true
				}
			}
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range items {
			switch {
			case dropped[v] && seen[v] != 0:
				t.Fatalf("trial %d: %d visited after removal", trial, v)
			case !dropped[v] && seen[v] != 1:
				t.Fatalf("trial %d: %d visited %d times", trial, v, seen[v])
			}
		}
		if len(l.items) != len(l.index) {
			t.Fatalf("trial %d: %d items, %d indexed", trial, len(l.items), len(l.index))
		}
		for i, v := range l.items {
			if l.index[v] != i {
				t.Fatalf("trial %d: index of %d = %d, stored at %d", trial, v, l.index[v], i)
			}
		}
	}
}

func TestIndexedList_AddDuringIteration(t *testing.T) {
	l := listOf(1)
	var got []int
	_ = l.each("test", func(v int) bool {
		got = append(got, v)
		l.add(2)
		return true
	})
	if diff := cmp.Diff([]int{1}, got); diff != "" {
		t.Errorf("first pass (-want +got):\n%s", diff)
	}
	got = nil
	_ = l.each("test", func(v int) bool { got = append(got, v); return true })
	if diff := cmp.Diff([]int{2, 1}, got); diff != "" {
		t.Errorf("second pass (-want +got):\n%s", diff)
	}
}

func TestIndexedList_Reentrant(t *testing.T) {
	l := listOf(1)
	var inner error
	_ = l.each("outer", func(int) bool {
		inner = l.each("inner", func(int) bool { return true })
		return true
	})
	if !errors.Is(inner, primitives.ErrReentrantUpdate) {
		t.Errorf("expected ErrReentrantUpdate, got %v", inner)
	}
}

func TestGraph_ReentrantTick(t *testing.T) {
	f := newFixture(t)
	var inner error
	f.g.RequireEarlyUpdate(NewUpdatable("recurse", func() error {
		inner = f.g.Tick(0.1)
		return nil
	}))
	if err := f.g.Tick(0.1); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, primitives.ErrReentrantUpdate) || !primitives.IsProgrammerError(inner) {
		t.Errorf("expected a reentrancy ProgrammerError, got %v", inner)
	}
	if f.g.FrameID() != 1 {
		t.Errorf("FrameID = %d, want 1", f.g.FrameID())
	}
}

func TestGraph_FrameOrder(t *testing.T) {
	f := newFixture(t)
	if err := f.g.Update(0.1, 5); err != nil {
		t.Fatal(err)
	}
	for _, id := range []uint64{5, 4} {
		if err := f.g.Update(0.1, id); !errors.Is(err, primitives.ErrFrameOrder) {
			t.Errorf("frame %d: expected ErrFrameOrder, got %v", id, err)
		}
	}
	if err := f.g.Update(-1, 6); !errors.Is(err, primitives.ErrInvalidArgument) {
		t.Errorf("negative dt: got %v", err)
	}
}

func TestGraph_FrameAdvancesBetweenPasses(t *testing.T) {
	f := newFixture(t)
	var early, late uint64
	f.g.RequireEarlyUpdate(NewUpdatable("early", func() error { early = f.g.FrameID(); return nil }))
	f.g.RequireLateUpdate(NewUpdatable("late", func() error { late = f.g.FrameID(); return nil }))
	f.tick(t, 0.1, 3)
	if early != 2 || late != 3 {
		t.Errorf("early saw %d, late saw %d; want 2 and 3", early, late)
	}
	if f.host.Evaluations != 3 {
		t.Errorf("Evaluations = %d, want 3", f.host.Evaluations)
	}
}

func TestGraph_SplitPasses(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	f.layer.Play(s)
	if err := f.g.EarlyUpdate(0.1); err != nil {
		t.Fatal(err)
	}
	f.host.Evaluate(0.1)
	if err := f.g.LateUpdate(7); err != nil {
		t.Fatal(err)
	}
	if f.g.FrameID() != 7 || s.Time() != 0.1 {
		t.Errorf("frame=%d time=%v", f.g.FrameID(), s.Time())
	}
}

func TestGraph_UpdatableFailuresIsolated(t *testing.T) {
	f := newFixture(t)
	ran := 0
	f.g.RequireEarlyUpdate(NewUpdatable("ok-1", func() error { ran++; return nil }))
	f.g.RequireEarlyUpdate(NewUpdatable("fails", func() error { return errors.New("nope") }))
	f.g.RequireEarlyUpdate(NewUpdatable("panics", func() error { panic("boom") }))
	f.g.RequireEarlyUpdate(NewUpdatable("ok-2", func() error { ran++; return nil }))

	f.tick(t, 0.1, 1)
	if ran != 2 {
		t.Errorf("%d healthy updatables ran, want 2", ran)
	}
	var sources []string
	for _, err := range f.errors {
		var ce *primitives.CallbackError
		if !errors.As(err, &ce) {
			t.Fatalf("unexpected report %v", err)
		}
		sources = append(sources, ce.Source)
	}
	if diff := cmp.Diff([]string{"panics", "fails"}, sources); diff != "" {
		t.Errorf("reported sources (-want +got):\n%s", diff)
	}
}

func TestGraph_ProgrammerErrorAborts(t *testing.T) {
	f := newFixture(t)
	s := f.state(t, "a", 1, false)
	f.g.RequireLateUpdate(NewUpdatable("bad", func() error {
		s.SetWeight(-1)
		return nil
	}))
	err := f.g.Tick(0.1)
	if !errors.Is(err, primitives.ErrInvalidArgument) {
		t.Fatalf("expected the misuse to abort the update, got %v", err)
	}
	if len(f.errors) != 0 {
		t.Error("programmer errors must not be swallowed")
	}
}

type chanSource chan Command

func (c chanSource) Commands() <-chan Command { return c }

func TestGraph_Commands(t *testing.T) {
	src := make(chanSource, 8)
	f := newFixture(t, WithCommandSource(src), WithMaxCommandsPerTick(2))
	a := f.state(t, "a", 1, false)
	f.state(t, "b", 1, false)

	src <- PlayCommand(0, "a")
	src <- PlayCommand(0, "missing")
	src <- CrossFadeCommand(0, "b", 0.5, FixedDuration)
	f.tick(t, 0.1, 1)

	if !a.IsPlaying() || f.layer.CurrentState() != a {
		t.Error("play command not applied")
	}
	if len(f.errors) != 1 || !errors.Is(f.errors[0], ErrUnknownState) {
		t.Errorf("expected one unknown-state report, got %v", f.errors)
	}
	if len(src) != 1 {
		t.Fatalf("%d commands left, want 1 deferred to the next tick", len(src))
	}

	f.tick(t, 0.1, 1)
	if cur := f.layer.CurrentState(); cur.Key() != "b" {
		t.Errorf("current = %v, want b", cur)
	}

	src <- SetSpeedCommand(0.5)
	src <- StopCommand(0)
	f.tick(t, 0.1, 1)
	if f.g.Speed() != 0.5 || f.layer.Weight() != 0 {
		t.Error("speed or stop command not applied")
	}
}

func TestGraph_NodeRelease(t *testing.T) {
	host := simtrack.NewHost()
	g := NewGraph(host, WithLogger(quiet))
	l, err := g.AddLayer("base")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		s, err := l.CreateStateWithKey(fmt.Sprint(i), simtrack.NewClip("c", 1, false))
		if err != nil {
			t.Fatal(err)
		}
		s.Events()
	}
	if g.NodeCount() != 4 {
		t.Fatalf("NodeCount = %d, want 4", g.NodeCount())
	}
	g.Destroy()
	if g.NodeCount() != 0 || host.LiveTracks() != 0 {
		t.Errorf("nodes=%d tracks=%d after Destroy", g.NodeCount(), host.LiveTracks())
	}
	if g.runners.Idle() != 3 {
		t.Errorf("idle runners = %d, want 3", g.runners.Idle())
	}
	if err := g.Tick(0.1); !errors.Is(err, primitives.ErrStaleHandle) {
		t.Errorf("tick after Destroy: %v", err)
	}
}

func TestArena_Generations(t *testing.T) {
	var a arena
	h1 := a.alloc(&node{})
	a.release(h1)
	h2 := a.alloc(&node{})
	if h1.index != h2.index || h1 == h2 {
		t.Fatalf("slot not reused with a new generation: %v %v", h1, h2)
	}
	if _, ok := a.get(h1); ok {
		t.Error("stale handle resolved")
	}
	if _, ok := a.get(Handle{}); ok {
		t.Error("zero handle resolved")
	}
	if a.len() != 1 {
		t.Errorf("len = %d", a.len())
	}
}
