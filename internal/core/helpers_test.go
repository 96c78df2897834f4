package core

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/simtrack"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	g      *Graph
	host   *simtrack.Host
	layer  Layer
	errors []error
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{host: simtrack.NewHost()}
	opts = append([]Option{
		WithLogger(quiet),
		WithErrorHandler(func(err error) { f.errors = append(f.errors, err) }),
	}, opts...)
	f.g = NewGraph(f.host, opts...)
	l, err := f.g.AddLayer("base")
	if err != nil {
		t.Fatal(err)
	}
	f.layer = l
	t.Cleanup(f.g.Destroy)
	return f
}

func (f *fixture) state(t *testing.T, name string, length float64, looping bool) State {
	t.Helper()
	s, err := f.layer.CreateStateWithKey(name, simtrack.NewClip(name, length, looping))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *fixture) tick(t *testing.T, dt float64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := f.g.Tick(dt); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}

func trackOf(s State) *simtrack.Track {
	return s.node("test").track.(*simtrack.Track)
}

func layerTrack(l Layer) *simtrack.Track {
	return l.node("test").track.(*simtrack.Track)
}

// expectMisuse runs fn and checks it panics with a ProgrammerError
// wrapping target.
func expectMisuse(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected panic with error, got %v", r)
		}
		var pe *primitives.ProgrammerError
		if !errors.As(err, &pe) || !errors.Is(err, target) {
			t.Fatalf("expected ProgrammerError wrapping %v, got %v", target, err)
		}
	}()
	fn()
}

var sortInts = cmpopts.SortSlices(func(a, b int) bool { return a < b })
