package primitives

import (
	"errors"
	"fmt"
	"testing"
)

func TestProgrammerErrorWrapping(t *testing.T) {
	err := fmt.Errorf("update: %w", Misuse("Graph.Update", ErrReentrantUpdate, "frame %d", 3))
	if !errors.Is(err, ErrReentrantUpdate) {
		t.Error("errors.Is failed through wrapping")
	}
	if !IsProgrammerError(err) {
		t.Error("IsProgrammerError = false")
	}
	want := "update: Graph.Update: graph update is already in progress: frame 3"
	if err.Error() != want {
		t.Errorf("got %q want %q", err.Error(), want)
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	pe := &PanicError{Value: Misuse("Runner", ErrTimelineModified, "")}
	if !errors.Is(pe, ErrTimelineModified) {
		t.Error("panic value error not unwrapped")
	}
	if errors.Unwrap(&PanicError{Value: "boom"}) != nil {
		t.Error("non-error panic should not unwrap")
	}
	ce := &CallbackError{Source: "footstep", Frame: 9, Err: pe}
	if !errors.Is(ce, ErrTimelineModified) {
		t.Error("CallbackError does not unwrap")
	}
}
