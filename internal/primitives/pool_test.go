package primitives

import (
	"errors"
	"testing"
)

type counter struct{ n int }

func (c *counter) Reset()        { c.n = 0 }
func (c *counter) IsReset() bool { return c.n == 0 }

func TestPoolReuse(t *testing.T) {
	p := NewPool(func() *counter { return &counter{} }, 2)
	a := p.Acquire()
	a.n = 5
	p.Release(a)
	if p.Idle() != 1 {
		t.Fatalf("Idle() = %d, want 1", p.Idle())
	}
	b := p.Acquire()
	if b != a {
		t.Error("expected the released value back")
	}
	if b.n != 0 {
		t.Errorf("released value not reset: %d", b.n)
	}
	if p.Created() != 1 {
		t.Errorf("Created() = %d, want 1", p.Created())
	}
}

func TestPoolMaxFree(t *testing.T) {
	p := NewPool(func() *counter { return &counter{} }, 1)
	a, b := p.Acquire(), p.Acquire()
	p.Release(a)
	p.Release(b)
	if p.Idle() != 1 {
		t.Errorf("Idle() = %d, want 1", p.Idle())
	}
}

func TestPoolAcquireAssertsReset(t *testing.T) {
	p := NewPool(func() *counter { return &counter{} }, 0)
	a := p.Acquire()
	p.Release(a)
	a.n = 3 // mutated while pooled

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrInvalidArgument) || !IsProgrammerError(err) {
			t.Fatalf("expected programmer error panic, got %v", r)
		}
	}()
	p.Acquire()
}
