package primitives

// Resetter is implemented by values that can be recycled through a Pool.
type Resetter interface {
	Reset()
	IsReset() bool
}

// Pool is a free-list of reusable values owned by a single goroutine.
// Values are reset on Release and asserted reset on Acquire.
type Pool[T Resetter] struct {
	free    []T
	newFn   func() T
	maxFree int

	created int
}

// NewPool creates a Pool which keeps at most maxFree idle values.
// A maxFree of zero or less keeps every released value.
func NewPool[T Resetter](newFn func() T, maxFree int) *Pool[T] {
	return &Pool[T]{newFn: newFn, maxFree: maxFree}
}

// Acquire returns an idle value or creates a new one.
// Panics with a *ProgrammerError if a pooled value is not in its reset state.
func (p *Pool[T]) Acquire() T {
	n := len(p.free)
	if n == 0 {
		p.created++
		return p.newFn()
	}
	v := p.free[n-1]
	var zero T
	p.free[n-1] = zero
	p.free = p.free[:n-1]
	if !v.IsReset() {
		panic(Misuse("Pool.Acquire", ErrInvalidArgument, "pooled %T was modified after release", v))
	}
	return v
}

// Release resets v and returns it to the pool.
func (p *Pool[T]) Release(v T) {
	v.Reset()
	if !v.IsReset() {
		panic(Misuse("Pool.Release", ErrInvalidArgument, "%T did not reset", v))
	}
	if p.maxFree > 0 && len(p.free) >= p.maxFree {
		return
	}
	p.free = append(p.free, v)
}

// Idle returns the number of values waiting in the pool.
func (p *Pool[T]) Idle() int { return len(p.free) }

// Created returns how many values the pool has allocated.
func (p *Pool[T]) Created() int { return p.created }
