package timeline

import (
	"fmt"
	"math"

	"github.com/comalice/blendx/internal/primitives"
)

// Runner walks a Sequence as the time of its owner advances. Runners are
// pooled by the graph; Reset returns one to its zero state.
type Runner struct {
	seq    *Sequence
	source any
	label  string

	invoker primitives.Invoker
	report  func(source string, err error)

	previous    float64
	hasPrevious bool

	nextIndex  int
	seqVersion uint64
	wasForward bool
	indexValid bool

	// restarts counts Restart calls so a walk can tell that a callback
	// moved the time.
	restarts uint32
}

// NewRunner returns an unbound runner.
func NewRunner() *Runner { return &Runner{} }

// Bind attaches the runner to seq. source is passed to every callback and
// label names the owner in errors.
func (r *Runner) Bind(seq *Sequence, source any, label string) {
	r.seq = seq
	r.source = source
	r.label = label
	r.indexValid = false
}

// Configure sets how callbacks run and where isolated failures go. With a nil
// invoker callbacks are called directly and panics propagate.
func (r *Runner) Configure(invoker primitives.Invoker, report func(source string, err error)) {
	r.invoker = invoker
	r.report = report
}

// Sequence returns the bound sequence.
func (r *Runner) Sequence() *Sequence { return r.seq }

// Detach unbinds the sequence. A walk in progress stops after the current
// callback.
func (r *Runner) Detach() {
	r.seq = nil
	r.indexValid = false
}

// Restart forgets which events were passed and treats normalizedTime as the
// new starting point.
func (r *Runner) Restart(normalizedTime float64) {
	r.previous = normalizedTime
	r.hasPrevious = true
	r.indexValid = false
	r.restarts++
}

// PreviousTime returns the normalized time observed by the last update.
func (r *Runner) PreviousTime() float64 { return r.previous }

// Reset implements primitives.Resetter.
func (r *Runner) Reset() { *r = Runner{} }

// IsReset implements primitives.Resetter.
func (r *Runner) IsReset() bool {
	return r.seq == nil && r.source == nil && r.invoker == nil && r.report == nil &&
		!r.hasPrevious && !r.indexValid && r.nextIndex == 0 && r.previous == 0 && r.restarts == 0
}

// Update fires the events crossed since the previous update. t and length are
// in seconds; speed is the owner's effective speed and only matters for
// zero-length motions.
func (r *Runner) Update(t, length float64, looping bool, speed float64) error {
	if r.seq == nil || r.seq.IsEmpty() {
		return nil
	}
	if length == 0 {
		return r.updateZeroLength(speed)
	}

	current := t / length
	if !r.hasPrevious {
		r.Restart(current)
		return nil
	}
	if current == r.previous {
		return nil
	}

	restarts := r.restarts
	if err := r.checkGeneralEvents(current, looping); err != nil || r.interrupted(restarts) {
		return err
	}
	if r.seq.end.Callback != nil {
		forward := current > r.previous
		end := r.seq.NormalizedEndTime(forward)
		if (forward && current > end) || (!forward && current < end) {
			if err := r.fire(r.seq.end, true); err != nil {
				return err
			}
			if r.interrupted(restarts) {
				return nil
			}
		}
	}
	r.previous = current
	return nil
}

// interrupted reports whether a callback detached or restarted the runner.
func (r *Runner) interrupted(restarts uint32) bool {
	return r.seq == nil || r.restarts != restarts
}

func (r *Runner) checkGeneralEvents(current float64, looping bool) error {
	count := len(r.seq.events)
	if count == 0 {
		r.nextIndex = 0
		return nil
	}

	dir, step := 1.0, 1
	if current < r.previous {
		dir, step = -1, -1
	}
	if err := r.validateNextIndex(dir > 0, looping); err != nil {
		return err
	}

	prev, cur := r.previous*dir, current*dir

	if !looping {
		for r.nextIndex >= 0 && r.nextIndex < count {
			e := r.seq.events[r.nextIndex]
			if cur <= e.NormalizedTime*dir {
				return nil
			}
			if err := r.fire(e, false); err != nil {
				return err
			}
			ok, err := r.advance(count, step, false)
			if !ok {
				return err
			}
		}
		return nil
	}

	delta := loopDelta(prev, cur, r.seq.events[r.nextIndex].NormalizedTime*dir)
	if delta <= 0 {
		return nil
	}

	start := r.nextIndex
	// Every loop after the first passes all events, no need to check times.
	for extra := delta - 1; extra > 0; extra-- {
		for {
			if err := r.fire(r.seq.events[r.nextIndex], false); err != nil {
				return err
			}
			ok, err := r.advance(count, step, true)
			if !ok {
				return err
			}
			if r.nextIndex == start {
				break
			}
		}
	}

	for {
		if err := r.fire(r.seq.events[r.nextIndex], false); err != nil {
			return err
		}
		ok, err := r.advance(count, step, true)
		if !ok {
			return err
		}
		if r.nextIndex == start {
			return nil
		}
		if loopDelta(prev, cur, r.seq.events[r.nextIndex].NormalizedTime*dir) != delta {
			return nil
		}
	}
}

// validateNextIndex recomputes the next event index by linear scan when the
// play direction or the sequence changed. Linear on purpose: sequences are
// short and ties must keep insertion order.
func (r *Runner) validateNextIndex(forward, looping bool) error {
	if r.indexValid && r.wasForward == forward && r.seqVersion == r.seq.version {
		return nil
	}
	if err := r.seq.AssertNormalizedTimes(looping, r.label); err != nil {
		r.indexValid = false
		return err
	}
	r.wasForward = forward
	r.seqVersion = r.seq.version
	r.indexValid = true

	count := len(r.seq.events)
	prev := r.previous
	if looping {
		prev = wrap01(prev)
	}
	if forward {
		r.nextIndex = 0
		for r.seq.events[r.nextIndex].NormalizedTime < prev {
			r.nextIndex++
			if r.nextIndex >= count {
				if looping {
					r.nextIndex = 0
				}
				break
			}
		}
		return nil
	}
	r.nextIndex = count - 1
	for r.seq.events[r.nextIndex].NormalizedTime > prev {
		r.nextIndex--
		if r.nextIndex < 0 {
			if looping {
				r.nextIndex = count - 1
			}
			break
		}
	}
	return nil
}

// advance moves to the next event after a callback. It returns false when the
// walk must stop: the sequence was detached (nil error) or structurally
// modified (ErrTimelineModified).
func (r *Runner) advance(count, step int, wrap bool) (bool, error) {
	if r.seq == nil || !r.indexValid {
		return false, nil
	}
	if r.seq.version != r.seqVersion {
		r.indexValid = false
		return false, primitives.Misuse("Runner.Update", primitives.ErrTimelineModified,
			"%s: events were added or removed by a callback", r.label)
	}
	r.nextIndex += step
	if wrap {
		if r.nextIndex < 0 {
			r.nextIndex = count - 1
		} else if r.nextIndex >= count {
			r.nextIndex = 0
		}
	}
	return true, nil
}

// updateZeroLength fires every event and then the end event once per update
// while the owner is moving, since normalized time is undefined.
func (r *Runner) updateZeroLength(speed float64) error {
	if speed == 0 {
		return nil
	}
	restarts := r.restarts
	if count := len(r.seq.events); count > 0 {
		start, step := 0, 1
		if speed < 0 {
			start, step = count-1, -1
		}
		r.nextIndex = start
		r.seqVersion = r.seq.version
		r.indexValid = true
		for {
			if err := r.fire(r.seq.events[r.nextIndex], false); err != nil {
				return err
			}
			ok, err := r.advance(count, step, true)
			if !ok {
				return err
			}
			if r.nextIndex == start {
				break
			}
		}
		// The cached index is meaningless without a normalized time.
		r.indexValid = false
	}
	if !r.interrupted(restarts) && r.seq.end.Callback != nil {
		if err := r.fire(r.seq.end, true); err != nil {
			return err
		}
	}
	return nil
}

// fire runs one callback. Failures are reported and swallowed, except
// programmer errors, which are returned and end the walk.
func (r *Runner) fire(e Event, end bool) error {
	inv := Invocation{Name: e.Name, NormalizedTime: e.NormalizedTime, End: end, Source: r.source}
	if r.invoker == nil {
		e.Callback(inv)
		return nil
	}
	source := e.Name
	if r.label != "" {
		source = r.label + "/" + e.Name
	}
	err := r.invoker.Invoke(source, func() { e.Callback(inv) })
	if err == nil {
		return nil
	}
	if primitives.IsProgrammerError(err) {
		r.indexValid = false
		return fmt.Errorf("event %s: %w", source, err)
	}
	if r.report != nil {
		r.report(source, err)
	}
	return nil
}

// loopDelta counts the repetitions e+k of an event time with p <= e+k < c.
func loopDelta(p, c, e float64) int {
	return int(math.Ceil(c-e) - math.Ceil(p-e))
}

// wrap01 maps t into [0, 1).
func wrap01(t float64) float64 {
	w := t - math.Floor(t)
	if w >= 1 {
		return 0
	}
	return w
}
