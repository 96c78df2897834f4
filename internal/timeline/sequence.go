package timeline

import (
	"fmt"
	"math"

	"github.com/comalice/blendx/internal/primitives"
)

// Invocation describes the event being fired to its callback.
type Invocation struct {
	Name           string
	NormalizedTime float64
	End            bool
	Source         any
}

// Callback is invoked when an event fires.
type Callback func(Invocation)

// Event is a callback at a normalized time.
type Event struct {
	Name           string
	NormalizedTime float64
	Callback       Callback
}

// Sequence holds events sorted by normalized time. Ties keep insertion order.
type Sequence struct {
	events  []Event
	end     Event
	version uint64
}

// NewSequence creates an empty sequence whose end time is the
// direction-dependent default.
func NewSequence() *Sequence {
	return &Sequence{end: Event{NormalizedTime: math.NaN()}}
}

// Len returns the number of general events.
func (s *Sequence) Len() int { return len(s.events) }

// Version changes whenever the general event list is structurally modified.
func (s *Sequence) Version() uint64 { return s.version }

// Event returns the i-th event.
func (s *Sequence) Event(i int) Event { return s.events[i] }

// Events returns a copy of the general events in order.
func (s *Sequence) Events() []Event {
	return append([]Event(nil), s.events...)
}

// IsEmpty reports whether there is nothing to fire.
func (s *Sequence) IsEmpty() bool {
	return len(s.events) == 0 && s.end.Callback == nil
}

// Add inserts an event after every event with an equal or earlier time and
// returns its index.
// Panics with a *ProgrammerError if cb is nil or t is not finite.
func (s *Sequence) Add(name string, t float64, cb Callback) int {
	if cb == nil {
		panic(primitives.Misuse("Sequence.Add", primitives.ErrInvalidArgument, "event %q has a nil callback", name))
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		panic(primitives.Misuse("Sequence.Add", primitives.ErrInvalidArgument, "event %q time %v is not finite", name, t))
	}
	i := len(s.events)
	for i > 0 && s.events[i-1].NormalizedTime > t {
		i--
	}
	s.events = append(s.events, Event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = Event{Name: name, NormalizedTime: t, Callback: cb}
	s.version++
	return i
}

// AddUnique adds the event unless one with the same name is already
// registered at the same time.
func (s *Sequence) AddUnique(name string, t float64, cb Callback) (int, error) {
	for i, e := range s.events {
		if e.Name == name && e.NormalizedTime == t {
			return i, fmt.Errorf("event %q at %v already registered", name, t)
		}
	}
	return s.Add(name, t, cb), nil
}

// IndexOf returns the index of the first event with the given name, or -1.
func (s *Sequence) IndexOf(name string) int {
	for i, e := range s.events {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Remove deletes the i-th event.
func (s *Sequence) Remove(i int) {
	if i < 0 || i >= len(s.events) {
		panic(primitives.Misuse("Sequence.Remove", primitives.ErrInvalidArgument, "index %d out of range [0,%d)", i, len(s.events)))
	}
	copy(s.events[i:], s.events[i+1:])
	s.events[len(s.events)-1] = Event{}
	s.events = s.events[:len(s.events)-1]
	s.version++
}

// RemoveNamed deletes the first event with the given name.
func (s *Sequence) RemoveNamed(name string) bool {
	i := s.IndexOf(name)
	if i < 0 {
		return false
	}
	s.Remove(i)
	return true
}

// SetTime moves the i-th event and returns its new index.
func (s *Sequence) SetTime(i int, t float64) int {
	e := s.events[i]
	s.Remove(i)
	return s.Add(e.Name, t, e.Callback)
}

// SetCallback replaces the callback of the i-th event. The order is
// unaffected so the version is kept.
func (s *Sequence) SetCallback(i int, cb Callback) {
	if cb == nil {
		panic(primitives.Misuse("Sequence.SetCallback", primitives.ErrInvalidArgument, "nil callback"))
	}
	s.events[i].Callback = cb
}

// Clear removes every general event and the end callback.
func (s *Sequence) Clear() {
	if len(s.events) > 0 {
		clear(s.events)
		s.events = s.events[:0]
		s.version++
	}
	s.ClearEnd()
}

// End returns the end event.
func (s *Sequence) End() Event { return s.end }

// SetEnd sets the end event. A NaN time selects the default.
func (s *Sequence) SetEnd(name string, t float64, cb Callback) {
	s.end = Event{Name: name, NormalizedTime: t, Callback: cb}
}

// SetEndTime changes the end time and keeps the callback.
func (s *Sequence) SetEndTime(t float64) {
	s.end.NormalizedTime = t
}

// ClearEnd removes the end callback and restores the default time.
func (s *Sequence) ClearEnd() {
	s.end = Event{NormalizedTime: math.NaN()}
}

// NormalizedEndTime resolves the end time for a play direction.
func (s *Sequence) NormalizedEndTime(forward bool) float64 {
	if !math.IsNaN(s.end.NormalizedTime) {
		return s.end.NormalizedTime
	}
	if forward {
		return 1
	}
	return 0
}

// HasEndTime reports whether an explicit end time is set.
func (s *Sequence) HasEndTime() bool {
	return !math.IsNaN(s.end.NormalizedTime)
}

// AssertNormalizedTimes checks that a sequence used by a looping motion only
// holds events in [0, 1). owner identifies the sequence in the error.
func (s *Sequence) AssertNormalizedTimes(looping bool, owner string) error {
	if !looping {
		return nil
	}
	for i, e := range s.events {
		if e.NormalizedTime < 0 || e.NormalizedTime >= 1 {
			return primitives.Misuse("Sequence.AssertNormalizedTimes", primitives.ErrEventOutOfRange,
				"%s: event %d (%q) at %v must be in [0, 1) on a looping motion", owner, i, e.Name, e.NormalizedTime)
		}
	}
	return nil
}

// IsSorted reports whether the ordering invariant holds.
func (s *Sequence) IsSorted() bool {
	for i := 1; i < len(s.events); i++ {
		if s.events[i-1].NormalizedTime > s.events[i].NormalizedTime {
			return false
		}
	}
	return true
}
