// Package timeline implements event timelines: a sequence of callbacks keyed
// by normalized time plus a distinguished end event, and the runner that
// decides which of them fire as a state's time advances.
//
// A forward step from p to c fires every event e with p <= e < c. Looping
// states also fire e+k for every whole loop k in that range, so an event at
// 0.5 fires twice while time advances from 0 to 2.5. Backward steps mirror
// this with negated times.
//
// The end event is separate from the list. It fires on every step whose
// current time is past the end time in the direction of travel, until the
// state is stopped or the end callback is cleared.
//
// Sequences must not be structurally modified while a runner walks them; the
// runner detects it through the sequence version and fails the update.
package timeline
