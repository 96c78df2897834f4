// FiredEvent is the immutable record of a timeline event that fired.
//
// FiredEvents are value types handed to publishers; consumers must not rely on
// any pointer identity. Use NewFiredEvent for construction.
package primitives

import "time"

type FiredEvent struct {
	Name           string    `json:"name" yaml:"name"`
	State          string    `json:"state" yaml:"state"`
	Layer          int       `json:"layer" yaml:"layer"`
	NormalizedTime float64   `json:"normalizedTime" yaml:"normalizedTime"`
	End            bool      `json:"end,omitempty" yaml:"end,omitempty"`
	Frame          uint64    `json:"frame" yaml:"frame"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewFiredEvent creates and returns a FiredEvent stamped with the current time.
func NewFiredEvent(name, state string, layer int, normalizedTime float64, end bool, frame uint64) FiredEvent {
	return FiredEvent{
		Name:           name,
		State:          state,
		Layer:          layer,
		NormalizedTime: normalizedTime,
		End:            end,
		Frame:          frame,
		Timestamp:      time.Now(),
	}
}
