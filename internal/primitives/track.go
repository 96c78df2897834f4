package primitives

// Track is the render-graph primitive a blend node drives. It is an opaque
// time source that can be played, paused, scrubbed and mixed into a parent.
//
// Mixer tracks expose numbered input ports; ConnectInput, DisconnectInput and
// SetInputWeight are called on the parent with the child's port index.
type Track interface {
	Play()
	Pause()
	IsPlaying() bool

	Time() float64
	// SetTime moves the local time. Callers that must not trigger the
	// motion's own embedded events apply the same value twice.
	SetTime(t float64)

	Speed() float64
	SetSpeed(s float64)

	ConnectInput(port int, input Track)
	DisconnectInput(port int)
	SetInputWeight(port int, weight float64)

	IsValid() bool
	Destroy()
}

// TrackHost creates mixer tracks for the graph root and for each layer.
type TrackHost interface {
	NewMixer() Track
}

// Evaluator is implemented by hosts that can advance their own render graph.
// When the Graph is configured with such a host, Update evaluates it between
// the early and late passes.
type Evaluator interface {
	Evaluate(dt float64)
}

// IKTrack is implemented by tracks that forward IK flags to the sampler.
type IKTrack interface {
	SetApplyIK(enabled bool)
	SetApplyFootIK(enabled bool)
}

// Motion is a clip or asset that a State plays.
type Motion interface {
	// Length is the duration in seconds at speed 1.
	Length() float64
	IsLooping() bool
	// CreateTrack returns a new track bound to this motion.
	CreateTrack(host TrackHost) Track
}

// NamedMotion is implemented by motions that can report a stable name, used
// as the default registration key and in visualisations.
type NamedMotion interface {
	Motion
	Name() string
}

// Invoker runs an isolated callback on behalf of source and reports a
// failure, including a recovered panic, as an error instead of unwinding.
type Invoker interface {
	Invoke(source string, fn func()) error
}
