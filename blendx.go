// Package blendx is an animation-blending runtime. A Graph mixes layers of
// weighted states, fades between them over time and fires time-keyed
// events as playback progresses. The actual pose sampling is left to a
// TrackHost supplied by the caller; internal/simtrack provides an
// in-memory one.
//
// Rigs can be described declaratively (see RigBuilder and the rig file
// loaders) and instantiated on a graph with BuildRig or NewRig.
package blendx

import (
	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/internal/primitives"
)

type (
	Graph         = core.Graph
	Layer         = core.Layer
	State         = core.State
	Handle        = core.Handle
	Option        = core.Option
	FadeMode      = core.FadeMode
	Command       = core.Command
	GraphSnapshot = core.GraphSnapshot

	Track           = primitives.Track
	TrackHost       = primitives.TrackHost
	Motion          = primitives.Motion
	RigConfig       = primitives.RigConfig
	SchedulerConfig = primitives.SchedulerConfig
	FiredEvent      = primitives.FiredEvent
)

const (
	FixedSpeed          = core.FixedSpeed
	FixedDuration       = core.FixedDuration
	FromStart           = core.FromStart
	NormalizedSpeed     = core.NormalizedSpeed
	NormalizedDuration  = core.NormalizedDuration
	NormalizedFromStart = core.NormalizedFromStart
)

var (
	ErrInvalidArgument  = primitives.ErrInvalidArgument
	ErrReentrantUpdate  = primitives.ErrReentrantUpdate
	ErrTimelineModified = primitives.ErrTimelineModified
	ErrStaleHandle      = primitives.ErrStaleHandle
	ErrFrameOrder       = primitives.ErrFrameOrder
	ErrEventOutOfRange  = primitives.ErrEventOutOfRange
	ErrCapacityExceeded = primitives.ErrCapacityExceeded
	ErrUnknownState     = core.ErrUnknownState
)

// Graph options.
var (
	WithID                    = core.WithID
	WithLogger                = core.WithLogger
	WithErrorHandler          = core.WithErrorHandler
	WithInvoker               = core.WithInvoker
	WithPublisher             = core.WithPublisher
	WithPersister             = core.WithPersister
	WithVisualizer            = core.WithVisualizer
	WithCommandSource         = core.WithCommandSource
	WithMaxLayers             = core.WithMaxLayers
	WithMaxWeightlessDepth    = core.WithMaxWeightlessDepth
	WithMaxCommandsPerTick    = core.WithMaxCommandsPerTick
	WithKeepChildrenConnected = core.WithKeepChildrenConnected
	WithSchedulerConfig       = core.WithSchedulerConfig
)

// NewGraph creates a graph whose tracks are created by host.
func NewGraph(host TrackHost, opts ...Option) *Graph {
	return core.NewGraph(host, opts...)
}
