// Options for configuring Graph instances.
package core

import (
	"log/slog"

	"github.com/comalice/blendx/internal/primitives"
)

// WithID names the graph in logs and snapshots.
func WithID(id string) Option {
	return func(g *Graph) {
		g.id = id
	}
}

// WithLogger configures the Graph with a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithErrorHandler receives every isolated callback failure as a
// *primitives.CallbackError. The default logs it.
func WithErrorHandler(fn func(error)) Option {
	return func(g *Graph) {
		g.onError = fn
	}
}

// WithInvoker configures how callbacks, updatables and commands are run.
func WithInvoker(inv primitives.Invoker) Option {
	return func(g *Graph) {
		if inv != nil {
			g.invoker = inv
		}
	}
}

// WithPublisher configures the Graph with a custom EventPublisher.
func WithPublisher(pb EventPublisher) Option {
	return func(g *Graph) {
		g.publisher = pb
	}
}

// WithPersister configures the Graph with a custom Persister.
func WithPersister(p Persister) Option {
	return func(g *Graph) {
		g.persister = p
	}
}

// WithVisualizer configures the Graph with a custom Visualizer.
func WithVisualizer(v Visualizer) Option {
	return func(g *Graph) {
		g.visualizer = v
	}
}

// WithCommandSource drains commands from s at the start of every update.
func WithCommandSource(s CommandSource) Option {
	return func(g *Graph) {
		g.commands = s
	}
}

// WithMaxLayers caps AddLayer.
func WithMaxLayers(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxLayers = n
		}
	}
}

// WithMaxWeightlessDepth caps the clone chain used by FromStart fades.
func WithMaxWeightlessDepth(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxWeightlessDepth = n
		}
	}
}

// WithMaxCommandsPerTick caps how many commands one update drains.
func WithMaxCommandsPerTick(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxCommandsPerTick = n
		}
	}
}

// WithKeepChildrenConnected keeps idle states connected to their layer
// mixer instead of disconnecting them.
func WithKeepChildrenConnected(keep bool) Option {
	return func(g *Graph) {
		g.keepChildrenConnected = keep
	}
}

// WithSchedulerConfig applies the limits of a rig file.
func WithSchedulerConfig(cfg *primitives.SchedulerConfig) Option {
	return func(g *Graph) {
		if cfg == nil {
			return
		}
		WithMaxLayers(cfg.MaxLayers)(g)
		WithMaxWeightlessDepth(cfg.MaxWeightlessDepth)(g)
		WithMaxCommandsPerTick(cfg.MaxCommandsPerTick)(g)
		g.keepChildrenConnected = cfg.KeepChildrenConnected
	}
}
