// Package extensibility provides pluggable callback invokers and command
// sources for a core.Graph.
package extensibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/comalice/blendx/internal/primitives"
)

// RecoveringInvoker runs callbacks and converts a panic into a
// *primitives.PanicError.
type RecoveringInvoker struct{}

// Invoke runs fn on behalf of source.
func (RecoveringInvoker) Invoke(_ string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &primitives.PanicError{Value: r}
		}
	}()
	fn()
	return nil
}

// LoggingInvoker wraps an Invoker and logs every callback with its duration.
type LoggingInvoker struct {
	inner  primitives.Invoker
	logger *slog.Logger
	level  slog.Level
}

// NewLoggingInvoker creates a LoggingInvoker around inner. A nil inner
// selects RecoveringInvoker and a nil logger selects slog.Default().
func NewLoggingInvoker(inner primitives.Invoker, logger *slog.Logger) *LoggingInvoker {
	if inner == nil {
		inner = RecoveringInvoker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInvoker{inner: inner, logger: logger, level: slog.LevelDebug}
}

// WithLevel sets the level used for successful callbacks. Failures are
// always logged at Warn.
func (i *LoggingInvoker) WithLevel(level slog.Level) *LoggingInvoker {
	i.level = level
	return i
}

// Invoke logs before and after delegating to the inner invoker.
func (i *LoggingInvoker) Invoke(source string, fn func()) error {
	start := time.Now()
	err := i.inner.Invoke(source, fn)
	elapsed := time.Since(start)
	if err != nil {
		i.logger.Warn("callback failed", "source", source, "duration", elapsed, "err", err)
		return err
	}
	i.logger.Log(context.Background(), i.level, "callback", "source", source, "duration", elapsed)
	return nil
}
