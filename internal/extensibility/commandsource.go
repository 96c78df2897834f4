package extensibility

import (
	"sync"
	"time"

	"github.com/comalice/blendx/internal/core"
)

// ChannelCommandSource is a core.CommandSource backed by a Go channel.
// Commands sent on the channel are applied at the start of the next tick.
type ChannelCommandSource struct {
	ch chan core.Command
}

// NewChannelCommandSource wraps ch. The channel should be buffered; the
// graph drains it without blocking.
func NewChannelCommandSource(ch chan core.Command) *ChannelCommandSource {
	return &ChannelCommandSource{ch: ch}
}

// Commands returns the receive-only channel.
func (s *ChannelCommandSource) Commands() <-chan core.Command {
	return s.ch
}

// TimerCommandSource emits a command every interval. Commands are dropped
// when the buffer is full.
type TimerCommandSource struct {
	ch       chan core.Command
	next     func(n int) core.Command
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTimerCommandSource creates a TimerCommandSource that calls next with
// the tick count (starting at 0) every d and emits the result.
func NewTimerCommandSource(next func(n int) core.Command, d time.Duration) *TimerCommandSource {
	t := &TimerCommandSource{
		ch:     make(chan core.Command, 10),
		next:   next,
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TimerCommandSource) run() {
	defer t.ticker.Stop()
	for n := 0; ; {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- t.next(n):
				n++
			default:
				// full
			}
		case <-t.stop:
			return
		}
	}
}

func (t *TimerCommandSource) Commands() <-chan core.Command {
	return t.ch
}

// Stop stops the ticker. It is safe to call more than once. The channel is
// left open since the graph may still be draining it.
func (t *TimerCommandSource) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
