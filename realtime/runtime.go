package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/internal/ctxlog"
	"github.com/comalice/blendx/internal/primitives"
)

var (
	// ErrQueueFull is returned by Send when the tick's command batch is full.
	ErrQueueFull = fmt.Errorf("command queue full: %w", primitives.ErrCapacityExceeded)
	// ErrNotRunning is returned when the runtime has not been started or
	// has been stopped.
	ErrNotRunning = errors.New("runtime not running")
)

// DefaultTickRate is 60 ticks per second.
const DefaultTickRate = 16667 * time.Microsecond

// Runtime ticks a graph at a fixed rate on its own goroutine.
type Runtime struct {
	graph    *core.Graph
	tickRate time.Duration
	dt       float64
	onTick   func(*core.Graph, uint64)
	logger   *slog.Logger

	batch   []CommandWithMeta
	batchMu sync.Mutex
	seq     uint64
	tickNum uint64
	running bool

	ticker     *time.Ticker
	tickCtx    context.Context
	tickCancel context.CancelFunc
	stopped    chan struct{}
}

// Config configures the runtime.
type Config struct {
	TickRate           time.Duration // fixed tick rate, also the time step
	MaxCommandsPerTick int           // command queue capacity (default: 1000)
	// OnTick, if set, runs on the tick goroutine after each graph tick.
	OnTick func(g *core.Graph, tick uint64)
	// Logger overrides the logger taken from the Start context.
	Logger *slog.Logger
}

// ConfigFrom builds a Config from rig scheduler settings.
func ConfigFrom(s *primitives.SchedulerConfig) (Config, error) {
	d, err := s.TickDuration()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{TickRate: d}
	if s != nil {
		cfg.MaxCommandsPerTick = s.MaxCommandsPerTick
	}
	return cfg, nil
}

// NewRuntime creates a runtime for g. The runtime owns g from Start until
// Stop returns.
func NewRuntime(g *core.Graph, cfg Config) *Runtime {
	if cfg.MaxCommandsPerTick <= 0 {
		cfg.MaxCommandsPerTick = 1000
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	return &Runtime{
		graph:    g,
		tickRate: cfg.TickRate,
		dt:       cfg.TickRate.Seconds(),
		onTick:   cfg.OnTick,
		logger:   cfg.Logger,
		batch:    make([]CommandWithMeta, 0, cfg.MaxCommandsPerTick),
		stopped:  make(chan struct{}),
	}
}

// Start begins tick-based execution.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	if rt.running || rt.tickCtx != nil {
		return errors.New("runtime already started")
	}
	if rt.logger == nil {
		rt.logger = ctxlog.FromContext(ctx)
	}
	rt.running = true
	rt.tickCtx, rt.tickCancel = context.WithCancel(ctx)
	rt.ticker = time.NewTicker(rt.tickRate)
	rt.logger.Info("runtime started", "graph", rt.graph.ID(), "tick_rate", rt.tickRate)
	go rt.tickLoop()
	return nil
}

// Stop stops the tick loop and waits for it to exit. Commands still queued
// are discarded.
func (rt *Runtime) Stop() error {
	rt.batchMu.Lock()
	started := rt.tickCancel != nil
	rt.batchMu.Unlock()
	if !started {
		return ErrNotRunning
	}
	rt.tickCancel()
	<-rt.stopped
	return nil
}

// Done is closed when the tick loop exits.
func (rt *Runtime) Done() <-chan struct{} { return rt.stopped }

func (rt *Runtime) tickLoop() {
	defer close(rt.stopped)
	defer rt.ticker.Stop()
	defer func() {
		rt.batchMu.Lock()
		rt.running = false
		dropped := len(rt.batch)
		rt.batch = rt.batch[:0]
		rt.batchMu.Unlock()
		rt.logger.Info("runtime stopped", "graph", rt.graph.ID(), "ticks", rt.TickNumber(), "dropped", dropped)
	}()

	for {
		select {
		case <-rt.tickCtx.Done():
			return
		case <-rt.ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						rt.logger.Error("tick panicked", "graph", rt.graph.ID(), "tick", rt.TickNumber(), "panic", r)
					}
				}()
				rt.processTick()
			}()

			rt.batchMu.Lock()
			rt.tickNum++
			n := rt.tickNum
			rt.batchMu.Unlock()
			if rt.onTick != nil {
				rt.onTick(rt.graph, n)
			}
		}
	}
}

// Send queues a command for the next tick. Safe for concurrent use.
func (rt *Runtime) Send(cmd core.Command) error {
	return rt.SendWithPriority(cmd, 0)
}

// SendWithPriority queues a command with priority; higher runs first.
func (rt *Runtime) SendWithPriority(cmd core.Command, priority int) error {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	if len(rt.batch) >= cap(rt.batch) {
		return ErrQueueFull
	}
	rt.batch = append(rt.batch, CommandWithMeta{
		Command:     cmd,
		SequenceNum: rt.seq,
		Priority:    priority,
	})
	rt.seq++
	return nil
}

// Call runs fn on the tick goroutine at the start of the next tick and
// waits for its result. A panic in fn is returned as a *primitives.PanicError.
func (rt *Runtime) Call(ctx context.Context, fn func(g *core.Graph) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rt.batchMu.Lock()
	running := rt.running
	rt.batchMu.Unlock()
	if !running {
		return ErrNotRunning
	}
	done := make(chan error, 1)
	err := rt.SendWithPriority(core.Command{
		Name: "call",
		Apply: func(g *core.Graph) error {
			err := safely(func() error { return fn(g) })
			done <- err
			return err
		},
	}, 0)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-rt.stopped:
		return ErrNotRunning
	}
}

// TickNumber returns the number of completed ticks.
func (rt *Runtime) TickNumber() uint64 {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	return rt.tickNum
}

// Graph returns the driven graph. Only touch it from OnTick or Call while
// the runtime is running.
func (rt *Runtime) Graph() *core.Graph { return rt.graph }

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &primitives.PanicError{Value: r}
		}
	}()
	return fn()
}
