// Package testutil runs the same graph scenario against manual ticking and
// the realtime runtime.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/realtime"
)

// ErrTimeout is returned by Advance when the ticks do not complete in time.
var ErrTimeout = errors.New("timed out waiting for ticks")

// RuntimeAdapter provides a common interface for manually ticked graphs
// and graphs driven by a realtime.Runtime, so one test suite covers both.
type RuntimeAdapter interface {
	Start(ctx context.Context) error
	Stop() error
	// Send queues a command for the next tick.
	Send(cmd core.Command) error
	// Do runs fn on the goroutine that owns the graph.
	Do(fn func(g *core.Graph) error) error
	// Advance returns once at least n more ticks have completed.
	Advance(n int, timeout time.Duration) error
	// DeltaTime is the time step of one tick in seconds.
	DeltaTime() float64
}

// ManualAdapter ticks the graph synchronously inside Advance.
type ManualAdapter struct {
	g     *core.Graph
	dt    float64
	mu    sync.Mutex
	queue []core.Command
}

// NewManualAdapter creates an adapter that advances g by dt per tick.
func NewManualAdapter(g *core.Graph, dt float64) *ManualAdapter {
	return &ManualAdapter{g: g, dt: dt}
}

func (a *ManualAdapter) Start(context.Context) error { return nil }
func (a *ManualAdapter) Stop() error                 { return nil }
func (a *ManualAdapter) DeltaTime() float64          { return a.dt }

func (a *ManualAdapter) Send(cmd core.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(a.queue, cmd)
	return nil
}

func (a *ManualAdapter) Do(fn func(g *core.Graph) error) error {
	return fn(a.g)
}

func (a *ManualAdapter) Advance(n int, _ time.Duration) error {
	for i := 0; i < n; i++ {
		a.mu.Lock()
		queue := a.queue
		a.queue = nil
		a.mu.Unlock()
		for _, cmd := range queue {
			a.g.Apply(cmd)
		}
		if err := a.g.Tick(a.dt); err != nil {
			return err
		}
	}
	return nil
}

// TickBasedAdapter wraps a realtime.Runtime.
type TickBasedAdapter struct {
	rt       *realtime.Runtime
	tickRate time.Duration
}

// NewTickBasedAdapter creates a runtime for g ticking at tickRate.
func NewTickBasedAdapter(g *core.Graph, tickRate time.Duration) *TickBasedAdapter {
	return &TickBasedAdapter{
		rt:       realtime.NewRuntime(g, realtime.Config{TickRate: tickRate}),
		tickRate: tickRate,
	}
}

func (a *TickBasedAdapter) Start(ctx context.Context) error { return a.rt.Start(ctx) }
func (a *TickBasedAdapter) Stop() error                     { return a.rt.Stop() }
func (a *TickBasedAdapter) DeltaTime() float64              { return a.tickRate.Seconds() }

func (a *TickBasedAdapter) Send(cmd core.Command) error { return a.rt.Send(cmd) }

func (a *TickBasedAdapter) Do(fn func(g *core.Graph) error) error {
	return a.rt.Call(context.Background(), fn)
}

// Advance polls the tick counter. Commands sent before Advance are applied
// on the first of the awaited ticks.
func (a *TickBasedAdapter) Advance(n int, timeout time.Duration) error {
	target := a.rt.TickNumber() + uint64(n)
	deadline := time.Now().Add(timeout)
	for a.rt.TickNumber() < target {
		if time.Now().After(deadline) {
			return fmt.Errorf("advance %d ticks: %w", n, ErrTimeout)
		}
		time.Sleep(a.tickRate / 4)
	}
	return nil
}

var (
	_ RuntimeAdapter = (*ManualAdapter)(nil)
	_ RuntimeAdapter = (*TickBasedAdapter)(nil)
)
