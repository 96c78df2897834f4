package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/comalice/blendx/internal/core"
)

// Director ticks many independent graphs once per frame on a shared worker
// pool. Add, Remove and Tick are safe for concurrent use, but a graph added
// to a director must not be ticked by anything else.
type Director struct {
	mu     sync.Mutex
	pool   worker.DynamicWorkerPool
	graphs []*core.Graph
	index  map[string]int
	frames uint64
	logger *slog.Logger
}

// DirectorConfig configures a Director.
type DirectorConfig struct {
	Workers int // pool size (default: 4)
	Logger  *slog.Logger
}

// NewDirector creates a director with a bounded pool of reusable workers.
func NewDirector(cfg DirectorConfig) *Director {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Director{
		// Queue size of 256 leaves headroom over typical graph counts;
		// idle workers exit after a second.
		pool:   worker.NewDynamicWorkerPool(cfg.Workers, 256, 1*time.Second),
		index:  make(map[string]int),
		logger: cfg.Logger,
	}
}

// Add registers g under its id.
func (d *Director) Add(g *core.Graph) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.index[g.ID()]; dup {
		return fmt.Errorf("graph %q already directed", g.ID())
	}
	d.index[g.ID()] = len(d.graphs)
	d.graphs = append(d.graphs, g)
	return nil
}

// Remove unregisters the graph with id and reports whether it was present.
func (d *Director) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return false
	}
	last := len(d.graphs) - 1
	d.graphs[i] = d.graphs[last]
	d.index[d.graphs[i].ID()] = i
	d.graphs[last] = nil
	d.graphs = d.graphs[:last]
	delete(d.index, id)
	return true
}

// Graph returns the graph registered under id.
func (d *Director) Graph(id string) (*core.Graph, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.graphs[i], true
}

func (d *Director) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.graphs)
}

// Frames returns the number of completed Tick calls.
func (d *Director) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Tick advances every graph by dt and waits for all of them. Failures of
// individual graphs are joined into the returned error; the other graphs
// still tick.
func (d *Director) Tick(dt float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A WaitGroup gives the per-frame barrier; the pool's own Wait blocks
	// until workers idle-exit.
	var wg sync.WaitGroup
	errs := make([]error, len(d.graphs))
	for i, g := range d.graphs {
		wg.Add(1)
		d.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				err := safely(func() error { return g.Tick(dt) })
				if err != nil {
					err = fmt.Errorf("graph %q: %w", g.ID(), err)
					errs[i] = err
				}
				return nil, err
			},
		})
	}
	wg.Wait()
	d.frames++

	err := errors.Join(errs...)
	if err != nil {
		d.logger.Error("director frame failed", "frame", d.frames, "err", err)
	}
	return err
}

// Snapshots captures every graph after the last frame.
func (d *Director) Snapshots() []core.GraphSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.GraphSnapshot, len(d.graphs))
	for i, g := range d.graphs {
		out[i] = g.Snapshot()
	}
	return out
}
