// Command blendx-demo loads a rig, plays a script of cross-fades on it
// without a renderer and prints the events the rig fires.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/comalice/blendx"
	"github.com/comalice/blendx/internal/config"
	"github.com/comalice/blendx/internal/core"
	"github.com/comalice/blendx/internal/ctxlog"
	"github.com/comalice/blendx/internal/extensibility"
	"github.com/comalice/blendx/internal/primitives"
	"github.com/comalice/blendx/internal/production"
	"github.com/comalice/blendx/internal/simtrack"
)

const defaultDT = 1.0 / 60

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outW io.Writer, args []string) error {
	opts, shouldExit, err := parseArgs(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := newLogger(outW, opts)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	cfg, err := loadRig(ctx, opts.rigPath)
	if err != nil {
		return err
	}
	dt := opts.dt
	if dt == 0 {
		d, err := cfg.Scheduler.TickDuration()
		if err != nil {
			return err
		}
		dt = d.Seconds()
	}
	if dt == 0 {
		dt = defaultDT
	}

	events := make(chan primitives.FiredEvent, 256)
	publisher := production.NewChannelPublisher(events)
	defer publisher.Close()

	graphOpts := []core.Option{
		core.WithLogger(logger),
		core.WithPublisher(publisher),
		core.WithVisualizer(&production.DefaultVisualizer{}),
		core.WithInvoker(extensibility.NewLoggingInvoker(extensibility.RecoveringInvoker{}, logger)),
		core.WithErrorHandler(func(err error) { logger.Warn("command failed", "err", err) }),
	}
	if opts.snapshotDir != "" {
		p, err := newPersister(opts.snapshotDir, opts.snapshotFormat)
		if err != nil {
			return err
		}
		graphOpts = append(graphOpts, core.WithPersister(p))
	}

	rig, err := blendx.NewRig(simtrack.NewHost(), cfg, nil, graphOpts...)
	if err != nil {
		return err
	}
	g := rig.Graph()
	defer g.Destroy()

	script := append([]step(nil), opts.script...)
	sort.SliceStable(script, func(i, j int) bool { return script[i].tick < script[j].tick })

	fmt.Fprintf(outW, "rig %s (version %s): %d ticks of %.4fs\n", cfg.ID, rig.Version(), opts.ticks, dt)
	for tick := 0; tick < opts.ticks; tick++ {
		for len(script) > 0 && script[0].tick == tick {
			st := script[0]
			script = script[1:]
			logger.Info("command", "tick", tick, "state", st.key, "duration", st.duration, "mode", st.mode)
			g.Apply(rig.Command(st.key, st.duration, st.mode))
		}
		if err := g.Tick(dt); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		printEvents(outW, events)
	}
	if n := publisher.Dropped(); n > 0 {
		logger.Warn("events dropped", "count", n)
	}

	if opts.dot {
		dot, err := g.ExportDOT()
		if err != nil {
			return err
		}
		fmt.Fprintln(outW, dot)
	}
	if opts.snapshotDir != "" {
		if err := g.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintf(outW, "snapshot %s saved to %s\n", g.ID(), opts.snapshotDir)
	}
	return nil
}

func newLogger(w io.Writer, opts *options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.logLevel}
	if opts.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func loadRig(ctx context.Context, path string) (*primitives.RigConfig, error) {
	if path != "" {
		return config.Load(ctx, path)
	}
	return blendx.NewRigBuilder("demo").
		Motion("idle", 2, true).
		Motion("walk", 1, true).
		Motion("run", 0.6, true).
		Motion("jump", 0.8, false).
		Layer("base").
		State("idle", "idle").
		State("walk", "walk").Event("foot-left", 0).Event("foot-right", 0.5).
		State("run", "run").Event("foot-left", 0).Event("foot-right", 0.5).
		State("jump", "jump").Event("takeoff", 0.2).EndDefault("landed").
		Build()
}

func newPersister(dir, format string) (core.Persister, error) {
	if format == "json" {
		return production.NewJSONPersister(dir)
	}
	return production.NewYAMLPersister(dir)
}

func printEvents(w io.Writer, events <-chan primitives.FiredEvent) {
	for {
		select {
		case ev := <-events:
			kind := "event"
			if ev.End {
				kind = "end"
			}
			fmt.Fprintf(w, "frame %4d  %-5s %-12s %s@%.3f layer %d\n",
				ev.Frame, kind, ev.Name, ev.State, ev.NormalizedTime, ev.Layer)
		default:
			return
		}
	}
}
