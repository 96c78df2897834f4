package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/comalice/blendx/internal/core"
)

// ExitError carries a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// options is the parsed command line.
type options struct {
	rigPath        string
	script         []step
	ticks          int
	dt             float64
	dot            bool
	snapshotDir    string
	snapshotFormat string
	logLevel       slog.Level
	logFormat      string
}

// step is one scripted command: play or cross-fade to key at tick.
type step struct {
	tick     int
	key      string
	duration float64
	mode     core.FadeMode
}

const defaultScript = "idle@0,walk:0.25@30,run:0.25:fixed-speed@90,jump:0.1:from-start@150,idle:0.5@200"

// parseArgs processes command-line arguments. It returns the options, a
// boolean indicating a clean exit (help), or an ExitError.
func parseArgs(args []string, output io.Writer) (*options, bool, error) {
	fs := flag.NewFlagSet("blendx-demo", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `
blendx-demo - runs a scripted sequence of cross-fades on a rig, headless.

Usage:
  blendx-demo [options] [RIG_PATH]

Arguments:
  RIG_PATH
    Path to a .yaml, .yml, .hcl or .json rig file. A built-in rig is used
    when omitted.

Script:
  Comma separated steps KEY[:DURATION[:MODE]]@TICK, e.g. "walk:0.25@30".
  A zero or missing duration plays the state immediately.

Options:
`)
		fs.PrintDefaults()
	}

	rigFlag := fs.String("rig", "", "Path to the rig file.")
	scriptFlag := fs.String("script", defaultScript, "Scripted commands.")
	ticksFlag := fs.Int("ticks", 240, "Number of ticks to run.")
	dtFlag := fs.Float64("dt", 0, "Seconds per tick. 0 uses the rig's tick_rate or 1/60.")
	dotFlag := fs.Bool("dot", false, "Print the final graph as Graphviz DOT.")
	snapFlag := fs.String("snapshot-dir", "", "Directory to save the final snapshot in.")
	snapFormatFlag := fs.String("snapshot-format", "yaml", "Snapshot format. Options: 'yaml' or 'json'.")
	levelFlag := fs.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	formatFlag := fs.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	opts := &options{
		rigPath:        *rigFlag,
		ticks:          *ticksFlag,
		dt:             *dtFlag,
		dot:            *dotFlag,
		snapshotDir:    *snapFlag,
		snapshotFormat: strings.ToLower(*snapFormatFlag),
		logFormat:      strings.ToLower(*formatFlag),
	}
	if opts.rigPath == "" && fs.NArg() > 0 {
		opts.rigPath = fs.Arg(0)
	}
	if opts.ticks < 0 || opts.dt < 0 {
		return nil, false, &ExitError{Code: 2, Message: "ticks and dt must not be negative"}
	}
	if err := opts.logLevel.UnmarshalText([]byte(*levelFlag)); err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid log level %q", *levelFlag)}
	}
	if opts.logFormat != "text" && opts.logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid log format %q", *formatFlag)}
	}
	if opts.snapshotFormat != "yaml" && opts.snapshotFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid snapshot format %q", *snapFormatFlag)}
	}
	script, err := parseScript(*scriptFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	opts.script = script
	return opts, false, nil
}

func parseScript(s string) ([]step, error) {
	var steps []step
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		body, at, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("script step %q: missing @TICK", part)
		}
		tick, err := strconv.Atoi(at)
		if err != nil || tick < 0 {
			return nil, fmt.Errorf("script step %q: bad tick %q", part, at)
		}
		fields := strings.Split(body, ":")
		st := step{tick: tick, key: fields[0], mode: core.FixedDuration}
		if st.key == "" || len(fields) > 3 {
			return nil, fmt.Errorf("script step %q: want KEY[:DURATION[:MODE]]", part)
		}
		if len(fields) > 1 {
			if st.duration, err = strconv.ParseFloat(fields[1], 64); err != nil || st.duration < 0 {
				return nil, fmt.Errorf("script step %q: bad duration %q", part, fields[1])
			}
		}
		if len(fields) > 2 {
			if st.mode, err = core.ParseFadeMode(fields[2]); err != nil {
				return nil, fmt.Errorf("script step %q: %w", part, err)
			}
		}
		steps = append(steps, st)
	}
	return steps, nil
}
