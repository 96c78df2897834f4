package extensibility

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/comalice/blendx/internal/primitives"
)

func TestRecoveringInvoker(t *testing.T) {
	var inv RecoveringInvoker
	called := false
	if err := inv.Invoke("ok", func() { called = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("fn not called")
	}

	err := inv.Invoke("boom", func() { panic(primitives.ErrTimelineModified) })
	var pe *primitives.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if !errors.Is(err, primitives.ErrTimelineModified) {
		t.Errorf("panic value should unwrap, got %v", err)
	}
}

func TestLoggingInvoker(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inv := NewLoggingInvoker(nil, logger)

	called := false
	if err := inv.Invoke("base/walk/step", func() { called = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner fn not called")
	}
	if out := buf.String(); !strings.Contains(out, "source=base/walk/step") || !strings.Contains(out, "duration=") {
		t.Errorf("missing callback log: %q", out)
	}

	buf.Reset()
	err := inv.Invoke("base/walk/boom", func() { panic("boom") })
	if err == nil {
		t.Fatal("expected error from panicking callback")
	}
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "callback failed") {
		t.Errorf("missing failure log: %q", out)
	}
}

func TestLoggingInvoker_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_ = NewLoggingInvoker(RecoveringInvoker{}, logger).Invoke("quiet", func() {})
	if buf.Len() != 0 {
		t.Errorf("debug callback log should be filtered at info: %q", buf.String())
	}

	_ = NewLoggingInvoker(RecoveringInvoker{}, logger).WithLevel(slog.LevelInfo).Invoke("loud", func() {})
	if !strings.Contains(buf.String(), "source=loud") {
		t.Errorf("info callback log missing: %q", buf.String())
	}
}
