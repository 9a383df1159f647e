package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

type recordingLogger struct {
	messages []string
}

func (r *recordingLogger) record(msg string)         { r.messages = append(r.messages, msg) }
func (r *recordingLogger) Trace(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Debug(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Info(msg string, _ ...any)  { r.record(msg) }
func (r *recordingLogger) Warn(msg string, _ ...any)  { r.record(msg) }
func (r *recordingLogger) Error(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Fatal(msg string, _ ...any) { r.record(msg) }

func (r *recordingLogger) WithContext(context.Context) interfaces.Logger { return r }

func (r *recordingLogger) has(msg string) bool {
	for _, m := range r.messages {
		if m == msg {
			return true
		}
	}
	return false
}

type pingMessage struct {
	Target string
}

func (pingMessage) Type() string { return "docsync.test.ping" }

func (pingMessage) Validate() error { return nil }

type rejectedMessage struct{}

func (rejectedMessage) Type() string { return "docsync.test.rejected" }

func (rejectedMessage) Validate() error { return errors.New("target is required") }

func TestHandlerExecuteSuccess(t *testing.T) {
	called := false
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		called = true
		return nil
	})

	if err := h.Execute(context.Background(), pingMessage{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !called {
		t.Fatal("expected handler to be invoked")
	}
}

func TestHandlerValidationShortCircuitsExecution(t *testing.T) {
	called := false
	h := NewHandler(func(ctx context.Context, msg rejectedMessage) error {
		called = true
		return nil
	})

	err := h.Execute(context.Background(), rejectedMessage{})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if called {
		t.Fatal("expected handler not to run when validation fails")
	}
}

func TestHandlerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		called = true
		return nil
	})

	err := h.Execute(ctx, pingMessage{})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if called {
		t.Fatal("expected handler not to run when context is cancelled")
	}
}

func TestHandlerWrapsExecutionError(t *testing.T) {
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		return errors.New("boom")
	})

	err := h.Execute(context.Background(), pingMessage{})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
}

func TestHandlerKeepsAlreadyCategorisedErrors(t *testing.T) {
	inner := goerrors.Wrap(errors.New("not git"), goerrors.CategoryValidation, "content mode is cms")
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		return inner
	})

	err := h.Execute(context.Background(), pingMessage{})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category to survive, got %v", err)
	}
}

func TestHandlerHonoursTimeoutOption(t *testing.T) {
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	}, WithTimeout[pingMessage](10*time.Millisecond))

	err := h.Execute(context.Background(), pingMessage{})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category for timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHandlerReportsTelemetry(t *testing.T) {
	var infos []TelemetryInfo
	ticks := []time.Time{
		time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 2, 10, 0, 2, 0, time.UTC),
	}
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		return nil
	},
		WithOperation[pingMessage]("test.ping"),
		WithMessageFields(func(msg pingMessage) map[string]any {
			return map[string]any{"target": msg.Target}
		}),
		WithTelemetry(func(_ context.Context, _ pingMessage, info TelemetryInfo) {
			infos = append(infos, info)
		}),
		WithClock[pingMessage](func() time.Time {
			now := ticks[0]
			if len(ticks) > 1 {
				ticks = ticks[1:]
			}
			return now
		}),
	)

	if err := h.Execute(context.Background(), pingMessage{Target: "handbook"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one telemetry call, got %d", len(infos))
	}
	info := infos[0]
	if info.Status != TelemetryStatusSuccess || info.Duration != 2*time.Second {
		t.Fatalf("unexpected telemetry %+v", info)
	}
	if info.Fields["target"] != "handbook" || info.Fields["operation"] != "test.ping" || info.Command != "docsync.test.ping" {
		t.Fatalf("unexpected telemetry fields %+v", info)
	}
}

func TestHandlerTelemetryMarksFailures(t *testing.T) {
	var status TelemetryStatus
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		return errors.New("unreachable")
	}, WithTelemetry(func(_ context.Context, _ pingMessage, info TelemetryInfo) {
		status = info.Status
	}))

	if err := h.Execute(context.Background(), pingMessage{}); err == nil {
		t.Fatal("expected error")
	}
	if status != TelemetryStatusFailed {
		t.Fatalf("expected failed status, got %q", status)
	}
}

func TestHandlerCarriesFieldsIntoExecutionContext(t *testing.T) {
	var seen map[string]any
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		seen = logging.ContextFields(ctx)
		return nil
	},
		WithOperation[pingMessage]("ping"),
		WithMessageFields(func(msg pingMessage) map[string]any {
			return map[string]any{"target": msg.Target}
		}),
	)

	ctx := logging.ContextWithJob(context.Background(), "job-7", "docsync.test.ping", 2)
	if err := h.Execute(ctx, pingMessage{Target: "docs"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	want := map[string]any{
		"job_id":    "job-7",
		"job_type":  "docsync.test.ping",
		"attempt":   2,
		"command":   "docsync.test.ping",
		"operation": "ping",
		"target":    "docs",
	}
	for key, value := range want {
		if seen[key] != value {
			t.Fatalf("expected %s=%v in context fields, got %v", key, value, seen)
		}
	}
}

func TestSlowTelemetryWarnsPastThreshold(t *testing.T) {
	logger := &recordingLogger{}
	ticks := []time.Time{
		time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 2, 10, 3, 0, 0, time.UTC),
	}
	h := NewHandler(func(ctx context.Context, msg pingMessage) error {
		return nil
	},
		WithLogger[pingMessage](logger),
		WithTelemetry(SlowTelemetry[pingMessage](time.Minute)),
		WithClock[pingMessage](func() time.Time {
			now := ticks[0]
			if len(ticks) > 1 {
				ticks = ticks[1:]
			}
			return now
		}),
	)

	if err := h.Execute(context.Background(), pingMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !logger.has("command.execute.success") || !logger.has("command.execute.slow") {
		t.Fatalf("expected success and slow entries, got %v", logger.messages)
	}
}
