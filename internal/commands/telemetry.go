package commands

import (
	"context"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// TelemetryStatus classifies how an execution ended.
type TelemetryStatus string

const (
	TelemetryStatusSuccess      TelemetryStatus = "success"
	TelemetryStatusFailed       TelemetryStatus = "failed"
	TelemetryStatusContextError TelemetryStatus = "context_error"
)

// TelemetryInfo is handed to a Telemetry hook after every execution. Logger
// already carries Fields.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Duration  time.Duration
	Error     error
	Status    TelemetryStatus
	Logger    interfaces.Logger
}

// Telemetry observes execution outcomes. Installing one replaces the
// handler's own outcome logging.
type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// SlowTelemetry logs each outcome with its duration and adds a warning when
// a successful run took longer than threshold. A zero threshold never warns.
func SlowTelemetry[T command.Message](threshold time.Duration) Telemetry[T] {
	return func(_ context.Context, _ T, info TelemetryInfo) {
		logOutcome(info)
		if threshold > 0 && info.Status == TelemetryStatusSuccess && info.Duration > threshold {
			loggerOf(info).Warn("command.execute.slow",
				"duration_ms", info.Duration.Milliseconds(),
				"threshold_ms", threshold.Milliseconds(),
			)
		}
	}
}

func logOutcome(info TelemetryInfo) {
	logger := loggerOf(info)
	elapsed := info.Duration.Milliseconds()
	switch info.Status {
	case TelemetryStatusSuccess:
		logger.Info("command.execute.success", "duration_ms", elapsed)
	case TelemetryStatusContextError:
		logger.Error("command.execute.context_error", "duration_ms", elapsed, "error", info.Error)
	default:
		logger.Error("command.execute.failed", "duration_ms", elapsed, "error", info.Error)
	}
}

func loggerOf(info TelemetryInfo) interfaces.Logger {
	if info.Logger == nil {
		return logging.NoOp()
	}
	return info.Logger
}
