package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// Module names a logger namespace. Providers receive it verbatim and every
// entry carries it in the "module" field.
type Module string

const (
	ModuleRoot     Module = "docsync"
	ModuleCLI      Module = "docsync.cli"
	ModuleSync     Module = "docsync.sync"
	ModuleImporter Module = "docsync.importer"
	ModuleGitHub   Module = "docsync.github"
	ModuleJobs     Module = "docsync.jobs"
	ModuleWebhook  Module = "docsync.webhook"
	ModuleCommands Module = "docsync.commands"
)

// Child returns the namespace below m, e.g. ModuleCommands.Child("sync").
func (m Module) Child(name string) Module {
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		return m
	}
	return m + "." + Module(name)
}

// For resolves the logger for module from provider. A nil provider, or one
// that has nothing for the name, yields NoOp.
func For(provider interfaces.LoggerProvider, module Module) interfaces.Logger {
	if module == "" {
		module = ModuleRoot
	}
	var logger interfaces.Logger
	if provider != nil {
		logger = provider.GetLogger(string(module))
	}
	if logger == nil {
		return NoOp()
	}
	return WithFields(logger, map[string]any{"module": string(module)})
}

// WithSyncContext binds the file path, commit and action of one sync step.
// Blank values are left out.
func WithSyncContext(logger interfaces.Logger, path, commit, action string) interfaces.Logger {
	fields := make(map[string]any, 3)
	for key, value := range map[string]string{
		"git_path":    path,
		"commit":      commit,
		"sync_action": action,
	} {
		if v := strings.TrimSpace(value); v != "" {
			fields[key] = v
		}
	}
	return WithFields(logger, fields)
}

// NoOp discards everything.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Trace(string, ...any)                            {}
func (noopLogger) Debug(string, ...any)                            {}
func (noopLogger) Info(string, ...any)                             {}
func (noopLogger) Warn(string, ...any)                             {}
func (noopLogger) Error(string, ...any)                            {}
func (noopLogger) Fatal(string, ...any)                            {}
func (n noopLogger) WithFields(map[string]any) interfaces.Logger   { return n }
func (n noopLogger) WithContext(context.Context) interfaces.Logger { return n }
