package commands

import (
	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// CommandLogger returns the logger for a family of command handlers, named
// below docsync.commands.
func CommandLogger(provider interfaces.LoggerProvider, family string) interfaces.Logger {
	module := logging.ModuleCommands.Child(family)
	return logging.WithFields(logging.For(provider, module), map[string]any{
		"component": "command",
	})
}
