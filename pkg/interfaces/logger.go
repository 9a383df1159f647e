package interfaces

import "context"

// Logger is the leveled, key/value logger every docsync component accepts.
// Its method set matches github.com/goliatone/go-logger so that package can
// be passed straight through.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// LoggerProvider hands out loggers by module name, e.g. "docsync.sync".
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// FieldsLogger is implemented by loggers that can bind fields to every entry.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}
