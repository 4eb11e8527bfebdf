package logging

import (
	"context"
	"log/slog"
	"time"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldOperation names the lifecycle operation (run, start, restart, stop).
	FieldOperation = "operation"
	// FieldInstance carries the instance key derived from the engine target.
	FieldInstance = "instance"
	// FieldPID is the engine process id.
	FieldPID = "pid"
	// FieldEventType classifies warning and error events.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
)

func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func String(key string, value string) slog.Attr { return slog.String(key, value) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
