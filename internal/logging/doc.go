// Package logging assembles structured slog loggers for the w2 CLI.
//
// It owns the console and JSON handlers, level parsing, and output plumbing,
// and exposes attribute helpers plus a no-op logger for tests and wiring code
// that cannot fail. These logs are diagnostics for maintainers; operator
// guidance is rendered separately through the console package and never passes
// through a logger.
package logging
