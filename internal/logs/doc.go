// Package logs reads background engine logs for the CLI and for start-up
// diagnostics.
//
// Last returns the trailing lines of a log with bounded memory usage; Follow
// polls for appended lines until its context is cancelled and copes with the
// log being truncated when the engine is started again.
package logs
