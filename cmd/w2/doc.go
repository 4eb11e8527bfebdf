// Package main hosts the w2 CLI entrypoint and command graph.
//
// The Cobra command tree maps run, start, restart and stop onto the lifecycle
// orchestrator, with the process controller doing the actual process work.
// Every lifecycle command accepts the full proxy option table; supplied options
// are forwarded to the engine and drive the usage banner. The package also
// resolves configuration, builds the diagnostic logger and renders `w2 status`.
//
// Keep this package thin: behaviour belongs in the internal packages, and the
// commands here only wire them together.
package main
