// Package preflight checks the filesystem locations the engine and the w2
// bookkeeping depend on. The status command renders the results.
package preflight
