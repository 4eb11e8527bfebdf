// Package lifecycle interprets the outcome of run, start, restart and stop and
// renders the operator guidance for it.
//
// A Manager performs the operation and reports one Outcome through a Notify
// callback. Execute guarantees that exactly one outcome is rendered per
// operation: duplicates are dropped and a manager that never reports is
// treated as a failure. Failures go through the diagnose package; successes
// render the usage banner.
package lifecycle
