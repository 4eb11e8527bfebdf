// Package diagnose classifies lifecycle failures and renders operator guidance
// for them.
//
// Failures are normalized into a Cause (system error code, message, trace)
// whether they originate as Go errors carrying a syscall.Errno or as the text an
// engine printed before exiting. Classify applies an ordered rule list:
// address-in-use first, permission errors second, everything else falls
// through to a timestamped dump of the failure detail so nothing is lost.
package diagnose
