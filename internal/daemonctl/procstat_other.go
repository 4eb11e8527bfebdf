//go:build !linux

package daemonctl

// processStartTicks is unavailable without procfs; callers skip the
// pid reuse check.
func processStartTicks(int) (uint64, bool) {
	return 0, false
}
