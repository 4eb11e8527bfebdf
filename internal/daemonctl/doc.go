// Package daemonctl launches, supervises and stops proxy engine processes on
// behalf of the lifecycle commands.
//
// Each engine target gets its own instance files in the run directory, named
// after a UUID derived from the target: a pid file, a JSON metadata record, the
// background engine log and a flock-based lock that serializes concurrent w2
// invocations on the same instance. Controller implements lifecycle.Manager and
// reports every operation through the outcome callback exactly once.
package daemonctl
