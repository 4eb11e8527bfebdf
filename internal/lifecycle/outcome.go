package lifecycle

import (
	"context"
	"errors"

	"github.com/aishuidedabai/whistle/internal/options"
)

// ErrNoOutcome is delivered as a failure when a manager returns without
// reporting an outcome.
var ErrNoOutcome = errors.New("process manager returned without an outcome")

// Kind tags an Outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindKilled
	KindNotRunning
)

func (k Kind) String() string {
	switch k {
	case KindFailure:
		return "failure"
	case KindKilled:
		return "killed"
	case KindNotRunning:
		return "not_running"
	default:
		return "success"
	}
}

// Outcome is the terminal result of one lifecycle operation.
type Outcome struct {
	Kind Kind
	// AlreadyRunning is only meaningful for KindSuccess.
	AlreadyRunning bool
	// Err is only meaningful for KindFailure.
	Err error
}

// Succeeded reports a successful launch. alreadyRunning is true when an
// existing instance was found instead.
func Succeeded(alreadyRunning bool) Outcome {
	return Outcome{Kind: KindSuccess, AlreadyRunning: alreadyRunning}
}

// Failed reports a failed operation.
func Failed(err error) Outcome {
	return Outcome{Kind: KindFailure, Err: err}
}

// Killed confirms a stopped instance.
func Killed() Outcome { return Outcome{Kind: KindKilled} }

// NotRunning reports that stop found nothing to stop.
func NotRunning() Outcome { return Outcome{Kind: KindNotRunning} }

// Operation is one of the four lifecycle operations.
type Operation int

const (
	OpRun Operation = iota
	OpStart
	OpRestart
	OpStop
)

func (op Operation) String() string {
	switch op {
	case OpStart:
		return "start"
	case OpRestart:
		return "restart"
	case OpStop:
		return "stop"
	default:
		return "run"
	}
}

// Request is what a Manager needs to act on one engine instance.
type Request struct {
	Options options.Options
	// Target identifies the instance; see options.Target.
	Target string
	// Command and Args form the engine command line for run, start and restart.
	Command string
	Args    []string
}

// Notify delivers an Outcome. Only the first call per operation has an effect.
type Notify func(Outcome)

// Manager performs lifecycle operations on the engine. Implementations report
// the result through notify, ideally exactly once, and return an error only
// when they could not report one.
type Manager interface {
	Run(ctx context.Context, req Request, notify Notify) error
	Start(ctx context.Context, req Request, notify Notify) error
	Restart(ctx context.Context, req Request, notify Notify) error
	Stop(ctx context.Context, req Request, notify Notify) error
}
