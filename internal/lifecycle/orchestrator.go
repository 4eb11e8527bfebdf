package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aishuidedabai/whistle/internal/console"
	"github.com/aishuidedabai/whistle/internal/diagnose"
	"github.com/aishuidedabai/whistle/internal/logging"
	"github.com/aishuidedabai/whistle/internal/options"
	"github.com/aishuidedabai/whistle/internal/usage"
)

// Config wires an Orchestrator.
type Config struct {
	Presenter *usage.Presenter
	// Product is the product name used in guidance, e.g. "whistle".
	Product string
	// Command is the CLI binary name used in suggested commands, e.g. "w2".
	Command string
	Out     *console.Writer
	Logger  *slog.Logger
	Now     func() time.Time
}

// Orchestrator turns lifecycle outcomes into operator guidance.
type Orchestrator struct {
	presenter *usage.Presenter
	product   string
	command   string
	out       *console.Writer
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an Orchestrator. Out and Presenter are required.
func New(cfg Config) *Orchestrator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		presenter: cfg.Presenter,
		product:   cfg.Product,
		command:   cfg.Command,
		out:       cfg.Out,
		logger:    logging.NewComponentLogger(cfg.Logger, "lifecycle"),
		now:       now,
	}
}

// Handler returns the outcome handler for op.
func (o *Orchestrator) Handler(op Operation) func(Outcome, options.Options) {
	switch op {
	case OpStart:
		return o.HandleStart
	case OpRestart:
		return o.HandleRestart
	case OpStop:
		return o.HandleStop
	default:
		return o.HandleRun
	}
}

// HandleRun renders the result of a foreground run.
func (o *Orchestrator) HandleRun(outcome Outcome, opts options.Options) {
	o.logOutcome(OpRun, outcome)
	switch outcome.Kind {
	case KindSuccess:
		o.out.Print(o.presenter.Banner(opts, usage.StateStarted)...)
		o.out.Print(console.InfoText(fmt.Sprintf("Press [Ctrl+C] to stop %s...", o.product)))
	case KindFailure:
		o.renderFailure(OpRun, outcome.Err, opts)
	default:
		o.unexpected(OpRun, outcome)
	}
}

// HandleStart renders the result of a background start.
func (o *Orchestrator) HandleStart(outcome Outcome, opts options.Options) {
	o.logOutcome(OpStart, outcome)
	switch outcome.Kind {
	case KindSuccess:
		state := usage.StateStarted
		if outcome.AlreadyRunning {
			state = usage.StateRunning
		}
		o.out.Print(o.presenter.Banner(opts, state)...)
	case KindFailure:
		o.renderFailure(OpStart, outcome.Err, opts)
	default:
		o.unexpected(OpStart, outcome)
	}
}

// HandleRestart renders the result of a restart. A restart always yields a
// fresh instance, so success is reported as restarted.
func (o *Orchestrator) HandleRestart(outcome Outcome, opts options.Options) {
	o.logOutcome(OpRestart, outcome)
	switch outcome.Kind {
	case KindSuccess:
		o.out.Print(o.presenter.Banner(opts, usage.StateRestarted)...)
	case KindFailure:
		o.renderFailure(OpRestart, outcome.Err, opts)
	default:
		o.unexpected(OpRestart, outcome)
	}
}

// HandleStop renders the result of a stop.
func (o *Orchestrator) HandleStop(outcome Outcome, _ options.Options) {
	o.logOutcome(OpStop, outcome)
	switch outcome.Kind {
	case KindKilled:
		o.out.Print(console.InfoText(fmt.Sprintf("[i] %s killed.", o.product)))
	case KindNotRunning:
		o.out.Print(console.WarnText(fmt.Sprintf("[!] No running %s", o.product)))
	case KindFailure:
		result := diagnose.Classify(outcome.Err)
		if result.Category == diagnose.PermissionDenied {
			o.out.Print(
				console.ErrorText(fmt.Sprintf("[!] Cannot kill %s owned by root", o.product)),
				console.InfoText("[i] Try to run command with `sudo`"),
			)
			return
		}
		o.out.Print(console.ErrorText("[!] " + result.Cause.Error()))
	default:
		o.unexpected(OpStop, outcome)
	}
}

func (o *Orchestrator) renderFailure(op Operation, err error, opts options.Options) {
	result := diagnose.Classify(err)
	o.logger.Debug("failure classified",
		logging.String(logging.FieldOperation, op.String()),
		logging.String("category", result.Category.String()),
		logging.String("code", result.Cause.Code),
		logging.Bool("restart", op == OpRestart),
	)
	o.out.Print(diagnose.Render(result, diagnose.Params{
		Name:       o.product,
		Command:    o.command,
		Port:       o.presenter.EffectivePort(opts),
		Foreground: op == OpRun,
		Now:        o.now,
	})...)
}

func (o *Orchestrator) unexpected(op Operation, outcome Outcome) {
	o.logger.Warn("outcome does not apply to operation",
		logging.String(logging.FieldOperation, op.String()),
		logging.String("outcome", outcome.Kind.String()),
		logging.String(logging.FieldEventType, "unexpected_outcome"),
	)
	o.out.Print(console.ErrorText(fmt.Sprintf("[!] %s finished with an unexpected result: %s", op, outcome.Kind)))
}

func (o *Orchestrator) logOutcome(op Operation, outcome Outcome) {
	attrs := []any{
		logging.String(logging.FieldOperation, op.String()),
		logging.String("outcome", outcome.Kind.String()),
	}
	if outcome.Kind == KindSuccess {
		attrs = append(attrs, logging.Bool("already_running", outcome.AlreadyRunning))
	}
	if outcome.Kind == KindFailure {
		attrs = append(attrs, logging.Error(outcome.Err))
	}
	o.logger.Info("lifecycle outcome", attrs...)
}

// Execute hands op to m and renders exactly one outcome. If m returns without
// notifying, its error (or ErrNoOutcome) is rendered as a failure. Later
// notifications are ignored. The rendered outcome is returned.
func (o *Orchestrator) Execute(ctx context.Context, op Operation, m Manager, req Request) Outcome {
	r := &resolver{
		handle: func(outcome Outcome) { o.Handler(op)(outcome, req.Options) },
		logger: o.logger.With(logging.String(logging.FieldOperation, op.String())),
	}

	var err error
	switch op {
	case OpStart:
		err = m.Start(ctx, req, r.resolve)
	case OpRestart:
		err = m.Restart(ctx, req, r.resolve)
	case OpStop:
		err = m.Stop(ctx, req, r.resolve)
	default:
		err = m.Run(ctx, req, r.resolve)
	}

	if outcome, ok := r.result(); ok {
		if err != nil {
			o.logger.Debug("manager error after outcome",
				logging.String(logging.FieldOperation, op.String()),
				logging.Error(err),
			)
		}
		return outcome
	}
	if err == nil {
		err = ErrNoOutcome
	}
	r.resolve(Failed(err))
	outcome, _ := r.result()
	return outcome
}

type resolver struct {
	mu      sync.Mutex
	done    bool
	outcome Outcome
	handle  func(Outcome)
	logger  *slog.Logger
}

func (r *resolver) resolve(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		r.logger.Debug("duplicate outcome dropped",
			logging.String("outcome", outcome.Kind.String()),
			logging.String("delivered", r.outcome.Kind.String()),
		)
		return
	}
	r.done = true
	r.outcome = outcome
	r.handle(outcome)
}

func (r *resolver) result() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.done
}
