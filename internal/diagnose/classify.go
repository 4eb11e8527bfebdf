package diagnose

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aishuidedabai/whistle/internal/console"
)

// Category is a diagnostic bucket used to select operator guidance.
type Category int

const (
	Unclassified Category = iota
	PortConflict
	PermissionDenied
)

func (c Category) String() string {
	switch c {
	case PortConflict:
		return "port_conflict"
	case PermissionDenied:
		return "permission_denied"
	default:
		return "unclassified"
	}
}

// Result pairs a category with the normalized failure it was derived from.
type Result struct {
	Category Category
	Cause    *Cause
}

var addrInUsePattern = regexp.MustCompile(`(?i)listen\b.*\bEADDRINUSE\b|address already in use`)

type rule struct {
	category Category
	match    func(*Cause) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{PortConflict, func(c *Cause) bool {
		return c.Code == "EADDRINUSE" ||
			addrInUsePattern.MatchString(c.Message) ||
			addrInUsePattern.MatchString(c.Trace)
	}},
	{PermissionDenied, func(c *Cause) bool {
		return c.Code == "EACCES" || c.Code == "EPERM"
	}},
}

// Classify maps a failure to its diagnostic category.
func Classify(err error) Result {
	cause := CauseOf(err)
	if cause == nil {
		cause = &Cause{Message: "unknown failure"}
	}
	for _, r := range rules {
		if r.match(cause) {
			return Result{Category: r.category, Cause: cause}
		}
	}
	return Result{Category: Unclassified, Cause: cause}
}

// Params carries what Render needs beyond the result itself.
type Params struct {
	// Name is the product name, e.g. "whistle".
	Name string
	// Command is the CLI binary name used in suggested commands.
	Command string
	// Port is the effective proxy port.
	Port int
	// Foreground selects the phrasing for `run` over `start`/`restart`.
	Foreground bool
	Now        func() time.Time
}

// Render produces the operator guidance for a classified failure.
func Render(result Result, p Params) []console.Line {
	cause := result.Cause
	if cause == nil {
		cause = &Cause{Message: "unknown failure"}
	}
	switch result.Category {
	case PortConflict:
		stopOrRestart := fmt.Sprintf("restart %s with `%s restart`", p.Name, p.Command)
		newPort := fmt.Sprintf("`%s start -p newPort`", p.Command)
		if p.Foreground {
			stopOrRestart = fmt.Sprintf("stop %s with `%s stop` first", p.Name, p.Command)
			newPort = fmt.Sprintf("`%s run -p newPort`", p.Command)
		}
		return []console.Line{
			console.ErrorText(fmt.Sprintf("[!] Failed to bind proxy port %d: The port is already in use", p.Port)),
			console.InfoText(fmt.Sprintf("[i] Please check if %s is already running, you can %s", p.Name, stopOrRestart)),
			console.InfoText("    or if another application is using the port, you can change the port with " + newPort),
			console.ErrorText(cause.Error()),
		}
	case PermissionDenied:
		return []console.Line{
			console.ErrorText(fmt.Sprintf("[!] Cannot start %s owned by root", p.Name)),
			console.InfoText("[i] Try to run command with `sudo`"),
			console.ErrorText(cause.Error()),
		}
	default:
		return renderDump(cause, p.Now)
	}
}

func renderDump(cause *Cause, now func() time.Time) []console.Line {
	if now == nil {
		now = time.Now
	}
	detail := strings.TrimSpace(cause.Trace)
	if detail == "" {
		detail = cause.Error()
	}
	return []console.Line{
		console.ErrorText("Date: " + now().Local().Format("2006-01-02 15:04:05")),
		console.ErrorText(detail),
	}
}
