package diagnose

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Cause is the structured form of a lifecycle failure: an optional system error
// code, a one-line message and an optional multi-line trace.
type Cause struct {
	Code    string
	Message string
	Trace   string
	Err     error
}

func (c *Cause) Error() string {
	if c.Message != "" {
		return c.Message
	}
	if c.Code != "" {
		return c.Code
	}
	if c.Err != nil {
		return c.Err.Error()
	}
	return "unknown failure"
}

func (c *Cause) Unwrap() error { return c.Err }

// CauseOf normalizes err. An existing *Cause in the chain is returned as is;
// otherwise the first syscall.Errno in the chain supplies the code.
func CauseOf(err error) *Cause {
	if err == nil {
		return nil
	}
	var cause *Cause
	if errors.As(err, &cause) {
		return cause
	}
	out := &Cause{Message: err.Error(), Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		out.Code = unix.ErrnoName(errno)
	}
	return out
}

var (
	nodeCodePattern = regexp.MustCompile(`\bE[A-Z]{3,}\b`)
	// errorHeaderPattern matches the first line of a thrown error, e.g.
	// "Error: listen EADDRINUSE ..." or "TypeError [ERR_X]: ...".
	errorHeaderPattern = regexp.MustCompile(`^\w*Error(\s*\[\w+\])?:`)
	codeLinePattern    = regexp.MustCompile(`\bcode:\s*['"](E[A-Z]+)['"]`)
	strerrorCodes      = []struct {
		phrase string
		code   string
	}{
		{"address already in use", "EADDRINUSE"},
		{"operation not permitted", "EPERM"},
		{"permission denied", "EACCES"},
	}
)

// errnoNames holds the symbolic names the platform knows, so that words like
// ERROR in engine output are not mistaken for codes.
var errnoNames = sync.OnceValue(func() map[string]struct{} {
	names := make(map[string]struct{})
	for i := 1; i < 256; i++ {
		if name := unix.ErrnoName(syscall.Errno(i)); name != "" {
			names[name] = struct{}{}
		}
	}
	return names
})

// ParseOutput builds a Cause from an engine's captured output. The message is
// the last error header line ("Error: ...") or, failing that, the last line
// naming an error code, then the last line that is not a stack frame. The code
// comes from the message line first, so an earlier non-fatal warning does not
// decide it. The full text becomes the trace.
func ParseOutput(output string) *Cause {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return &Cause{Message: "engine exited without output"}
	}
	lines := strings.Split(trimmed, "\n")

	var header, codeLine, plain, last string
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if last == "" {
			last = line
		}
		if codeLine == "" && codeLinePattern.MatchString(line) {
			codeLine = line
		}
		if plain == "" && !strings.HasPrefix(line, "at ") {
			plain = line
		}
		if errorHeaderPattern.MatchString(line) {
			header = line
			break
		}
	}

	cause := &Cause{Message: firstNonEmpty(header, codeLine, plain, last)}
	if len(lines) > 1 {
		cause.Trace = trimmed
	}
	cause.Code = firstNonEmpty(
		errnoToken(cause.Message),
		codeFromLine(codeLine),
		strerrorCode(cause.Message),
		lastErrnoToken(trimmed),
		strerrorCode(trimmed),
	)
	return cause
}

func errnoToken(line string) string {
	for _, token := range nodeCodePattern.FindAllString(line, -1) {
		if _, ok := errnoNames()[token]; ok {
			return token
		}
	}
	return ""
}

func lastErrnoToken(text string) string {
	tokens := nodeCodePattern.FindAllString(text, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		if _, ok := errnoNames()[tokens[i]]; ok {
			return tokens[i]
		}
	}
	return ""
}

func codeFromLine(line string) string {
	m := codeLinePattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	if _, ok := errnoNames()[m[1]]; ok {
		return m[1]
	}
	return ""
}

func strerrorCode(text string) string {
	lower := strings.ToLower(text)
	for _, candidate := range strerrorCodes {
		if strings.Contains(lower, candidate.phrase) {
			return candidate.code
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
