package console

import "strings"

// Level is the semantic severity of an operator-facing line.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Span is a run of text, optionally emphasized.
type Span struct {
	Text string
	Bold bool
}

// Line is one line of operator guidance. Text may contain embedded newlines,
// which are rendered with the line's level.
type Line struct {
	Level Level
	Spans []Span
}

// Plain returns an unemphasized span.
func Plain(text string) Span { return Span{Text: text} }

// Bold returns an emphasized span.
func Bold(text string) Span { return Span{Text: text, Bold: true} }

// Info builds an informational line.
func Info(spans ...Span) Line { return Line{Level: LevelInfo, Spans: spans} }

// Warn builds a warning line.
func Warn(spans ...Span) Line { return Line{Level: LevelWarn, Spans: spans} }

// Error builds an error line.
func Error(spans ...Span) Line { return Line{Level: LevelError, Spans: spans} }

// InfoText is shorthand for a single plain informational span.
func InfoText(text string) Line { return Info(Plain(text)) }

// WarnText is shorthand for a single plain warning span.
func WarnText(text string) Line { return Warn(Plain(text)) }

// ErrorText is shorthand for a single plain error span.
func ErrorText(text string) Line { return Error(Plain(text)) }

// String returns the line without any styling.
func (l Line) String() string {
	var b strings.Builder
	for _, span := range l.Spans {
		b.WriteString(span.Text)
	}
	return b.String()
}

// Strings flattens lines to their unstyled text, mostly for tests and logs.
func Strings(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.String())
	}
	return out
}
