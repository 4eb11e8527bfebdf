package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Writer renders lines to an output stream, colouring them by level when the
// stream is a terminal.
type Writer struct {
	out      io.Writer
	colorize bool
}

// NewWriter wraps out. Colour is enabled only for terminals unless disabled.
func NewWriter(out io.Writer, disableColor bool) *Writer {
	return &Writer{out: out, colorize: !disableColor && ShouldColorize(out)}
}

// NewPlainWriter never emits escape sequences.
func NewPlainWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Colorized reports whether escape sequences are emitted.
func (w *Writer) Colorized() bool { return w.colorize }

// Print writes each line followed by a newline.
func (w *Writer) Print(lines ...Line) {
	for _, line := range lines {
		fmt.Fprintln(w.out, w.Render(line))
	}
}

// Println writes raw text with no level styling.
func (w *Writer) Println(s string) {
	fmt.Fprintln(w.out, s)
}

// Render returns the styled text for line.
func (w *Writer) Render(line Line) string {
	if !w.colorize {
		return line.String()
	}
	base := levelColors(line.Level)
	var b strings.Builder
	for _, span := range line.Spans {
		colors := base
		if span.Bold {
			colors = append(append(text.Colors{}, base...), text.Bold)
		}
		b.WriteString(colors.Sprint(span.Text))
	}
	return b.String()
}

func levelColors(level Level) text.Colors {
	switch level {
	case LevelError:
		return text.Colors{text.FgRed}
	case LevelWarn:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgGreen}
	}
}

// ShouldColorize reports whether writer is an interactive terminal.
func ShouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
