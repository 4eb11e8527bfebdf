package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/aishuidedabai/whistle/internal/deps"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		return statusKindColors(kind).Sprint(base)
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColors(kind statusKind) text.Colors {
	switch kind {
	case statusOK:
		return text.Colors{text.FgGreen}
	case statusWarn:
		return text.Colors{text.FgYellow}
	case statusError:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgBlue}
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		blue := text.Colors{text.FgBlue}
		line = blue.Sprint(line)
		rule = blue.Sprint(rule)
	}
	return []string{line, rule}
}

// dependencyLines renders binary checks. A missing optional binary is a warning.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		kind := statusOK
		detail := "Ready"
		if status.Command != "" {
			detail = fmt.Sprintf("Ready (command: %s)", status.Command)
		}
		if !status.Available {
			kind = statusError
			if status.Optional {
				kind = statusWarn
			}
			detail = strings.TrimSpace(status.Detail)
			if detail == "" {
				detail = "not available"
			}
		}
		lines = append(lines, renderStatusLine(status.Name, kind, detail, colorize))
	}
	return lines
}
