package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"stageflow/internal/sla"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

// statusStyles holds the bracketed label and ANSI colour per kind.
var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		line += " " + message
	}
	return paint(line, style.color, colorize)
}

// slaKind maps an SLA state onto the status palette.
func slaKind(state string) statusKind {
	switch sla.State(state) {
	case sla.StateOnTrack:
		return statusOK
	case sla.StateAtRisk:
		return statusWarn
	case sla.StateViolated:
		return statusError
	default:
		return statusInfo
	}
}

func renderSLAState(state string, colorize bool) string {
	if strings.TrimSpace(state) == "" {
		state = string(sla.StateNoSLA)
	}
	return paint(state, statusStyles[slaKind(state)].color, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	color := statusStyles[statusInfo].color
	line := "== " + strings.TrimSpace(title) + " =="
	return []string{paint(line, color, colorize), paint(strings.Repeat("-", len(line)), color, colorize)}
}

func paint(value, color string, colorize bool) string {
	if !colorize || color == "" {
		return value
	}
	return color + value + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
