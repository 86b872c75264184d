package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func (k statusKind) label() string {
	switch k {
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

func (k statusKind) ansiColor() string {
	switch k {
	case statusOK:
		return "\x1b[32m"
	case statusWarn:
		return "\x1b[33m"
	case statusError:
		return "\x1b[31m"
	default:
		return "\x1b[34m"
	}
}

const ansiReset = "\x1b[0m"

// renderStatusLine formats one aligned "Label: [KIND] message" row for
// status, deps and preflight output.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + kind.label() + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("  %-20s %s", label+":", status)
	if colorize {
		line = kind.ansiColor() + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		const blue = "\x1b[34m"
		line = blue + line + ansiReset
		rule = blue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
