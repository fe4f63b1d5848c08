// Package clifmt colors CLI output when stdout is a terminal. NO_COLOR and
// TERM=dumb turn colors off.
package clifmt

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	dim    = "2"
	red    = "31"
	green  = "32"
	yellow = "33"
	cyan   = "1;36"
	key    = "1;33"
)

func Headerf(format string, args ...any) string {
	return colorize(cyan, fmt.Sprintf(format, args...))
}

func Success(text string) string { return colorize(green, text) }
func Warn(text string) string    { return colorize(yellow, text) }
func Error(text string) string   { return colorize(red, text) }
func Dim(text string) string     { return colorize(dim, text) }
func Key(text string) string     { return colorize(key, text) }

// Status colors a lifecycle status by outcome: accepted states green, refused
// or failed states red, waiting states yellow.
func Status(s string) string {
	switch strings.ToLower(s) {
	case "approved", "connected":
		return Success(s)
	case "rejected", "error", "disconnected":
		return Error(s)
	case "pending", "revision_requested", "syncing":
		return Warn(s)
	}
	return s
}

func colorize(code string, text string) string {
	if !useColor() {
		return text
	}
	return "\x1b[" + code + "m" + text + "\x1b[0m"
}

func useColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
