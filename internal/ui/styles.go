// Package ui holds the td CLI's terminal styling.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorGreen  = 114
	colorYellow = 221
	colorOrange = 208
	colorRed    = 203
	colorPurple = 141
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderError returns s in red.
func RenderError(s string) string { return paint(colorRed, s) }

var stateColors = map[string]int{
	"new":         colorMuted,
	"ready":       colorAccent,
	"in_progress": colorYellow,
	"code_review": colorPurple,
	"qa":          colorOrange,
	"done":        colorGreen,
}

// RenderState colors a workflow state name. Unknown states are left plain.
func RenderState(state string) string {
	code, ok := stateColors[state]
	if !ok {
		return state
	}
	return paint(code, state)
}

// RenderPriority renders a 0-4 priority as "P0".."P4", with P0 and P1 hot.
func RenderPriority(p int) string {
	s := fmt.Sprintf("P%d", p)
	switch p {
	case 0:
		return paint(colorRed, s)
	case 1:
		return paint(colorOrange, s)
	}
	return paint(colorMuted, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
