package tui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal. Prompts and
// colors are only worth printing when it is.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or fallback when it is unknown.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
