package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the leadflow banner to w, colored when the terminal supports it.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _                _  __ _               ", "#818cf8"},
		{"| | ___  __ _  __| |/ _| | _____      __", "#a78bfa"},
		{"| |/ _ \\/ _` |/ _` | |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{"| |  __/ (_| | (_| |  _| | (_) \\ V  V / ", "#e879f9"},
		{"|_|\\___|\\__,_|\\__,_|_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
