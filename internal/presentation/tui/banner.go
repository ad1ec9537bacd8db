package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the pipemirror banner and version to w.
func PrintBanner(w io.Writer, version string) {
	o := termenv.NewOutput(w)
	// Indigo to pink, one step per line.
	lines := []struct {
		text  string
		color string
	}{
		{`       _                     _                     `, "#818cf8"},
		{` _ __ (_)_ __   ___ _ __ ___ (_)_ __ _ __ ___  _ __ `, "#a78bfa"},
		{`| '_ \| | '_ \ / _ \ '_ ' _ \| | '__| '__/ _ \| '__|`, "#c084fc"},
		{`| |_) | | |_) |  __/ | | | | | | |  | | | (_) | |   `, "#e879f9"},
		{`| .__/|_| .__/ \___|_| |_| |_|_|_|  |_|  \___/|_|   `, "#f472b6"},
		{`|_|     |_|                                          `, "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, o.String(l.text).Foreground(o.Color(l.color)))
	}
	fmt.Fprintln(w, o.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
