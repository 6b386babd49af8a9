package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the sieve banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{`      _`, "#818cf8"},
		{`  ___(_) _____   _____`, "#a78bfa"},
		{` / __| |/ _ \ \ / / _ \`, "#c084fc"},
		{` \__ \ |  __/\ V /  __/`, "#e879f9"},
		{` |___/_|\___| \_/ \___|`, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  rule prioritization workbench "+version).Faint())
	fmt.Fprintln(w)
}
