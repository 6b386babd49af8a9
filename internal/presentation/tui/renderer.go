package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/sieve/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// Style follows the terminal background; plain is used when styled output
// is not wanted (pipes, tests).
func NewRenderer(plain bool) func(string) (string, error) {
	opt := glamour.WithAutoStyle()
	if plain {
		opt = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(100))
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// ReportMarkdown formats an analysis report for the gatekeeper.
func ReportMarkdown(r *domain.AnalysisReport, round int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Rule analysis (round %d)\n\n", round)
	if r == nil {
		b.WriteString("_No analysis available._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "## Issues (%d, %d critical)\n\n", len(r.Issues), r.CriticalCount())
	if len(r.Issues) == 0 {
		b.WriteString("No issues found.\n\n")
	} else {
		b.WriteString("| Severity | Levels | Issue | Impact |\n|---|---|---|---|\n")
		for _, is := range r.Issues {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				is.Severity, cell(strings.Join(is.PriorityLevels, ", ")), cell(is.Issue), cell(is.Impact))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Optimizations (%d)\n\n", len(r.Optimizations))
	for i, o := range r.Optimizations {
		fmt.Fprintf(&b, "%d. **%s**: `%s` → `%s`\n", i+1, o.PriorityLevel, inline(o.OriginalText), inline(o.SuggestedText))
		if o.Rationale != "" {
			fmt.Fprintf(&b, "   %s\n", o.Rationale)
		}
	}
	return b.String()
}

// CommandHelp lists the gatekeeper commands.
const CommandHelp = "Commands: approve (a) | skip (s) | reject <feedback> (r) | edit <path> (e) | quit (q)"

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func inline(s string) string {
	if s == "" {
		return " "
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "`", "'"), "\n", " ")
}
