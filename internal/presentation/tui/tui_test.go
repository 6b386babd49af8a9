package tui_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sieve/internal/presentation/tui"
	"github.com/aretw0/sieve/pkg/domain"
)

func TestReportMarkdown(t *testing.T) {
	md := tui.ReportMarkdown(&domain.AnalysisReport{
		Issues: []domain.Issue{{Issue: "a|b overlap", PriorityLevels: []string{"High", "Medium"}, Severity: domain.SeverityCritical, Impact: "double\ncounting"}},
		Optimizations: []domain.Optimization{
			{PriorityLevel: "High", OriginalText: "oncology", SuggestedText: "oncology, adults", Rationale: "narrower"},
		},
	}, 2)

	assert.Contains(t, md, "# Rule analysis (round 2)")
	assert.Contains(t, md, "## Issues (1, 1 critical)")
	assert.Contains(t, md, `| Critical | High, Medium | a\|b overlap | double counting |`)
	assert.Contains(t, md, "1. **High**: `oncology` → `oncology, adults`")
	assert.Contains(t, md, "   narrower")

	assert.Contains(t, tui.ReportMarkdown(nil, 1), "No analysis available")
	assert.Contains(t, tui.ReportMarkdown(&domain.AnalysisReport{}, 1), "No issues found.")
}

func TestNewRenderer_Plain(t *testing.T) {
	render := tui.NewRenderer(true)
	out, err := render("# Title\n\nbody text")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body text")
}

func TestPrompter_ReadCommand(t *testing.T) {
	var out bytes.Buffer
	p := tui.NewPrompter(strings.NewReader("\nmaybe\nedit\nr please merge High and Medium\n"), &out)

	cmd, err := p.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, domain.Reject("please merge High and Medium"), cmd)
	assert.Contains(t, out.String(), tui.CommandHelp)
	assert.Contains(t, out.String(), "edit requires a path")
}

func TestPrompter_EOF(t *testing.T) {
	p := tui.NewPrompter(strings.NewReader("approve"), io.Discard)
	cmd, err := p.ReadCommand()
	require.NoError(t, err, "a final line without newline still counts")
	assert.Equal(t, domain.DecisionApprove, cmd.Decision)

	_, err = p.ReadCommand()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	tui.PrintBanner(&out, "1.2.3")
	assert.Contains(t, out.String(), "1.2.3")
}
