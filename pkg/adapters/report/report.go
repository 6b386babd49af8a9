// Package report writes the analysis report and its review history to a
// spreadsheet.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetIssues        = "Issues"
	SheetOptimizations = "Optimizations"
	SheetReview        = "Review History"
)

// Workbook implements ports.ReportSink with excelize.
type Workbook struct {
	now func() time.Time
}

// New returns a spreadsheet report sink.
func New() *Workbook {
	return &Workbook{now: func() time.Time { return time.Now().UTC() }}
}

// FileName is the report name for a timestamp.
func FileName(at time.Time) string {
	return fmt.Sprintf("rule_analysis_report_%s.xlsx", at.Format("2006-01-02_15-04-05"))
}

// Write saves dir/output/rule_analysis_report_<ts>.xlsx. A nil report
// produces empty issue and optimization sheets.
func (w *Workbook) Write(ctx context.Context, dir string, r *domain.AnalysisReport, history []domain.ReviewEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r == nil {
		r = &domain.AnalysisReport{}
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return "", err
	}

	issues := [][]any{{"Issue", "Priority Levels", "Severity", "Impact"}}
	for _, is := range r.Issues {
		issues = append(issues, []any{is.Issue, strings.Join(is.PriorityLevels, ", "), string(is.Severity), is.Impact})
	}
	opts := [][]any{{"Priority Level", "Original Text", "Suggested Text", "Rationale"}}
	for _, o := range r.Optimizations {
		opts = append(opts, []any{o.PriorityLevel, o.OriginalText, o.SuggestedText, o.Rationale})
	}
	review := [][]any{{"Timestamp", "Decision", "Feedback", "Path"}}
	for _, e := range history {
		review = append(review, []any{e.Timestamp.Format(time.RFC3339), string(e.Decision), e.Feedback, e.Path})
	}

	if err := f.SetSheetName("Sheet1", SheetIssues); err != nil {
		return "", err
	}
	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetIssues, issues},
		{SheetOptimizations, opts},
		{SheetReview, review},
	} {
		if err := writeSheet(f, sheet.name, sheet.rows, header); err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet.name, err)
		}
	}

	outDir := filepath.Join(dir, "output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &domain.IOFault{Path: outDir, Err: err}
	}
	path := filepath.Join(outDir, FileName(w.now()))
	if err := f.SaveAs(path); err != nil {
		return "", &domain.IOFault{Path: path, Err: err}
	}
	return path, nil
}

func writeSheet(f *excelize.File, name string, rows [][]any, headerStyle int) error {
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(name, "A", "D", 40)
}
