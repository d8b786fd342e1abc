package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/expect"
)

// ReportFormatter renders a verification report as compact text.
type ReportFormatter struct {
	writer io.Writer
}

// NewReportFormatter creates a new report formatter.
func NewReportFormatter(w io.Writer) *ReportFormatter {
	return &ReportFormatter{writer: w}
}

// Format writes one line per case, with failure details indented beneath
// failing cases, followed by a summary line.
func (f *ReportFormatter) Format(report *expect.Report) error {
	passed, failed := 0, 0

	for _, res := range report.Results {
		label := fmt.Sprintf("%s: %s -> %s", res.Scenario, res.Case, res.Target)
		if res.Passed() {
			passed++
			_, _ = fmt.Fprintf(f.writer, "PASS %s\n", label)
			continue
		}

		failed++
		_, _ = fmt.Fprintf(f.writer, "FAIL %s\n", label)
		f.formatFailure(res)
	}

	_, _ = fmt.Fprintf(f.writer, "\n%d passed, %d failed\n", passed, failed)
	return nil
}

func (f *ReportFormatter) formatFailure(res expect.CaseResult) {
	if len(res.MissingColumns) > 0 {
		_, _ = fmt.Fprintf(f.writer, "  missing columns: %s\n", strings.Join(res.MissingColumns, ", "))
	}
	for _, row := range res.Missing {
		_, _ = fmt.Fprintf(f.writer, "  missing row: %s\n", formatRecord(row))
	}
	for _, row := range res.Unexpected {
		_, _ = fmt.Fprintf(f.writer, "  unexpected row: %s\n", formatRecord(row))
	}
	for _, diff := range res.Diffs {
		for _, field := range diff.Fields {
			_, _ = fmt.Fprintf(f.writer, "  %s: expected %s, got %s (row %s)\n",
				field.Column, field.Expected.Text(), field.Actual.Text(), formatRecord(diff.Expected))
		}
	}
}

func formatRecord(rec data.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, rec[k].Text())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
