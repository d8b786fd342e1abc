package spec

import (
	"fmt"
	"regexp"
	"strings"
)

// Table is a parsed pipe table: an ordered column list and raw string cells.
// Sentinel and reference handling happens later, in the factory resolver and
// expectation engine.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

var (
	trailingCommentRe   = regexp.MustCompile(`#[^|]*$`)
	headerSeparatorRe   = regexp.MustCompile(`^[\s\-|]*$`)
	pipeSurroundSpaceRe = regexp.MustCompile(`[ \t]*\|[ \t]*`)
)

// ParseTable parses a markdown-style pipe table into columns and rows.
// Trailing # comments are stripped, whitespace around pipes is ignored, and
// the second line must be a header separator made of dashes and pipes.
func ParseTable(table string) (*Table, error) {
	var lines []string
	for _, line := range strings.Split(table, "\n") {
		line = trailingCommentRe.ReplaceAllString(line, "")
		line = pipeSurroundSpaceRe.ReplaceAllString(line, "|")
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "|")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) < 2 {
		return nil, fmt.Errorf("table must have a header row and a separator row")
	}
	if !headerSeparatorRe.MatchString(lines[1]) {
		return nil, fmt.Errorf("bad header separator: %q", lines[1])
	}

	columns := strings.Split(lines[0], "|")
	for i := range columns {
		columns[i] = strings.TrimSpace(columns[i])
	}

	t := &Table{Columns: columns}
	for _, line := range lines[2:] {
		cells := strings.Split(line, "|")
		if len(cells) != len(columns) {
			return nil, fmt.Errorf("row %q has %d cells, header has %d columns", line, len(cells), len(columns))
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			row[col] = cells[i]
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
