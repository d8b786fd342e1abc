// Package formatter renders seedspec artifacts for humans: markdown
// documentation of a test specification, plain-text verification reports,
// and per-source dataset files.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/seedspec/seedspec/internal/spec"
)

// MarkdownFormatter renders a specification document as markdown.
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter.
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the document in markdown format.
func (f *MarkdownFormatter) Format(doc *spec.Document) error {
	title := doc.Description
	if title == "" {
		title = "Test Specification"
	}
	_, _ = fmt.Fprintf(f.writer, "# %s\n\n", title)

	f.formatIdentifiers(doc.Identifiers)
	f.formatSources(doc.Sources)
	f.formatTargets(doc.Targets)

	for _, sc := range doc.Scenarios {
		f.formatScenario(sc)
	}
	return nil
}

func (f *MarkdownFormatter) formatIdentifiers(identifiers []spec.Identifier) {
	if len(identifiers) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "## Identifiers")
	_, _ = fmt.Fprintln(f.writer)
	for _, id := range identifiers {
		attrs := make([]string, len(id.Attributes))
		for i, attr := range id.Attributes {
			attrs[i] = fmt.Sprintf("%s (%s)", attr.Field, attr.Generator)
		}
		_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", id.Name, strings.Join(attrs, ", "))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatSources(sources []spec.Source) {
	if len(sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "## Sources")
	_, _ = fmt.Fprintln(f.writer)
	for _, src := range sources {
		_, _ = fmt.Fprintf(f.writer, "- **%s**%s\n", src.Name, describeIdentifierMap(src.IdentifierMap))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatTargets(targets []spec.Target) {
	if len(targets) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "## Targets")
	_, _ = fmt.Fprintln(f.writer)
	for _, tgt := range targets {
		_, _ = fmt.Fprintf(f.writer, "- **%s**%s\n", tgt.Name, describeIdentifierMap(tgt.IdentifierMap))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func describeIdentifierMap(entries []spec.IdentifierMapEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, len(entries))
	for i, entry := range entries {
		parts[i] = fmt.Sprintf("%s → %s.%s", entry.Column, entry.Identifier.Name, entry.Identifier.Attribute)
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func (f *MarkdownFormatter) formatScenario(sc spec.Scenario) {
	_, _ = fmt.Fprintf(f.writer, "## Scenario: %s\n\n", sc.Name)
	if sc.Description != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", sc.Description)
	}

	for _, c := range sc.Cases {
		_, _ = fmt.Fprintf(f.writer, "### Case: %s\n\n", c.Name)
		if c.Description != "" {
			_, _ = fmt.Fprintf(f.writer, "%s\n\n", c.Description)
		}
		for _, exp := range c.Expected.Data {
			_, _ = fmt.Fprintf(f.writer, "Expected output for `%s`:\n\n", exp.Target)
			f.formatTable(exp.Table)
		}
	}
}

// formatTable re-emits a pipe table verbatim, indented into a code block so
// alignment survives markdown rendering.
func (f *MarkdownFormatter) formatTable(table string) {
	if strings.TrimSpace(table) == "" {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "```")
	for _, line := range strings.Split(strings.TrimRight(table, "\n"), "\n") {
		_, _ = fmt.Fprintln(f.writer, line)
	}
	_, _ = fmt.Fprintln(f.writer, "```")
	_, _ = fmt.Fprintln(f.writer)
}
