// Package schema holds reflected table definitions and their YAML snapshot
// format. A snapshot captures the tables a test warehouse needs so it can be
// rebuilt without access to the production database.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column represents a table column.
type Column struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable"`
	Default  *string `yaml:"default,omitempty"`
}

// Table represents a database table.
type Table struct {
	Name       string   `yaml:"name"`
	Columns    []Column `yaml:"columns"`
	PrimaryKey []string `yaml:"primary_key,omitempty"`
}

// Snapshot is a set of reflected tables, serializable to YAML.
type Snapshot struct {
	Tables []Table `yaml:"tables"`
}

// TableByName returns the named table, if present.
func (s *Snapshot) TableByName(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Sort orders tables and leaves column order untouched, so snapshots diff
// cleanly across runs.
func (s *Snapshot) Sort() {
	sort.Slice(s.Tables, func(i, j int) bool {
		return s.Tables[i].Name < s.Tables[j].Name
	})
}

// ColumnNames returns the table's column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// CreateStatement builds a CREATE TABLE statement from the reflected
// definition. Types are passed through as reflected; the snapshot is meant
// to rebuild tables on the same engine it was taken from.
func (t *Table) CreateStatement(quote func(string) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", quote(t.Name))
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", quote(col.Name), col.Type)
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if col.Default != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *col.Default)
		}
	}
	if len(t.PrimaryKey) > 0 {
		quoted := make([]string, len(t.PrimaryKey))
		for i, col := range t.PrimaryKey {
			quoted[i] = quote(col)
		}
		fmt.Fprintf(&b, ", PRIMARY KEY (%s)", strings.Join(quoted, ", "))
	}
	b.WriteString(")")
	return b.String()
}

// Marshal serializes the snapshot to YAML.
func (s *Snapshot) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Unmarshal parses a YAML snapshot.
func Unmarshal(raw []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema snapshot: %w", err)
	}
	return &s, nil
}

// WriteFile writes the snapshot to a YAML file.
func (s *Snapshot) WriteFile(path string) error {
	raw, err := s.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// ReadFile loads a snapshot from a YAML file.
func ReadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema snapshot: %w", err)
	}
	return Unmarshal(raw)
}
