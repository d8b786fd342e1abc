// Package spec defines the typed in-memory representation of a declaration
// document: identifiers, sources, targets, factories, and scenarios, plus
// structural validation of every cross-reference between them.
package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the top-level declaration.
type Document struct {
	Version     string      `yaml:"version"`
	Description string      `yaml:"description"`
	Identifiers []Identifier `yaml:"identifiers"`
	Sources     []Source     `yaml:"sources"`
	Targets     []Target     `yaml:"targets"`
	Factories   []Factory    `yaml:"factories"`
	Scenarios   []Scenario   `yaml:"scenarios"`
}

// Identifier is a named, reusable definition of one or more key attributes
// and their value generators.
type Identifier struct {
	Name       string      `yaml:"identifier"`
	Attributes []Attribute `yaml:"attributes"`
}

// Attribute is one generated field of an identifier.
type Attribute struct {
	Field     string `yaml:"field"`
	Generator string `yaml:"generator"`
	Prefix    string `yaml:"prefix"` // only used by unique_string
}

// IdentifierRef names an identifier attribute from an identifier map entry.
type IdentifierRef struct {
	Name      string `yaml:"name"`
	Attribute string `yaml:"attribute"`
}

// IdentifierMapEntry binds a column to an identifier attribute. A column
// bound this way holds generated values, not literal text, once compiled.
type IdentifierMapEntry struct {
	Column     string        `yaml:"column"`
	Identifier IdentifierRef `yaml:"identifier"`
}

// ColumnValue is a constant column assignment. A nil Value means null.
type ColumnValue struct {
	Column string  `yaml:"column"`
	Value  *string `yaml:"value"`
}

// Source declares an input dataset of the transformation under test.
type Source struct {
	Name          string               `yaml:"source"`
	Description   string               `yaml:"description"`
	Defaults      []ColumnValue        `yaml:"defaults"`
	IdentifierMap []IdentifierMapEntry `yaml:"identifier_map"`
}

// Target declares an output dataset of the transformation under test.
type Target struct {
	Name          string               `yaml:"target"`
	Description   string               `yaml:"description"`
	IdentifierMap []IdentifierMapEntry `yaml:"identifier_map"`
}

// DataBlock supplies rows for one source. Rows come from the pipe table,
// with Values constants applied to every row afterwards. Replace marks the
// block as a full override of any rows earlier factory layers contributed
// to the same source.
type DataBlock struct {
	Source  string        `yaml:"source"`
	Table   string        `yaml:"table"`
	Values  []ColumnValue `yaml:"values"`
	Replace bool          `yaml:"replace"`
}

// Factory is a reusable, inheritable template producing rows for one or
// more sources. Parents are inherited first, in listed order.
type Factory struct {
	Name        string      `yaml:"factory"`
	Description string      `yaml:"description"`
	Parents     []string    `yaml:"parents"`
	Data        []DataBlock `yaml:"data"`
}

// InlineFactory is the anonymous factory attached to a scenario.
type InlineFactory struct {
	Parents []string    `yaml:"parents"`
	Data    []DataBlock `yaml:"data"`
}

// CaseFactory is the per-case factory override, merged over the scenario
// factory. It cannot name parents of its own.
type CaseFactory struct {
	Data []DataBlock `yaml:"data"`
}

// CompareRule selects a named comparator for one expected column.
type CompareRule struct {
	Column    string  `yaml:"column"`
	Using     string  `yaml:"using"`
	Tolerance float64 `yaml:"tolerance"` // only used by the numeric comparator
}

// Expectation is one expected-data table for a target. Exhaustive defaults
// to true; setting it false declares the expected rows as a non-exhaustive
// subset, so extra actual rows are not failures.
type Expectation struct {
	Target     string        `yaml:"target"`
	Table      string        `yaml:"table"`
	Values     []ColumnValue `yaml:"values"`
	CompareVia []CompareRule `yaml:"compare_via"`
	Exhaustive *bool         `yaml:"exhaustive"`
}

// IsExhaustive reports whether unexpected actual rows fail the case.
func (e Expectation) IsExhaustive() bool {
	return e.Exhaustive == nil || *e.Exhaustive
}

// Expected wraps the expected data blocks of a case.
type Expected struct {
	Data []Expectation `yaml:"data"`
}

// Case is one test unit: an optional factory override plus expected data.
type Case struct {
	Name        string       `yaml:"case"`
	Description string       `yaml:"description"`
	Factory     *CaseFactory `yaml:"factory"`
	Expected    Expected     `yaml:"expected"`
}

// Scenario groups cases sharing a factory.
type Scenario struct {
	Name        string         `yaml:"scenario"`
	Description string         `yaml:"description"`
	Factory     *InlineFactory `yaml:"factory"`
	Cases       []Case         `yaml:"cases"`
}

// Parse unmarshals and validates a declaration document.
func Parse(doc []byte) (*Document, error) {
	d, err := Decode(doc)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Decode unmarshals a declaration document without validating it. Callers
// merging documents from multiple files validate once after the merge.
func Decode(doc []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("failed to parse declaration: %w", err)
	}
	return &d, nil
}

// Merge appends the declarations of other onto d. Used when a declaration
// is split across multiple files.
func (d *Document) Merge(other *Document) {
	d.Identifiers = append(d.Identifiers, other.Identifiers...)
	d.Sources = append(d.Sources, other.Sources...)
	d.Targets = append(d.Targets, other.Targets...)
	d.Factories = append(d.Factories, other.Factories...)
	d.Scenarios = append(d.Scenarios, other.Scenarios...)
}

// SourceByName returns the named source declaration.
func (d *Document) SourceByName(name string) (*Source, bool) {
	for i := range d.Sources {
		if d.Sources[i].Name == name {
			return &d.Sources[i], true
		}
	}
	return nil, false
}

// TargetByName returns the named target declaration.
func (d *Document) TargetByName(name string) (*Target, bool) {
	for i := range d.Targets {
		if d.Targets[i].Name == name {
			return &d.Targets[i], true
		}
	}
	return nil, false
}

// FactoryByName returns the named factory declaration.
func (d *Document) FactoryByName(name string) (*Factory, bool) {
	for i := range d.Factories {
		if d.Factories[i].Name == name {
			return &d.Factories[i], true
		}
	}
	return nil, false
}

// IdentifierByName returns the named identifier declaration.
func (d *Document) IdentifierByName(name string) (*Identifier, bool) {
	for i := range d.Identifiers {
		if d.Identifiers[i].Name == name {
			return &d.Identifiers[i], true
		}
	}
	return nil, false
}

// HasAttribute reports whether the identifier declares the given attribute.
func (id *Identifier) HasAttribute(field string) bool {
	for _, attr := range id.Attributes {
		if attr.Field == field {
			return true
		}
	}
	return false
}

// FilterScenarios drops scenarios and cases whose names do not satisfy the
// given predicates. A nil predicate keeps everything at that level.
func (d *Document) FilterScenarios(scenarioMatch, caseMatch func(string) bool) {
	var kept []Scenario
	for _, sc := range d.Scenarios {
		if scenarioMatch != nil && !scenarioMatch(sc.Name) {
			continue
		}
		if caseMatch != nil {
			var cases []Case
			for _, c := range sc.Cases {
				if caseMatch(c.Name) {
					cases = append(cases, c)
				}
			}
			sc.Cases = cases
		}
		if len(sc.Cases) > 0 {
			kept = append(kept, sc)
		}
	}
	d.Scenarios = kept
}
