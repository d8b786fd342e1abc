// Package stack concatenates every case's resolved factory rows into one
// dataset per declared source, replacing named references in
// identifier-mapped columns with generated values and substituting embedded
// references inside literal cells.
package stack

import (
	"fmt"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/factory"
	"github.com/seedspec/seedspec/internal/ids"
	"github.com/seedspec/seedspec/internal/refs"
	"github.com/seedspec/seedspec/internal/spec"
)

// SourceData is the stacked dataset for one source. Scopes records which
// case contributed each row; it parallels Records and is not part of the
// serialized dataset handed to the user.
type SourceData struct {
	Name    string
	Columns []string
	Records []data.Record
	Scopes  []string

	static bool // source has no identifier map; cases must agree on its data
}

// Dataset returns the user-facing dataset without provenance.
func (s *SourceData) Dataset() data.Dataset {
	return data.Dataset{Columns: s.Columns, Records: s.Records}
}

// Stacker drives generation: factory resolution, identifier translation,
// and per-source stacking across all scenarios and cases.
type Stacker struct {
	doc      *spec.Document
	reg      *ids.Registry
	resolver *factory.Resolver
}

// New returns a stacker over a validated document and its registry.
func New(doc *spec.Document, reg *ids.Registry) *Stacker {
	return &Stacker{doc: doc, reg: reg, resolver: factory.NewResolver(doc)}
}

// Generate stacks every case of every scenario, in declaration order, and
// freezes the registry so the matching phase sees exactly the generated
// values. Every declared source appears in the result, even if no case
// contributed rows to it.
func (st *Stacker) Generate() (map[string]*SourceData, error) {
	out := make(map[string]*SourceData, len(st.doc.Sources))
	for i := range st.doc.Sources {
		src := &st.doc.Sources[i]
		out[src.Name] = &SourceData{Name: src.Name, static: len(src.IdentifierMap) == 0}
	}

	for i := range st.doc.Scenarios {
		sc := &st.doc.Scenarios[i]
		for j := range sc.Cases {
			c := &sc.Cases[j]
			if err := st.stackCase(out, sc, c); err != nil {
				return nil, err
			}
		}
	}

	// Rows contributed by blocks that did not enumerate every column are
	// padded with nulls so each dataset is rectangular.
	for _, src := range out {
		for _, row := range src.Records {
			for _, col := range src.Columns {
				if _, ok := row[col]; !ok {
					row[col] = data.Null()
				}
			}
		}
	}

	st.reg.Freeze()
	return out, nil
}

func (st *Stacker) stackCase(out map[string]*SourceData, sc *spec.Scenario, c *spec.Case) error {
	scope := ids.Scope(sc.Name, c.Name)

	sets, err := st.resolver.CaseRows(sc, c)
	if err != nil {
		return err
	}

	// Iterate sources in declaration order so stacking is deterministic.
	for i := range st.doc.Sources {
		src := &st.doc.Sources[i]
		set, ok := sets[src.Name]
		if !ok {
			continue
		}

		applyDefaults(src, set)

		rows, err := st.translateRows(src, set, scope)
		if err != nil {
			return fmt.Errorf("in case %q: %w", scope, err)
		}

		dst := out[src.Name]
		if dst.static {
			if err := stackStatic(dst, set.Columns, rows, scope); err != nil {
				return err
			}
			continue
		}

		for _, col := range set.Columns {
			dst.addColumn(col)
		}
		dst.Records = append(dst.Records, rows...)
		for range rows {
			dst.Scopes = append(dst.Scopes, scope)
		}
	}
	return nil
}

// applyDefaults fills declared default columns on rows that do not already
// carry them.
func applyDefaults(src *spec.Source, set *factory.RowSet) {
	if len(src.Defaults) == 0 {
		return
	}
	for _, def := range src.Defaults {
		has := false
		for _, col := range set.Columns {
			if col == def.Column {
				has = true
				break
			}
		}
		if !has {
			set.Columns = append(set.Columns, def.Column)
		}
		for _, row := range set.Rows {
			if _, present := row[def.Column]; present {
				continue
			}
			if def.Value == nil {
				row[def.Column] = data.Null()
			} else {
				row[def.Column] = data.FromSentinel(*def.Value)
			}
		}
	}
}

// translateRows resolves identifier-mapped columns through the registry and
// substitutes embedded references in the remaining string cells, all under
// the owning case's scope.
func (st *Stacker) translateRows(src *spec.Source, set *factory.RowSet, scope string) ([]data.Record, error) {
	mapped := map[string]spec.IdentifierRef{}
	for _, entry := range src.IdentifierMap {
		mapped[entry.Column] = entry.Identifier
	}

	resolve := func(identifierName, attribute, namedRef string) (string, error) {
		return st.reg.Resolve(scope, identifierName, attribute, namedRef)
	}

	rows := make([]data.Record, 0, len(set.Rows))
	for _, row := range set.Rows {
		translated := row.Clone()

		for col, ref := range mapped {
			cell, ok := translated[col]
			if !ok {
				return nil, fmt.Errorf("source %q is missing column %q mapped to identifier %q",
					src.Name, col, ref.Name)
			}
			if cell.IsNull() {
				continue
			}
			value, err := st.reg.Resolve(scope, ref.Name, ref.Attribute, cell.Text())
			if err != nil {
				return nil, err
			}
			translated[col] = data.String(value)
		}

		for col, cell := range translated {
			if _, isMapped := mapped[col]; isMapped || cell.Kind() != data.KindString {
				continue
			}
			substituted, err := refs.Substitute(cell.Text(), st.reg.Has, resolve)
			if err != nil {
				return nil, err
			}
			translated[col] = data.String(substituted)
		}

		rows = append(rows, translated)
	}
	return rows, nil
}

// stackStatic handles sources without identifier maps: every case stacking
// such a source must supply identical data, since rows cannot be told apart
// by case afterwards.
func stackStatic(dst *SourceData, columns []string, rows []data.Record, scope string) error {
	if len(dst.Records) == 0 && len(dst.Columns) == 0 {
		dst.Columns = columns
		dst.Records = rows
		return nil
	}
	if !sameColumns(dst.Columns, columns) || !sameRecords(dst.Records, rows) {
		return fmt.Errorf("case %q stacks conflicting data onto source %q, which has no identifier map",
			scope, dst.Name)
	}
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameRecords(a, b []data.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (s *SourceData) addColumn(name string) {
	for _, c := range s.Columns {
		if c == name {
			return
		}
	}
	s.Columns = append(s.Columns, name)
}
