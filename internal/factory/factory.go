// Package factory resolves factory inheritance into concrete per-case row
// sets. Parents are inherited depth-first in declaration order, the
// scenario-level factory is merged on top, and the case-level override is
// merged last. Merging concatenates rows per source unless a later block is
// marked replace, which drops everything earlier layers contributed to that
// source.
package factory

import (
	"fmt"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/spec"
)

// RowSet is the resolved rows one case contributes to one source.
// Identifier-mapped columns still hold named references at this stage;
// everything else is sentinel-normalized.
type RowSet struct {
	Source  string
	Columns []string
	Rows    []data.Record
}

// Resolver composes named factories once and materializes per-case row sets
// on demand.
type Resolver struct {
	doc      *spec.Document
	composed map[string][]spec.DataBlock
}

// NewResolver composes every named factory's inheritance chain. The document
// must already be validated, so chains are acyclic.
func NewResolver(doc *spec.Document) *Resolver {
	r := &Resolver{doc: doc, composed: map[string][]spec.DataBlock{}}
	for _, f := range doc.Factories {
		r.compose(f.Name)
	}
	return r
}

// compose returns the fully inherited block list for a named factory,
// memoized per resolver.
func (r *Resolver) compose(name string) []spec.DataBlock {
	if blocks, ok := r.composed[name]; ok {
		return blocks
	}
	f, _ := r.doc.FactoryByName(name)
	var blocks []spec.DataBlock
	for _, parent := range f.Parents {
		blocks = mergeBlocks(blocks, r.compose(parent))
	}
	blocks = mergeBlocks(blocks, f.Data)
	r.composed[name] = blocks
	return blocks
}

// mergeBlocks layers later blocks over base. A replace block drops every
// base block for its source; otherwise blocks concatenate.
func mergeBlocks(base, layer []spec.DataBlock) []spec.DataBlock {
	merged := make([]spec.DataBlock, len(base))
	copy(merged, base)
	for _, block := range layer {
		if block.Replace {
			kept := merged[:0:0]
			for _, b := range merged {
				if b.Source != block.Source {
					kept = append(kept, b)
				}
			}
			merged = kept
		}
		merged = append(merged, block)
	}
	return merged
}

// CaseBlocks builds the full block chain for one case: named parents of the
// scenario factory, the scenario factory's inline data, then the case
// override.
func (r *Resolver) CaseBlocks(sc *spec.Scenario, c *spec.Case) []spec.DataBlock {
	var blocks []spec.DataBlock
	if sc.Factory != nil {
		for _, parent := range sc.Factory.Parents {
			blocks = mergeBlocks(blocks, r.compose(parent))
		}
		blocks = mergeBlocks(blocks, sc.Factory.Data)
	}
	if c.Factory != nil {
		blocks = mergeBlocks(blocks, c.Factory.Data)
	}
	return blocks
}

// CaseRows materializes the case's block chain into one row set per source,
// in block order. Block values constants fill columns the block's table does
// not enumerate; sentinel tokens normalize to null and booleans.
func (r *Resolver) CaseRows(sc *spec.Scenario, c *spec.Case) (map[string]*RowSet, error) {
	sets := map[string]*RowSet{}

	for _, block := range r.CaseBlocks(sc, c) {
		table, err := spec.ParseTable(block.Table)
		if err != nil {
			return nil, fmt.Errorf("factory table for source %q in case %q: %w", block.Source, c.Name, err)
		}

		set, ok := sets[block.Source]
		if !ok {
			set = &RowSet{Source: block.Source}
			sets[block.Source] = set
		}

		for _, col := range table.Columns {
			set.addColumn(col)
		}
		for _, cv := range block.Values {
			set.addColumn(cv.Column)
		}

		for _, raw := range table.Rows {
			row := make(data.Record, len(raw)+len(block.Values))
			for col, cell := range raw {
				row[col] = data.FromSentinel(cell)
			}
			for _, cv := range block.Values {
				if _, present := row[cv.Column]; present {
					continue
				}
				row[cv.Column] = columnValue(cv)
			}
			set.Rows = append(set.Rows, row)
		}
	}

	return sets, nil
}

func columnValue(cv spec.ColumnValue) data.Value {
	if cv.Value == nil {
		return data.Null()
	}
	return data.FromSentinel(*cv.Value)
}

func (s *RowSet) addColumn(name string) {
	for _, c := range s.Columns {
		if c == name {
			return
		}
	}
	s.Columns = append(s.Columns, name)
}
