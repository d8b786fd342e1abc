// Package expect matches externally supplied actual records back to their
// originating case and compares them against declared expected rows,
// producing a structured diff report.
//
// Assertion failures are not errors: missing rows, unexpected rows, and
// field mismatches are first-class results, and every case is evaluated
// independently. Errors are reserved for configuration and resolution
// problems such as unknown comparators or identifier columns absent from
// the actual data.
package expect

import (
	"fmt"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/ids"
	"github.com/seedspec/seedspec/internal/refs"
	"github.com/seedspec/seedspec/internal/spec"
)

// FieldDiff is one mismatched column in a matched row pair.
type FieldDiff struct {
	Column   string
	Expected data.Value
	Actual   data.Value
}

// RowDiff pairs an expected row with the actual row it matched and lists
// the columns that differ.
type RowDiff struct {
	Expected data.Record
	Actual   data.Record
	Fields   []FieldDiff
}

// CaseResult is the outcome of one expectation block for one case.
type CaseResult struct {
	Scenario string
	Case     string
	Target   string

	MissingColumns []string      // expected columns absent from actual data
	Missing        []data.Record // expected rows with no matching actual row
	Unexpected     []data.Record // attributed actual rows no expected row consumed
	Diffs          []RowDiff     // matched rows with field mismatches
}

// Passed reports whether the case had no failures of any kind.
func (r CaseResult) Passed() bool {
	return len(r.MissingColumns) == 0 && len(r.Missing) == 0 &&
		len(r.Unexpected) == 0 && len(r.Diffs) == 0
}

// Report aggregates all case results of one comparison run.
type Report struct {
	Results []CaseResult
}

// Passed reports whether every case passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Failed returns the failing case results.
func (r *Report) Failed() []CaseResult {
	var failed []CaseResult
	for _, res := range r.Results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Engine reconciles actual target data against the declared expectations,
// using the same registry state the generation phase produced.
type Engine struct {
	doc *spec.Document
	reg *ids.Registry
}

// New returns an engine over a validated document and its frozen registry.
func New(doc *spec.Document, reg *ids.Registry) *Engine {
	return &Engine{doc: doc, reg: reg}
}

// CompareAll compares every supplied target and verifies that every target
// the declaration expects was actually run. An entry with empty records but
// declared columns counts as run; a missing entry does not.
func (e *Engine) CompareAll(actuals map[string]data.Dataset) (*Report, error) {
	for _, sc := range e.doc.Scenarios {
		for _, c := range sc.Cases {
			for _, exp := range c.Expected.Data {
				if _, ok := actuals[exp.Target]; !ok {
					return nil, fmt.Errorf("no actual data supplied for target %q expected by case %q",
						exp.Target, ids.Scope(sc.Name, c.Name))
				}
			}
		}
	}

	report := &Report{}
	for i := range e.doc.Targets {
		name := e.doc.Targets[i].Name
		actual, ok := actuals[name]
		if !ok {
			continue
		}
		results, err := e.CompareTarget(name, actual)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, results...)
	}
	return report, nil
}

// CompareTarget compares one target's actual dataset against every case
// that declares expectations for it.
func (e *Engine) CompareTarget(targetName string, actual data.Dataset) ([]CaseResult, error) {
	tgt, ok := e.doc.TargetByName(targetName)
	if !ok {
		return nil, fmt.Errorf("unknown target: %q", targetName)
	}

	rowScopes, err := e.attribute(tgt, actual)
	if err != nil {
		return nil, err
	}

	var results []CaseResult
	for i := range e.doc.Scenarios {
		sc := &e.doc.Scenarios[i]
		for j := range sc.Cases {
			c := &sc.Cases[j]
			var exps []spec.Expectation
			for _, exp := range c.Expected.Data {
				if exp.Target == targetName {
					exps = append(exps, exp)
				}
			}
			if len(exps) == 0 {
				continue
			}
			caseResults, err := e.compareCase(tgt, sc, c, exps, actual, rowScopes)
			if err != nil {
				return nil, err
			}
			results = append(results, caseResults...)
		}
	}
	return results, nil
}

// attribute assigns each actual record to the case whose generated
// identifier values it carries. A record with some null identifier columns
// is still attributed through its non-null ones; a record whose non-null
// identifier columns point at different cases is ambiguous and fails the
// run. Targets without an identifier map attribute nothing: every case sees
// the full dataset.
func (e *Engine) attribute(tgt *spec.Target, actual data.Dataset) ([]string, error) {
	scopes := make([]string, len(actual.Records))
	if len(tgt.IdentifierMap) == 0 {
		return scopes, nil
	}

	for _, entry := range tgt.IdentifierMap {
		if !actual.HasColumn(entry.Column) {
			return nil, fmt.Errorf("target %q maps column %q to identifier %q, but the actual data columns are %v",
				tgt.Name, entry.Column, entry.Identifier.Name, actual.Columns)
		}
	}

	for i, rec := range actual.Records {
		scope := ""
		sawValue := false
		for _, entry := range tgt.IdentifierMap {
			cell, ok := rec[entry.Column]
			if !ok || cell.IsNull() {
				continue
			}
			sawValue = true
			owner, found := e.reg.Find(entry.Identifier.Name, entry.Identifier.Attribute, cell.Text())
			if !found {
				return nil, fmt.Errorf("target %q row %d: value %q in column %q was never generated for identifier %q",
					tgt.Name, i, cell.Text(), entry.Column, entry.Identifier.Name)
			}
			if scope != "" && scope != owner.Scope {
				return nil, fmt.Errorf("target %q row %d: identifier columns point at both case %q and case %q",
					tgt.Name, i, scope, owner.Scope)
			}
			scope = owner.Scope
		}
		if !sawValue {
			return nil, fmt.Errorf("target %q row %d: every identifier column is null, row cannot be attributed to a case",
				tgt.Name, i)
		}
		scopes[i] = scope
	}
	return scopes, nil
}

// compareCase evaluates every expectation block one case declares for one
// target. Blocks share row consumption, so two blocks for the same target
// can each claim part of the case's rows without flagging the other block's
// matches as unexpected; rows no block consumed are reported once, on the
// first exhaustive block.
func (e *Engine) compareCase(tgt *spec.Target, sc *spec.Scenario, c *spec.Case, exps []spec.Expectation,
	actual data.Dataset, rowScopes []string) ([]CaseResult, error) {

	scope := ids.Scope(sc.Name, c.Name)

	// Rows attributed to this case, in their original order. Targets
	// without an identifier map expose every row to every case.
	var caseRows []int
	for i, s := range rowScopes {
		if s == scope || len(tgt.IdentifierMap) == 0 {
			caseRows = append(caseRows, i)
		}
	}

	consumed := make(map[int]bool)
	results := make([]CaseResult, 0, len(exps))
	exhaustiveIdx := -1

	for _, exp := range exps {
		result := CaseResult{Scenario: sc.Name, Case: c.Name, Target: tgt.Name}

		expColumns, expRows, err := e.expectedRows(tgt, exp, scope)
		if err != nil {
			return nil, err
		}

		comparators, err := e.columnComparators(exp)
		if err != nil {
			return nil, err
		}

		for _, col := range expColumns {
			if !actual.HasColumn(col) {
				result.MissingColumns = append(result.MissingColumns, col)
			}
		}

		keyColumns := e.keyColumns(tgt, expColumns)

		for expIdx, expRow := range expRows {
			actIdx := -1
			if len(keyColumns) > 0 {
				actIdx = matchByKey(expRow, keyColumns, caseRows, actual.Records, consumed)
			} else if expIdx < len(caseRows) && !consumed[caseRows[expIdx]] {
				actIdx = caseRows[expIdx]
			}

			if actIdx < 0 {
				result.Missing = append(result.Missing, expRow)
				continue
			}
			consumed[actIdx] = true

			diff := compareFields(expRow, expColumns, actual.Records[actIdx], actual, comparators)
			if len(diff) > 0 {
				result.Diffs = append(result.Diffs, RowDiff{
					Expected: expRow,
					Actual:   actual.Records[actIdx],
					Fields:   diff,
				})
			}
		}

		if exp.IsExhaustive() && exhaustiveIdx < 0 {
			exhaustiveIdx = len(results)
		}
		results = append(results, result)
	}

	if exhaustiveIdx >= 0 {
		for _, i := range caseRows {
			if !consumed[i] {
				results[exhaustiveIdx].Unexpected = append(results[exhaustiveIdx].Unexpected, actual.Records[i])
			}
		}
	}

	return results, nil
}

// expectedRows parses the expectation table, applies constant values,
// normalizes sentinels, and resolves named and embedded references through
// the frozen registry under the case's scope.
func (e *Engine) expectedRows(tgt *spec.Target, exp spec.Expectation, scope string) ([]string, []data.Record, error) {
	table, err := spec.ParseTable(exp.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("expected table for target %q in case %q: %w", tgt.Name, scope, err)
	}

	columns := append([]string(nil), table.Columns...)
	for _, cv := range exp.Values {
		found := false
		for _, col := range columns {
			if col == cv.Column {
				found = true
				break
			}
		}
		if !found {
			columns = append(columns, cv.Column)
		}
	}

	mapped := map[string]spec.IdentifierRef{}
	for _, entry := range tgt.IdentifierMap {
		mapped[entry.Column] = entry.Identifier
	}

	lookup := func(identifierName, attribute, namedRef string) (string, error) {
		value, ok := e.reg.Lookup(scope, identifierName, attribute, namedRef)
		if !ok {
			return "", fmt.Errorf("named reference %q for identifier %q was never generated in case %q",
				namedRef, identifierName, scope)
		}
		return value, nil
	}

	var rows []data.Record
	for _, raw := range table.Rows {
		row := make(data.Record, len(columns))
		for col, cell := range raw {
			row[col] = data.FromSentinel(cell)
		}
		// Constant values overwrite table cells, so an expectation can pin a
		// column across every row of the case.
		for _, cv := range exp.Values {
			if cv.Value == nil {
				row[cv.Column] = data.Null()
			} else {
				row[cv.Column] = data.FromSentinel(*cv.Value)
			}
		}

		for col, cell := range row {
			if cell.Kind() != data.KindString {
				continue
			}
			if ref, isMapped := mapped[col]; isMapped {
				value, err := lookup(ref.Name, ref.Attribute, cell.Text())
				if err != nil {
					return nil, nil, err
				}
				row[col] = data.String(value)
				continue
			}
			substituted, err := refs.Substitute(cell.Text(), e.reg.Has, lookup)
			if err != nil {
				return nil, nil, err
			}
			row[col] = data.String(substituted)
		}

		rows = append(rows, row)
	}
	return columns, rows, nil
}

// columnComparators resolves the compare_via rules of an expectation.
func (e *Engine) columnComparators(exp spec.Expectation) (map[string]Comparator, error) {
	comparators := map[string]Comparator{}
	for _, rule := range exp.CompareVia {
		cmp, err := comparatorFor(rule)
		if err != nil {
			return nil, err
		}
		comparators[rule.Column] = cmp
	}
	return comparators, nil
}

// keyColumns returns the identifier-mapped columns present in the expected
// table, used to pair expected rows with actual rows exactly.
func (e *Engine) keyColumns(tgt *spec.Target, expColumns []string) []string {
	var keys []string
	for _, entry := range tgt.IdentifierMap {
		for _, col := range expColumns {
			if col == entry.Column {
				keys = append(keys, col)
				break
			}
		}
	}
	return keys
}

// matchByKey finds the first unconsumed case row whose non-null key columns
// equal the expected row's resolved values. Key equality is exact: named
// references resolve to generated values before this point, so there is no
// fuzziness in the tie-break.
func matchByKey(expRow data.Record, keyColumns []string, caseRows []int,
	records []data.Record, consumed map[int]bool) int {

	for _, i := range caseRows {
		if consumed[i] {
			continue
		}
		match := true
		for _, col := range keyColumns {
			expCell := expRow[col]
			if expCell.IsNull() {
				continue
			}
			actCell, ok := records[i][col]
			if !ok || !expCell.Equal(actCell) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// compareFields compares the expected columns of a matched pair. Columns
// absent from the actual dataset are reported once per case, not per row.
func compareFields(expRow data.Record, expColumns []string, actRow data.Record,
	actual data.Dataset, comparators map[string]Comparator) []FieldDiff {

	var diffs []FieldDiff
	for _, col := range expColumns {
		if !actual.HasColumn(col) {
			continue
		}
		expCell := expRow[col]
		actCell, ok := actRow[col]
		if !ok {
			actCell = data.Null()
		}

		cmp, hasRule := comparators[col]
		if !hasRule {
			cmp = exactComparator{}
		}
		if !cmp.Compare(expCell, actCell) {
			diffs = append(diffs, FieldDiff{Column: col, Expected: expCell, Actual: actCell})
		}
	}
	return diffs
}
