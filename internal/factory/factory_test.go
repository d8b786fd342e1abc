package factory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/spec"
)

func strPtr(s string) *string { return &s }

func testDocument() *spec.Document {
	return &spec.Document{
		Version: "0.1",
		Identifiers: []spec.Identifier{
			{Name: "students", Attributes: []spec.Attribute{{Field: "id", Generator: "unique_integer"}}},
		},
		Sources: []spec.Source{
			{Name: "raw_students"},
			{Name: "raw_schools"},
		},
		Targets: []spec.Target{{Name: "out"}},
		Factories: []spec.Factory{
			{
				Name: "Base",
				Data: []spec.DataBlock{
					{
						Source: "raw_students",
						Table:  "| id | name  |\n| -  | -     |\n| 1  | Buffy |",
					},
				},
			},
			{
				Name:    "WithWillow",
				Parents: []string{"Base"},
				Data: []spec.DataBlock{
					{
						Source: "raw_students",
						Table:  "| id | name   |\n| -  | -      |\n| 2  | Willow |",
					},
				},
			},
			{
				Name:    "OnlyXander",
				Parents: []string{"WithWillow"},
				Data: []spec.DataBlock{
					{
						Source:  "raw_students",
						Table:   "| id | name   |\n| -  | -      |\n| 3  | Xander |",
						Replace: true,
					},
				},
			},
		},
	}
}

func oneCase(parents []string, caseData []spec.DataBlock) (*spec.Scenario, *spec.Case) {
	c := &spec.Case{Name: "c1"}
	if caseData != nil {
		c.Factory = &spec.CaseFactory{Data: caseData}
	}
	sc := &spec.Scenario{
		Name:    "s1",
		Factory: &spec.InlineFactory{Parents: parents},
		Cases:   []spec.Case{*c},
	}
	return sc, c
}

func rowNames(rows []data.Record) []string {
	var names []string
	for _, r := range rows {
		names = append(names, r["name"].Text())
	}
	return names
}

func TestParentRowsConcatenateInOrder(t *testing.T) {
	doc := testDocument()
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"WithWillow"}, nil)

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	got := rowNames(sets["raw_students"].Rows)
	want := []string{"Buffy", "Willow"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceBlockDropsInheritedRows(t *testing.T) {
	doc := testDocument()
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"OnlyXander"}, nil)

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	got := rowNames(sets["raw_students"].Rows)
	want := []string{"Xander"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCaseOverrideConcatenates(t *testing.T) {
	doc := testDocument()
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"Base"}, []spec.DataBlock{
		{
			Source: "raw_students",
			Table:  "| id | name  |\n| -  | -     |\n| 9  | Faith |",
		},
	})

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	got := rowNames(sets["raw_students"].Rows)
	want := []string{"Buffy", "Faith"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCaseReplaceOverridesScenarioRows(t *testing.T) {
	doc := testDocument()
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"WithWillow"}, []spec.DataBlock{
		{
			Source:  "raw_students",
			Table:   "| id | name  |\n| -  | -     |\n| 9  | Faith |",
			Replace: true,
		},
	})

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	got := rowNames(sets["raw_students"].Rows)
	want := []string{"Faith"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestValuesConstantsFillMissingColumns(t *testing.T) {
	doc := testDocument()
	doc.Factories = []spec.Factory{
		{
			Name: "WithClique",
			Data: []spec.DataBlock{
				{
					Source: "raw_students",
					Table:  "| id | name  |\n| -  | -     |\n| 1  | Buffy |",
					Values: []spec.ColumnValue{
						{Column: "clique", Value: strPtr("Scooby Gang")},
						{Column: "name", Value: strPtr("ignored, table wins")},
						{Column: "graduated", Value: nil},
					},
				},
			},
		},
	}
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"WithClique"}, nil)

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	set := sets["raw_students"]
	row := set.Rows[0]
	if got := row["clique"].Text(); got != "Scooby Gang" {
		t.Errorf("constant column not applied: %q", got)
	}
	if got := row["name"].Text(); got != "Buffy" {
		t.Errorf("constant overwrote a table cell: %q", got)
	}
	if !row["graduated"].IsNull() {
		t.Errorf("null constant not applied: %v", row["graduated"])
	}

	wantColumns := []string{"id", "name", "clique", "graduated"}
	if diff := cmp.Diff(wantColumns, set.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestSentinelNormalization(t *testing.T) {
	doc := testDocument()
	doc.Factories = []spec.Factory{
		{
			Name: "Sentinels",
			Data: []spec.DataBlock{
				{
					Source: "raw_students",
					Table:  "| id | name   | active  |\n| -  | -      | -       |\n| 1  | {NULL} | {True}  |\n| 2  | Willow | {False} |",
				},
			},
		},
	}
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"Sentinels"}, nil)

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	rows := sets["raw_students"].Rows
	if !rows[0]["name"].IsNull() {
		t.Errorf("{NULL} not normalized: %v", rows[0]["name"])
	}
	if !rows[0]["active"].Equal(data.Bool(true)) {
		t.Errorf("{True} not normalized: %v", rows[0]["active"])
	}
	if !rows[1]["active"].Equal(data.Bool(false)) {
		t.Errorf("{False} not normalized: %v", rows[1]["active"])
	}
}

func TestMultipleSourcesFromOneChain(t *testing.T) {
	doc := testDocument()
	doc.Factories = append(doc.Factories, spec.Factory{
		Name:    "WithSchools",
		Parents: []string{"Base"},
		Data: []spec.DataBlock{
			{
				Source: "raw_schools",
				Table:  "| id | name      |\n| -  | -         |\n| s1 | Sunnydale |",
			},
		},
	})
	resolver := NewResolver(doc)
	sc, c := oneCase([]string{"WithSchools"}, nil)

	sets, err := resolver.CaseRows(sc, c)
	if err != nil {
		t.Fatalf("CaseRows: %v", err)
	}

	if len(sets) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sets))
	}
	if len(sets["raw_students"].Rows) != 1 || len(sets["raw_schools"].Rows) != 1 {
		t.Errorf("unexpected row counts: students=%d schools=%d",
			len(sets["raw_students"].Rows), len(sets["raw_schools"].Rows))
	}
}
