package stack

import (
	"strings"
	"testing"

	"github.com/seedspec/seedspec/internal/ids"
	"github.com/seedspec/seedspec/internal/spec"
)

func strPtr(s string) *string { return &s }

const studentsTable = "| id | name   |\n| -  | -      |\n| 1  | Buffy  |\n| 2  | Willow |"

func twoCaseDocument() *spec.Document {
	return &spec.Document{
		Version: "0.1",
		Identifiers: []spec.Identifier{
			{Name: "students", Attributes: []spec.Attribute{{Field: "id", Generator: "unique_integer"}}},
		},
		Sources: []spec.Source{
			{
				Name: "raw_students",
				IdentifierMap: []spec.IdentifierMapEntry{
					{Column: "id", Identifier: spec.IdentifierRef{Name: "students", Attribute: "id"}},
				},
			},
		},
		Targets: []spec.Target{{Name: "salutations"}},
		Scenarios: []spec.Scenario{
			{
				Name: "Hello",
				Factory: &spec.InlineFactory{
					Data: []spec.DataBlock{{Source: "raw_students", Table: studentsTable}},
				},
				Cases: []spec.Case{
					{Name: "case1", Expected: spec.Expected{Data: []spec.Expectation{{Target: "salutations"}}}},
					{Name: "case2", Expected: spec.Expected{Data: []spec.Expectation{{Target: "salutations"}}}},
				},
			},
		},
	}
}

func generate(t *testing.T, doc *spec.Document) (map[string]*SourceData, *ids.Registry) {
	t.Helper()
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	reg, err := ids.NewRegistry(doc.Identifiers)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	sources, err := New(doc, reg).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return sources, reg
}

func TestStackingConservation(t *testing.T) {
	sources, _ := generate(t, twoCaseDocument())

	// Two cases each contribute two rows; nothing dropped or duplicated.
	got := len(sources["raw_students"].Records)
	if got != 4 {
		t.Errorf("stacked row count = %d, want 4", got)
	}
}

func TestIdentifierColumnsHoldGeneratedValues(t *testing.T) {
	sources, reg := generate(t, twoCaseDocument())

	namedRefs := map[string]string{"Buffy": "1", "Willow": "2"}
	seen := map[string]bool{}
	src := sources["raw_students"]
	for i, row := range src.Records {
		raw := row["id"].Text()
		if seen[raw] {
			t.Errorf("generated value %q duplicated across rows", raw)
		}
		seen[raw] = true

		// Each stacked cell must hold exactly the value the registry
		// generated for this row's (scope, named reference) pair.
		scope := src.Scopes[i]
		want, ok := reg.Lookup(scope, "students", "id", namedRefs[row["name"].Text()])
		if !ok {
			t.Fatalf("row %d: no registry entry for scope %q", i, scope)
		}
		if raw != want {
			t.Errorf("row %d: stacked id %q, registry generated %q", i, raw, want)
		}

		ref, found := reg.Find("students", "id", raw)
		if !found {
			t.Errorf("stacked value %q unknown to registry", raw)
		} else if ref.Scope != scope {
			t.Errorf("stacked value %q owned by %q, stacked under %q", raw, ref.Scope, scope)
		}
	}
}

func TestSameNamedReferenceSameValueWithinCase(t *testing.T) {
	doc := twoCaseDocument()
	doc.Sources = append(doc.Sources, spec.Source{
		Name: "raw_enrollments",
		IdentifierMap: []spec.IdentifierMapEntry{
			{Column: "student_id", Identifier: spec.IdentifierRef{Name: "students", Attribute: "id"}},
		},
	})
	doc.Scenarios[0].Factory.Data = append(doc.Scenarios[0].Factory.Data, spec.DataBlock{
		Source: "raw_enrollments",
		Table:  "| student_id |\n| -          |\n| 1          |",
	})

	sources, _ := generate(t, doc)

	// Named reference "1" must resolve to the same generated value in both
	// sources within a case, and to different values across cases.
	perCase := map[string]string{}
	for i, row := range sources["raw_students"].Records {
		scope := sources["raw_students"].Scopes[i]
		if sources["raw_students"].Records[i]["name"].Text() == "Buffy" {
			perCase[scope] = row["id"].Text()
		}
	}
	for i, row := range sources["raw_enrollments"].Records {
		scope := sources["raw_enrollments"].Scopes[i]
		if want := perCase[scope]; row["student_id"].Text() != want {
			t.Errorf("case %q: enrollment id %q, student id %q", scope, row["student_id"].Text(), want)
		}
	}
	if perCase[ids.Scope("Hello", "case1")] == perCase[ids.Scope("Hello", "case2")] {
		t.Error("cases share a generated value for the same named reference")
	}
}

func TestProvenanceRetained(t *testing.T) {
	sources, _ := generate(t, twoCaseDocument())

	src := sources["raw_students"]
	if len(src.Scopes) != len(src.Records) {
		t.Fatalf("provenance length %d != record count %d", len(src.Scopes), len(src.Records))
	}
	want := []string{
		ids.Scope("Hello", "case1"), ids.Scope("Hello", "case1"),
		ids.Scope("Hello", "case2"), ids.Scope("Hello", "case2"),
	}
	for i, scope := range src.Scopes {
		if scope != want[i] {
			t.Errorf("row %d scope = %q, want %q", i, scope, want[i])
		}
	}
}

func TestEmbeddedReferencesSubstituted(t *testing.T) {
	doc := twoCaseDocument()
	doc.Scenarios[0].Factory.Data[0].Table =
		"| id | bio                         |\n| -  | -                           |\n| 1  | student students.id[1] here |"
	doc.Scenarios[0].Cases = doc.Scenarios[0].Cases[:1]

	sources, _ := generate(t, doc)

	row := sources["raw_students"].Records[0]
	bio := row["bio"].Text()
	id := row["id"].Text()
	if bio != "student "+id+" here" {
		t.Errorf("embedded reference mismatch: bio=%q id=%q", bio, id)
	}
}

func TestDefaultsFillMissingColumns(t *testing.T) {
	doc := twoCaseDocument()
	doc.Sources[0].Defaults = []spec.ColumnValue{
		{Column: "clique", Value: strPtr("none")},
		{Column: "notes", Value: nil},
	}

	sources, _ := generate(t, doc)

	for _, row := range sources["raw_students"].Records {
		if row["clique"].Text() != "none" {
			t.Errorf("default not applied: %v", row["clique"])
		}
		if !row["notes"].IsNull() {
			t.Errorf("null default not applied: %v", row["notes"])
		}
	}
}

func TestMissingIdentifierColumnFails(t *testing.T) {
	doc := twoCaseDocument()
	doc.Scenarios[0].Factory.Data[0].Table = "| name  |\n| -     |\n| Buffy |"

	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	reg, _ := ids.NewRegistry(doc.Identifiers)
	_, err := New(doc, reg).Generate()
	if err == nil {
		t.Fatal("expected error for missing identifier column")
	}
	if !strings.Contains(err.Error(), "id") || !strings.Contains(err.Error(), "raw_students") {
		t.Errorf("error %q does not name the column and source", err)
	}
}

func TestStaticSourceSharedAcrossCases(t *testing.T) {
	doc := twoCaseDocument()
	doc.Sources = append(doc.Sources, spec.Source{Name: "dim_date"})
	doc.Scenarios[0].Factory.Data = append(doc.Scenarios[0].Factory.Data, spec.DataBlock{
		Source: "dim_date",
		Table:  "| date       | season |\n| -          | -      |\n| 2002-05-21 | 6      |",
	})

	sources, _ := generate(t, doc)

	// Both cases stack identical data; only one copy is kept.
	if got := len(sources["dim_date"].Records); got != 1 {
		t.Errorf("static source row count = %d, want 1", got)
	}
	if got := sources["dim_date"].Records[0]["season"].Text(); got != "6" {
		t.Errorf("static source data mangled: %q", got)
	}
}

func TestStaticSourceConflictFails(t *testing.T) {
	doc := twoCaseDocument()
	doc.Sources = append(doc.Sources, spec.Source{Name: "dim_date"})
	doc.Scenarios[0].Cases[0].Factory = &spec.CaseFactory{
		Data: []spec.DataBlock{{Source: "dim_date", Table: "| date |\n| - |\n| 2002-05-21 |"}},
	}
	doc.Scenarios[0].Cases[1].Factory = &spec.CaseFactory{
		Data: []spec.DataBlock{{Source: "dim_date", Table: "| date |\n| - |\n| 1997-03-10 |"}},
	}

	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	reg, _ := ids.NewRegistry(doc.Identifiers)
	_, err := New(doc, reg).Generate()
	if err == nil {
		t.Fatal("expected conflict error for static source")
	}
	if !strings.Contains(err.Error(), "dim_date") {
		t.Errorf("error %q does not name the source", err)
	}
}

func TestEmptySourceKeepsPlace(t *testing.T) {
	doc := twoCaseDocument()
	doc.Sources = append(doc.Sources, spec.Source{Name: "raw_untouched"})

	sources, _ := generate(t, doc)

	src, ok := sources["raw_untouched"]
	if !ok {
		t.Fatal("untouched source missing from generation output")
	}
	if len(src.Records) != 0 {
		t.Errorf("untouched source has records: %+v", src.Records)
	}
}

func TestRegistryFrozenAfterGenerate(t *testing.T) {
	_, reg := generate(t, twoCaseDocument())
	if !reg.Frozen() {
		t.Error("registry not frozen after generation")
	}
}

func TestDatasetSerializableShape(t *testing.T) {
	sources, _ := generate(t, twoCaseDocument())

	ds := sources["raw_students"].Dataset()
	if len(ds.Columns) == 0 || len(ds.Records) != 4 {
		t.Fatalf("unexpected dataset shape: %+v", ds)
	}
	for _, rec := range ds.Records {
		for _, col := range ds.Columns {
			if _, ok := rec[col]; !ok {
				t.Errorf("record missing column %q: %v", col, rec)
			}
		}
	}
}
