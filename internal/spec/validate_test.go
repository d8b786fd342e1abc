package spec

import (
	"errors"
	"strings"
	"testing"
)

const minimalTable = "| id |\n| -  |\n| 1  |"

func baseDocument() *Document {
	return &Document{
		Version: "0.1",
		Identifiers: []Identifier{
			{
				Name: "students",
				Attributes: []Attribute{
					{Field: "id", Generator: "unique_integer"},
				},
			},
		},
		Sources: []Source{
			{
				Name: "raw_students",
				IdentifierMap: []IdentifierMapEntry{
					{Column: "id", Identifier: IdentifierRef{Name: "students", Attribute: "id"}},
				},
			},
		},
		Targets: []Target{
			{
				Name: "salutations",
				IdentifierMap: []IdentifierMapEntry{
					{Column: "id", Identifier: IdentifierRef{Name: "students", Attribute: "id"}},
				},
			},
		},
		Scenarios: []Scenario{
			{
				Name: "Hello",
				Cases: []Case{
					{
						Name: "basic",
						Expected: Expected{
							Data: []Expectation{
								{Target: "salutations", Table: minimalTable},
							},
						},
					},
				},
			},
		},
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	if err := baseDocument().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateReferenceErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		want   string
	}{
		{
			name: "unknown identifier in source map",
			mutate: func(d *Document) {
				d.Sources[0].IdentifierMap[0].Identifier.Name = "ghosts"
			},
			want: "ghosts",
		},
		{
			name: "unknown attribute in target map",
			mutate: func(d *Document) {
				d.Targets[0].IdentifierMap[0].Identifier.Attribute = "uuid"
			},
			want: "students.uuid",
		},
		{
			name: "unknown factory parent",
			mutate: func(d *Document) {
				d.Factories = []Factory{{Name: "child", Parents: []string{"missing"}}}
			},
			want: "missing",
		},
		{
			name: "unknown source in factory data",
			mutate: func(d *Document) {
				d.Factories = []Factory{{Name: "f", Data: []DataBlock{{Source: "nope", Table: minimalTable}}}}
			},
			want: "nope",
		},
		{
			name: "unknown target in expectation",
			mutate: func(d *Document) {
				d.Scenarios[0].Cases[0].Expected.Data[0].Target = "absent"
			},
			want: "absent",
		},
		{
			name: "unknown parent in scenario factory",
			mutate: func(d *Document) {
				d.Scenarios[0].Factory = &InlineFactory{Parents: []string{"phantom"}}
			},
			want: "phantom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := baseDocument()
			tt.mutate(doc)
			err := doc.Validate()
			if err == nil {
				t.Fatal("expected error, got none")
			}
			var refErr *ReferenceError
			if !errors.As(err, &refErr) {
				t.Fatalf("expected ReferenceError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name %q", err, tt.want)
			}
		})
	}
}

func TestValidateDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{
			name: "duplicate identifier",
			mutate: func(d *Document) {
				d.Identifiers = append(d.Identifiers, d.Identifiers[0])
			},
		},
		{
			name: "duplicate source",
			mutate: func(d *Document) {
				d.Sources = append(d.Sources, d.Sources[0])
			},
		},
		{
			name: "duplicate case within scenario",
			mutate: func(d *Document) {
				d.Scenarios[0].Cases = append(d.Scenarios[0].Cases, d.Scenarios[0].Cases[0])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := baseDocument()
			tt.mutate(doc)
			err := doc.Validate()
			var dupErr *DuplicateError
			if !errors.As(err, &dupErr) {
				t.Fatalf("expected DuplicateError, got %T: %v", err, err)
			}
		})
	}
}

func TestValidateDetectsFactoryCycle(t *testing.T) {
	doc := baseDocument()
	doc.Factories = []Factory{
		{Name: "a", Parents: []string{"b"}},
		{Name: "b", Parents: []string{"c"}},
		{Name: "c", Parents: []string{"a"}},
	}

	err := doc.Validate()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %T: %v", err, err)
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
version: '0.1'
identifiers:
  - identifier: students
    attributes:
      - field: id
        generator: unique_integer
sources:
  - source: raw_students
    identifier_map:
      - column: id
        identifier:
          name: students
          attribute: id
targets:
  - target: salutations
    identifier_map:
      - column: id
        identifier:
          name: students
          attribute: id
factories:
  - factory: SomeStudents
    data:
      - source: raw_students
        table: |
          | id | name  |
          | -  | -     |
          | 1  | Buffy |
scenarios:
  - scenario: Hello World
    factory:
      parents:
        - SomeStudents
    cases:
      - case: HelloGang
        expected:
          data:
            - target: salutations
              table: |
                | id | salutation  |
                | -  | -           |
                | 1  | Hello Buffy |
`

	parsed, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(parsed.Identifiers) != 1 || parsed.Identifiers[0].Name != "students" {
		t.Errorf("identifiers not parsed: %+v", parsed.Identifiers)
	}
	if len(parsed.Factories) != 1 || parsed.Factories[0].Data[0].Source != "raw_students" {
		t.Errorf("factories not parsed: %+v", parsed.Factories)
	}
	sc := parsed.Scenarios[0]
	if sc.Factory == nil || sc.Factory.Parents[0] != "SomeStudents" {
		t.Errorf("scenario factory not parsed: %+v", sc.Factory)
	}
	if sc.Cases[0].Expected.Data[0].Target != "salutations" {
		t.Errorf("expectation not parsed: %+v", sc.Cases[0])
	}
}

func TestFilterScenarios(t *testing.T) {
	doc := baseDocument()
	doc.Scenarios = append(doc.Scenarios, Scenario{
		Name: "Goodbye",
		Cases: []Case{
			{Name: "basic", Expected: Expected{Data: []Expectation{{Target: "salutations", Table: minimalTable}}}},
		},
	})

	doc.FilterScenarios(func(name string) bool { return name == "Goodbye" }, nil)

	if len(doc.Scenarios) != 1 || doc.Scenarios[0].Name != "Goodbye" {
		t.Errorf("filter kept wrong scenarios: %+v", doc.Scenarios)
	}
}
