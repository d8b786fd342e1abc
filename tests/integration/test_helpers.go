//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"

	"github.com/seedspec/seedspec"
	"github.com/seedspec/seedspec/internal/db"
	"github.com/seedspec/seedspec/internal/schema"
)

// helloSpec is the shared end-to-end declaration: two students per case,
// one greeting per student.
const helloSpec = `
version: "0.1"
description: Hello world transformations

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

scenarios:
  - scenario: Hello World
    factory:
      data:
        - source: raw_students
          table: |
            | id | name   |
            | -  | -      |
            | 1  | Buffy  |
            | 2  | Willow |
    cases:
      - case: HelloGang
        expected:
          data:
            - target: salutations
              table: |
                | id | salutation   |
                | -  | -            |
                | 1  | Hello Buffy  |
                | 2  | Hello Willow |
      - case: HelloAgain
        expected:
          data:
            - target: salutations
              table: |
                | id | salutation   |
                | -  | -            |
                | 1  | Hello Buffy  |
                | 2  | Hello Willow |
`

// helloSnapshot shapes the test tables. Types are engine-agnostic enough to
// work on all three engines.
func helloSnapshot() *schema.Snapshot {
	return &schema.Snapshot{
		Tables: []schema.Table{
			{
				Name: "raw_students",
				Columns: []schema.Column{
					{Name: "id", Type: "varchar(64)", Nullable: false},
					{Name: "name", Type: "varchar(255)", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "salutations",
				Columns: []schema.Column{
					{Name: "id", Type: "varchar(64)", Nullable: false},
					{Name: "salutation", Type: "varchar(255)", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
		},
	}
}

// runHelloFlow drives the full cycle against one database: init tables,
// load generated sources, run the transformation in SQL, fetch actuals,
// and verify expectations.
func runHelloFlow(t *testing.T, ctx context.Context, conn db.Conn) {
	t.Helper()

	suite, err := seedspec.Compile([]byte(helloSpec))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := db.InitTestDB(ctx, conn, helloSnapshot()); err != nil {
		t.Fatalf("InitTestDB: %v", err)
	}

	sources, err := suite.SourceData()
	if err != nil {
		t.Fatalf("SourceData: %v", err)
	}
	if err := db.LoadSources(ctx, conn, sources); err != nil {
		t.Fatalf("LoadSources: %v", err)
	}

	// The transformation under test, expressed in plain SQL.
	transform := `
		INSERT INTO salutations (id, salutation)
		SELECT id, 'Hello ' || name FROM raw_students
	`
	if conn.Engine() == db.EngineMySQL {
		transform = `
			INSERT INTO salutations (id, salutation)
			SELECT id, CONCAT('Hello ', name) FROM raw_students
		`
	}
	if err := conn.Exec(ctx, transform); err != nil {
		t.Fatalf("transformation failed: %v", err)
	}

	actuals, err := db.FetchActuals(ctx, conn, suite.TargetNames())
	if err != nil {
		t.Fatalf("FetchActuals: %v", err)
	}

	report, err := suite.VerifyExpectations(actuals)
	if err != nil {
		t.Fatalf("VerifyExpectations: %v", err)
	}
	if !report.Passed() {
		t.Errorf("verification failed: %+v", report.Failed())
	}
	if got := len(report.Results); got != 2 {
		t.Errorf("got %d case results, want 2", got)
	}
}
