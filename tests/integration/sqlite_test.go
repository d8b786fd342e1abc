//go:build integration
// +build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/seedspec/seedspec/internal/db"
)

func TestSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seedspec_test.db")
	conn, err := db.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	runHelloFlow(t, ctx, conn)
}

func TestSQLiteReflectRoundTrip(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seedspec_test.db")
	conn, err := db.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if err := db.InitTestDB(ctx, conn, helloSnapshot()); err != nil {
		t.Fatalf("InitTestDB: %v", err)
	}

	snap, err := db.NewReflector(conn, "").Reflect(ctx, nil)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}

	if len(snap.Tables) != 2 {
		t.Fatalf("reflected %d tables, want 2", len(snap.Tables))
	}
	students, ok := snap.TableByName("raw_students")
	if !ok {
		t.Fatal("raw_students not reflected")
	}
	if got := students.ColumnNames(); len(got) != 2 || got[0] != "id" || got[1] != "name" {
		t.Errorf("reflected columns = %v", got)
	}
	if len(students.PrimaryKey) != 1 || students.PrimaryKey[0] != "id" {
		t.Errorf("reflected primary key = %v", students.PrimaryKey)
	}
}
