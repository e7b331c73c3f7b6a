package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	tbl, err := schema.NewTable("tasks").
		AddColumn(schema.Column{Name: "hours", Affinity: types.AffinityInteger, LWW: true}).
		AddIndex(schema.Index{Name: "idx_tasks_hours", Columns: []string{"hours"}}).
		Build()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	s, err := schema.NewBuilder().AddTable(tbl).Build()
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return s
}

func TestMigrate_CreatesTableAndIndex(t *testing.T) {
	ctx := context.Background()
	e, err := engine.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	defer e.Close()

	s := testSchema(t)
	if err := Migrate(ctx, e, s); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rows, err := e.Query(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='tasks'")
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected tasks table to exist, rows=%v err=%v", rows, err)
	}
	idxRows, err := e.Query(ctx, "SELECT name FROM sqlite_master WHERE type='index' AND name='idx_tasks_hours'")
	if err != nil || len(idxRows) != 1 {
		t.Fatalf("expected index to exist, rows=%v err=%v", idxRows, err)
	}
}

func TestMigrate_IdempotentSecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	e, err := engine.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	defer e.Close()

	s := testSchema(t)
	if err := Migrate(ctx, e, s); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	plan, err := PlanMigration(ctx, e, s)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.IsEmpty() {
		t.Fatalf("expected empty plan after first migrate, got %+v", plan)
	}
	if err := Migrate(ctx, e, s); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestMigrate_AddsMissingIndexToExistingTable(t *testing.T) {
	ctx := context.Background()
	e, err := engine.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	defer e.Close()

	tbl, err := schema.NewTable("tasks").
		AddColumn(schema.Column{Name: "hours", Affinity: types.AffinityInteger}).
		Build()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	s1, err := schema.NewBuilder().AddTable(tbl).Build()
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	if err := Migrate(ctx, e, s1); err != nil {
		t.Fatalf("migrate without index: %v", err)
	}

	s2 := testSchema(t) // same table, now with an index
	if err := Migrate(ctx, e, s2); err != nil {
		t.Fatalf("migrate with index: %v", err)
	}
	idxRows, err := e.Query(ctx, "SELECT name FROM sqlite_master WHERE type='index' AND name='idx_tasks_hours'")
	if err != nil || len(idxRows) != 1 {
		t.Fatalf("expected index to be added, rows=%v err=%v", idxRows, err)
	}
}

func TestValidate_FlagsUnknownIndexColumn(t *testing.T) {
	tbl := &schema.Table{Name: "t", Indices: []schema.Index{{Name: "idx", Columns: []string{"missing"}}}}
	s, err := schema.NewBuilder().AddTable(tbl).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	errs := Validate(s)
	if len(errs) == 0 {
		t.Fatal("expected validation error for unknown index column")
	}
}
