package schema

import (
	"strings"
	"testing"

	"github.com/opensync/reactivestore/internal/types"
)

func mustTable(t *testing.T, b *TableBuilder) *Table {
	t.Helper()
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return tbl
}

func TestTableBuilder_SystemColumnsAutoInjected(t *testing.T) {
	tbl := mustTable(t, NewTable("tasks").
		AddColumn(Column{Name: "rowid", Affinity: types.AffinityInteger}).
		AddColumn(Column{Name: "hours", Affinity: types.AffinityInteger, LWW: true}).
		WithAutoIncrementPrimaryKey("rowid"))

	if _, ok := tbl.Column(SystemIDColumn); !ok {
		t.Fatal("expected systemId column to be auto-injected")
	}
	if _, ok := tbl.Column(SystemVersionColumn); !ok {
		t.Fatal("expected systemVersion column to be auto-injected")
	}
}

func TestTableBuilder_RejectsReservedColumnName(t *testing.T) {
	_, err := NewTable("tasks").AddColumn(Column{Name: SystemIDColumn}).Build()
	if err == nil {
		t.Fatal("expected error for reserved column name")
	}
}

func TestTableBuilder_RejectsCompositeAutoIncrement(t *testing.T) {
	b := NewTable("t")
	b.pk = []string{"a", "b"}
	b.autoIncrement = true
	b.columns = []Column{{Name: "a", Affinity: types.AffinityText}, {Name: "b", Affinity: types.AffinityText}}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error: auto-increment key cannot be composite")
	}
}

func TestBuilder_DuplicateTableName(t *testing.T) {
	t1 := mustTable(t, NewTable("tasks"))
	t2 := mustTable(t, NewTable("tasks"))
	_, err := NewBuilder().AddTable(t1).AddTable(t2).Build()
	if err == nil || !strings.Contains(err.Error(), "duplicate table") {
		t.Fatalf("expected duplicate table error, got %v", err)
	}
}

func TestBuilder_ViewShadowsTable(t *testing.T) {
	tbl := mustTable(t, NewTable("tasks"))
	_, err := NewBuilder().AddTable(tbl).AddView(&View{Name: "tasks", Raw: "SELECT 1"}).Build()
	if err == nil || !strings.Contains(err.Error(), "shadows") {
		t.Fatalf("expected shadow error, got %v", err)
	}
}

func TestBuilder_RelationshipMissingTable(t *testing.T) {
	tasks := mustTable(t, NewTable("tasks"))
	_, err := NewBuilder().AddTable(tasks).AddRelationship(Relationship{
		Name: "r", Kind: OneToMany, ParentTable: "tasks", ChildTable: "missing",
	}).Build()
	if err == nil || !strings.Contains(err.Error(), "missing child table") {
		t.Fatalf("expected missing-table error, got %v", err)
	}
}

func TestBuilder_RelationshipLookups(t *testing.T) {
	projects := mustTable(t, NewTable("projects"))
	tasks := mustTable(t, NewTable("tasks"))
	s, err := NewBuilder().AddTable(projects).AddTable(tasks).AddRelationship(Relationship{
		Name: "project_tasks", Kind: OneToMany, ParentTable: "projects", ChildTable: "tasks",
	}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(s.RelationshipsByParent("projects")) != 1 {
		t.Fatal("expected one relationship by parent")
	}
	if len(s.RelationshipsByChild("tasks")) != 1 {
		t.Fatal("expected one relationship by child")
	}
	if len(s.RelationshipsByEndpoint("tasks")) != 1 {
		t.Fatal("expected one relationship by endpoint")
	}
}

func TestDDL_TablesBeforeViews(t *testing.T) {
	tbl := mustTable(t, NewTable("tasks").
		AddColumn(Column{Name: "hours", Affinity: types.AffinityInteger}).
		AddIndex(Index{Name: "idx_hours", Columns: []string{"hours"}}))
	s, err := NewBuilder().AddTable(tbl).AddView(&View{
		Name: "open_tasks",
		Select: &Select{Columns: []string{"systemId"}, From: "tasks", Where: "hours > 0"},
	}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ddl := s.DDL()
	if len(ddl) != 3 {
		t.Fatalf("expected 3 statements (table, index, view), got %d: %v", len(ddl), ddl)
	}
	if !strings.Contains(ddl[0], "CREATE TABLE") {
		t.Fatalf("expected first statement to create table, got %q", ddl[0])
	}
	if !strings.Contains(ddl[len(ddl)-1], "CREATE VIEW") {
		t.Fatalf("expected last statement to create view, got %q", ddl[len(ddl)-1])
	}
}
