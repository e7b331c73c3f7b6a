package schema

import (
	"strings"
	"testing"

	"github.com/opensync/reactivestore/internal/types"
)

func TestFromYAML_TablesColumnsAndIndex(t *testing.T) {
	s, err := FromYAML([]byte(`
tables:
  - name: tasks
    columns:
      - name: rowid
        type: integer
      - name: title
        type: text
        not_null: true
        lww: true
      - name: hours
        type: integer
        default: 0
    indices:
      - name: idx_title
        columns: [title]
    auto_increment: rowid
`))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	tbl, ok := s.Table("tasks")
	if !ok {
		t.Fatal("expected tasks table")
	}
	col, ok := tbl.Column("title")
	if !ok || !col.Has(ConstraintNotNull) || !col.LWW {
		t.Fatalf("expected title to be not-null and lww, got %+v", col)
	}
	hours, ok := tbl.Column("hours")
	if !ok || hours.Default == nil || hours.Default.Int != 0 {
		t.Fatalf("expected hours default 0, got %+v", hours)
	}
	if len(tbl.Indices) != 1 || tbl.Indices[0].Name != "idx_title" {
		t.Fatalf("expected idx_title index, got %+v", tbl.Indices)
	}
	if !tbl.AutoIncrement || tbl.PrimaryKey[0] != "rowid" {
		t.Fatalf("expected rowid auto-increment key, got %+v", tbl)
	}
}

func TestFromYAML_ViewAndRelationship(t *testing.T) {
	s, err := FromYAML([]byte(`
tables:
  - name: projects
  - name: tasks
    columns:
      - name: project_id
        type: text
views:
  - name: open_tasks
    select:
      from: tasks
      where: "hours > 0"
relationships:
  - name: project_tasks
    kind: one_to_many
    parent_table: projects
    child_table: tasks
    child_column: project_id
`))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	if _, ok := s.View("open_tasks"); !ok {
		t.Fatal("expected open_tasks view")
	}
	if len(s.RelationshipsByParent("projects")) != 1 {
		t.Fatal("expected one relationship by parent")
	}
	ddl := s.DDL()
	if !strings.Contains(ddl[len(ddl)-1], "CREATE VIEW") {
		t.Fatalf("expected last DDL statement to create the view, got %q", ddl[len(ddl)-1])
	}
}

func TestFromYAML_UnknownColumnTypeIsValidationError(t *testing.T) {
	_, err := FromYAML([]byte(`
tables:
  - name: tasks
    columns:
      - name: title
        type: bogus
`))
	if err == nil || !strings.Contains(err.Error(), "unknown column type") {
		t.Fatalf("expected unknown-type validation error, got %v", err)
	}
}

func TestFromYAML_MatchesProgrammaticBuilder(t *testing.T) {
	viaYAML, err := FromYAML([]byte(`
tables:
  - name: tasks
    columns:
      - name: hours
        type: integer
`))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}

	tbl := mustTable(t, NewTable("tasks").AddColumn(Column{Name: "hours", Affinity: types.AffinityInteger}))
	viaBuilder, err := NewBuilder().AddTable(tbl).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if viaYAML.DDL()[0] != viaBuilder.DDL()[0] {
		t.Fatalf("expected identical DDL, got %q vs %q", viaYAML.DDL()[0], viaBuilder.DDL()[0])
	}
}
