package dependency

import (
	"reflect"
	"testing"
)

func TestScanTables(t *testing.T) {
	got := scanTables("SELECT * FROM tasks t JOIN projects p ON p.systemId = t.project_id")
	want := []string{"tasks", "projects"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScanSelectColumns_StarYieldsNone(t *testing.T) {
	if got := scanSelectColumns("SELECT * FROM tasks"); got != nil {
		t.Fatalf("expected nil columns for *, got %v", got)
	}
	if got := scanSelectColumns("SELECT t.* FROM tasks t"); got != nil {
		t.Fatalf("expected nil columns for t.*, got %v", got)
	}
}

func TestScanSelectColumns_ExplicitList(t *testing.T) {
	got := scanSelectColumns("SELECT title, t.project_id AS proj FROM tasks t")
	want := []string{"title", "project_id"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScanHasWhereAndJoin(t *testing.T) {
	if !scanHasWhere("SELECT * FROM tasks WHERE title = 'x'") {
		t.Fatal("expected WHERE to be detected")
	}
	if scanHasWhere("SELECT * FROM tasks") {
		t.Fatal("expected no WHERE to be detected")
	}
	if !scanHasJoin("SELECT * FROM tasks JOIN projects ON 1=1") {
		t.Fatal("expected JOIN to be detected")
	}
}
