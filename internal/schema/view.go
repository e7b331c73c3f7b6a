package schema

// Join describes one JOIN clause of a structured view select.
type Join struct {
	Kind  string // "inner", "left", etc.
	Table string
	On    string
}

// Select is a structured view definition: the pieces the migrator needs to
// emit a CREATE VIEW statement, and the dependency tracker needs to infer
// table/column/relationship dependencies without parsing SQL.
type Select struct {
	Columns []string
	From    string
	Joins   []Join
	Where   string
	GroupBy []string
	Having  string
	OrderBy []string
	Limit   int
}

// View is either a structured Select or an opaque raw SQL string. Exactly
// one of Select or Raw is set.
type View struct {
	Name   string
	Select *Select
	Raw    string
}

// Tables returns the set of table names a structured view reads from: its
// FROM table and every JOIN target. A raw view returns nil; callers fall
// back to pattern-scanning the SQL text (internal/dependency).
func (v *View) Tables() []string {
	if v.Select == nil {
		return nil
	}
	tables := []string{v.Select.From}
	for _, j := range v.Select.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}
