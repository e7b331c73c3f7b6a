package schema

import (
	"fmt"
	"strings"

	"github.com/opensync/reactivestore/internal/types"
)

// DDL emits the ordered list of statements that materialize s: every
// table's CREATE TABLE followed by its CREATE INDEX statements, then every
// view's CREATE VIEW — tables first so views that select from them are
// valid immediately. The statements are produced from the declarative
// model instead of living as one hand-maintained SQL string.
func (s *Schema) DDL() []string {
	var stmts []string
	for _, t := range s.Tables() {
		stmts = append(stmts, CreateTableSQL(t))
		for _, idx := range t.Indices {
			stmts = append(stmts, CreateIndexSQL(t.Name, idx))
		}
	}
	for _, v := range s.Views() {
		stmts = append(stmts, CreateViewSQL(v))
	}
	return stmts
}

func affinitySQL(a Column) string {
	switch a.Affinity.String() {
	case "integer":
		return "INTEGER"
	case "real":
		return "REAL"
	case "blob":
		return "BLOB"
	default: // text, date
		return "TEXT"
	}
}

func CreateTableSQL(t *Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		line := fmt.Sprintf("  %s %s", c.Name, affinitySQL(c))
		if c.Has(ConstraintNotNull) {
			line += " NOT NULL"
		}
		if c.Has(ConstraintUnique) {
			line += " UNIQUE"
		}
		if c.Default != nil {
			line += fmt.Sprintf(" DEFAULT %s", sqlLiteral(*c.Default))
		}
		lines = append(lines, line)
	}
	if len(t.PrimaryKey) == 1 && t.AutoIncrement {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s AUTOINCREMENT)", t.PrimaryKey[0]))
	} else if len(t.PrimaryKey) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// sqlLiteral renders v as a literal suitable for a DEFAULT clause:
// quoted (with embedded quotes doubled) for text and date affinities,
// hex blob syntax for blobs, and the raw scalar for everything else.
func sqlLiteral(v types.Value) string {
	if v.Null {
		return "NULL"
	}
	switch v.Affinity {
	case types.AffinityText:
		return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
	case types.AffinityDate:
		return "'" + strings.ReplaceAll(v.Scalar().(string), "'", "''") + "'"
	case types.AffinityBlob:
		return fmt.Sprintf("X'%x'", v.Blob)
	default: // integer, real
		return fmt.Sprint(v.Scalar())
	}
}

func CreateIndexSQL(table string, idx Index) string {
	kw := "INDEX"
	if idx.Unique {
		kw = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kw, idx.Name, table, strings.Join(idx.Columns, ", "))
}

func CreateViewSQL(v *View) string {
	if v.Select == nil {
		return fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS %s", v.Name, v.Raw)
	}
	sel := v.Select
	cols := "*"
	if len(sel.Columns) > 0 {
		cols = strings.Join(sel.Columns, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE VIEW IF NOT EXISTS %s AS SELECT %s FROM %s", v.Name, cols, sel.From)
	for _, j := range sel.Joins {
		fmt.Fprintf(&b, " %s JOIN %s ON %s", strings.ToUpper(j.Kind), j.Table, j.On)
	}
	if sel.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", sel.Where)
	}
	if len(sel.GroupBy) > 0 {
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(sel.GroupBy, ", "))
	}
	if sel.Having != "" {
		fmt.Fprintf(&b, " HAVING %s", sel.Having)
	}
	if len(sel.OrderBy) > 0 {
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(sel.OrderBy, ", "))
	}
	if sel.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", sel.Limit)
	}
	return b.String()
}
