package schema

import (
	"fmt"

	"github.com/opensync/reactivestore/internal/types"
)

// Table is the validated, immutable description of one table: its
// columns (user-defined plus the two auto-injected system columns), its
// indices, and its primary-key column set.
type Table struct {
	Name        string
	Columns     []Column
	Indices     []Index
	PrimaryKey  []string // schema order; len 0 means no declared PK (auto systemId-only)
	AutoIncrement bool   // true when PrimaryKey is a single non-composite auto-increment key
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// LWWColumns returns the names of all columns flagged lww.
func (t *Table) LWWColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.LWW {
			out = append(out, c.Name)
		}
	}
	return out
}

// IsLWWColumn reports whether col is declared lww on this table.
func (t *Table) IsLWWColumn(col string) bool {
	c, ok := t.Column(col)
	return ok && c.LWW
}

// TableBuilder accumulates columns, indices, and key declarations before
// Build validates and freezes them into a Table.
type TableBuilder struct {
	name          string
	columns       []Column
	indices       []Index
	pk            []string
	autoIncrement bool
	errs          []error
}

// NewTable starts building a table named name.
func NewTable(name string) *TableBuilder {
	return &TableBuilder{name: name}
}

// AddColumn appends a user column. Reserved system-column names are
// rejected here rather than silently renamed.
func (b *TableBuilder) AddColumn(col Column) *TableBuilder {
	if isSystemColumnName(col.Name) {
		b.errs = append(b.errs, fmt.Errorf("table %s: column name %q is reserved for the system column", b.name, col.Name))
		return b
	}
	for _, existing := range b.columns {
		if existing.Name == col.Name {
			b.errs = append(b.errs, fmt.Errorf("table %s: duplicate column %q", b.name, col.Name))
			return b
		}
	}
	b.columns = append(b.columns, col)
	return b
}

// AddIndex appends a secondary index.
func (b *TableBuilder) AddIndex(idx Index) *TableBuilder {
	b.indices = append(b.indices, idx)
	return b
}

// WithPrimaryKey declares a (possibly composite) primary key over the
// given column names, in the order they should be used for serialization
// and WHERE-clause construction.
func (b *TableBuilder) WithPrimaryKey(columns ...string) *TableBuilder {
	b.pk = columns
	return b
}

// WithAutoIncrementPrimaryKey declares a single auto-increment primary key
// column. Mutually exclusive with WithPrimaryKey: a table has either a
// single auto-increment key or a (possibly composite) declared key, never
// both.
func (b *TableBuilder) WithAutoIncrementPrimaryKey(column string) *TableBuilder {
	b.pk = []string{column}
	b.autoIncrement = true
	return b
}

// Build validates and freezes the table.
func (b *TableBuilder) Build() (*Table, error) {
	if len(b.errs) > 0 {
		return nil, types.Validation("schema.Table", b.errs[0])
	}
	if b.autoIncrement && len(b.pk) > 1 {
		return nil, types.Validationf("schema.Table", "table %s: auto-increment primary key cannot be composite", b.name)
	}
	for _, pkCol := range b.pk {
		found := false
		for _, c := range b.columns {
			if c.Name == pkCol {
				found = true
				break
			}
		}
		if !found {
			return nil, types.Validationf("schema.Table", "table %s: primary key column %q is not defined", b.name, pkCol)
		}
	}
	for _, idx := range b.indices {
		for _, col := range idx.Columns {
			if _, ok := lookup(b.columns, col); !ok && col != SystemIDColumn && col != SystemVersionColumn {
				return nil, types.Validationf("schema.Table", "table %s: index %s references undefined column %q", b.name, idx.Name, col)
			}
		}
	}

	cols := make([]Column, 0, len(b.columns)+2)
	cols = append(cols, b.columns...)
	cols = append(cols, systemIDColumn(), systemVersionColumn())

	return &Table{
		Name:          b.name,
		Columns:       cols,
		Indices:       append([]Index(nil), b.indices...),
		PrimaryKey:    append([]string(nil), b.pk...),
		AutoIncrement: b.autoIncrement,
	}, nil
}

func lookup(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
