// Package schema is the declarative model for tables, columns, indices,
// views, and relationships. It is immutable once built:
// a Schema value produced by Build is never mutated afterward, and every
// downstream component (migration, dependency analysis, data access
// metadata) treats it as a read-only description.
//
// A table's CREATE TABLE string is the *output* of a builder rather
// than the source of truth, so the migrator and the dependency tracker
// can reflect on the same structure programmatically instead of
// re-parsing SQL.
package schema

import "github.com/opensync/reactivestore/internal/types"

// Constraint is a single-column constraint flag.
type Constraint int

const (
	ConstraintPrimaryKey Constraint = iota
	ConstraintUnique
	ConstraintNotNull
)

// SystemIDColumn and SystemVersionColumn are the reserved column names
// auto-injected into every table. User definitions using either name are
// rejected at build time.
const (
	SystemIDColumn      = "systemId"
	SystemVersionColumn = "systemVersion"
)

// Column describes one column of a Table.
type Column struct {
	Name        string
	Affinity    types.Affinity
	Constraints []Constraint
	Default     *types.Value
	LWW         bool
}

// Has reports whether the column carries constraint c.
func (c Column) Has(c2 Constraint) bool {
	for _, c1 := range c.Constraints {
		if c1 == c2 {
			return true
		}
	}
	return false
}

func isSystemColumnName(name string) bool {
	return name == SystemIDColumn || name == SystemVersionColumn
}

func systemIDColumn() Column {
	return Column{
		Name:        SystemIDColumn,
		Affinity:    types.AffinityText,
		Constraints: []Constraint{ConstraintNotNull, ConstraintUnique},
	}
}

func systemVersionColumn() Column {
	return Column{
		Name:        SystemVersionColumn,
		Affinity:    types.AffinityText,
		Constraints: []Constraint{ConstraintNotNull},
	}
}
