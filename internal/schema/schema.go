package schema

import (
	"fmt"

	"github.com/opensync/reactivestore/internal/types"
)

// Schema is the fully validated, immutable collection of tables, views,
// and relationships that drives both migration (internal/migrate) and
// dependency analysis (internal/dependency).
type Schema struct {
	tables        map[string]*Table
	tableOrder    []string
	views         map[string]*View
	viewOrder     []string
	relationships []Relationship
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// View looks up a view by name.
func (s *Schema) View(name string) (*View, bool) {
	v, ok := s.views[name]
	return v, ok
}

// Tables returns all tables in declaration order.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, 0, len(s.tableOrder))
	for _, name := range s.tableOrder {
		out = append(out, s.tables[name])
	}
	return out
}

// Views returns all views in declaration order.
func (s *Schema) Views() []*View {
	out := make([]*View, 0, len(s.viewOrder))
	for _, name := range s.viewOrder {
		out = append(out, s.views[name])
	}
	return out
}

// Relationship looks up a relationship by name.
func (s *Schema) Relationship(name string) (Relationship, bool) {
	for _, r := range s.relationships {
		if r.Name == name {
			return r, true
		}
	}
	return Relationship{}, false
}

// RelationshipsByParent returns every relationship whose parent table is
// table.
func (s *Schema) RelationshipsByParent(table string) []Relationship {
	var out []Relationship
	for _, r := range s.relationships {
		if r.ParentTable == table {
			out = append(out, r)
		}
	}
	return out
}

// RelationshipsByChild returns every relationship whose child table is
// table.
func (s *Schema) RelationshipsByChild(table string) []Relationship {
	var out []Relationship
	for _, r := range s.relationships {
		if r.ChildTable == table {
			out = append(out, r)
		}
	}
	return out
}

// RelationshipsByEndpoint returns every relationship touching table as
// either parent or child.
func (s *Schema) RelationshipsByEndpoint(table string) []Relationship {
	var out []Relationship
	for _, r := range s.relationships {
		if r.ParentTable == table || r.ChildTable == table {
			out = append(out, r)
		}
	}
	return out
}

// Builder assembles a Schema from tables, views, and relationships,
// collecting validation errors rather than failing on the first one so
// callers see every problem in one pass.
type Builder struct {
	tables        map[string]*Table
	tableOrder    []string
	views         map[string]*View
	viewOrder     []string
	relationships []Relationship
	errs          []string
}

// NewBuilder starts an empty schema.
func NewBuilder() *Builder {
	return &Builder{
		tables: make(map[string]*Table),
		views:  make(map[string]*View),
	}
}

// AddTable registers a built table. Duplicate table names are a
// validation error.
func (b *Builder) AddTable(t *Table) *Builder {
	if _, exists := b.tables[t.Name]; exists {
		b.errs = append(b.errs, fmt.Sprintf("duplicate table name %q", t.Name))
		return b
	}
	b.tables[t.Name] = t
	b.tableOrder = append(b.tableOrder, t.Name)
	return b
}

// AddView registers a view. A view name colliding with another view, or
// with any table name, is a validation error (no view may shadow a
// table).
func (b *Builder) AddView(v *View) *Builder {
	if _, exists := b.views[v.Name]; exists {
		b.errs = append(b.errs, fmt.Sprintf("duplicate view name %q", v.Name))
		return b
	}
	if _, exists := b.tables[v.Name]; exists {
		b.errs = append(b.errs, fmt.Sprintf("view %q shadows a table of the same name", v.Name))
		return b
	}
	b.views[v.Name] = v
	b.viewOrder = append(b.viewOrder, v.Name)
	return b
}

// AddRelationship registers a relationship. Both endpoint tables (and the
// junction table, for many-to-many) must already be present.
func (b *Builder) AddRelationship(r Relationship) *Builder {
	if _, ok := b.tables[r.ParentTable]; !ok {
		b.errs = append(b.errs, fmt.Sprintf("relationship %q references missing parent table %q", r.Name, r.ParentTable))
	}
	if _, ok := b.tables[r.ChildTable]; !ok {
		b.errs = append(b.errs, fmt.Sprintf("relationship %q references missing child table %q", r.Name, r.ChildTable))
	}
	if r.Kind == ManyToMany {
		if _, ok := b.tables[r.JunctionTable]; !ok {
			b.errs = append(b.errs, fmt.Sprintf("relationship %q references missing junction table %q", r.Name, r.JunctionTable))
		}
	}
	b.relationships = append(b.relationships, r)
	return b
}

// Build validates cross-references and freezes the schema. All collected
// errors are joined into a single validation-error.
func (b *Builder) Build() (*Schema, error) {
	if len(b.errs) > 0 {
		msg := b.errs[0]
		for _, e := range b.errs[1:] {
			msg += "; " + e
		}
		return nil, types.Validationf("schema.Build", "%s", msg)
	}
	return &Schema{
		tables:        b.tables,
		tableOrder:    append([]string(nil), b.tableOrder...),
		views:         b.views,
		viewOrder:     append([]string(nil), b.viewOrder...),
		relationships: append([]Relationship(nil), b.relationships...),
	}, nil
}

// Errors returns the validation problems collected so far, without
// attempting to Build. Useful for pre-flight checks.
func (b *Builder) Errors() []string {
	return append([]string(nil), b.errs...)
}
