package access

import "github.com/opensync/reactivestore/internal/schema"

// ColumnMetadata is one column's reflected shape.
type ColumnMetadata struct {
	Name     string
	Affinity string
	Required bool
	Unique   bool
}

// TableMetadata is the reflection surface callers use to introspect a
// table at runtime: primary key column(s), required columns, unique
// columns, indices, and per-column type. It is memoized per table name —
// the schema is immutable after construction, so this is safe for the
// DataAccess's lifetime.
type TableMetadata struct {
	Table        string
	PrimaryKey   []string
	Required     []string
	Unique       []string
	Indices      []schema.Index
	Columns      []ColumnMetadata
}

// TableMetadata reflects tableName's shape.
func (d *DataAccess) TableMetadata(tableName string) (*TableMetadata, error) {
	if cached, ok := d.metaCache.Load(tableName); ok {
		return cached.(*TableMetadata), nil
	}
	t, err := d.table(tableName)
	if err != nil {
		return nil, err
	}
	meta := &TableMetadata{
		Table:      t.Name,
		PrimaryKey: pkColumns(t),
		Indices:    t.Indices,
	}
	for _, c := range t.Columns {
		meta.Columns = append(meta.Columns, ColumnMetadata{
			Name:     c.Name,
			Affinity: c.Affinity.String(),
			Required: c.Has(schema.ConstraintNotNull),
			Unique:   c.Has(schema.ConstraintUnique),
		})
		// System columns are auto-filled on insert, so callers never supply them.
		if c.Has(schema.ConstraintNotNull) && c.Name != schema.SystemIDColumn && c.Name != schema.SystemVersionColumn {
			meta.Required = append(meta.Required, c.Name)
		}
		if c.Has(schema.ConstraintUnique) {
			meta.Unique = append(meta.Unique, c.Name)
		}
	}
	d.metaCache.Store(tableName, meta)
	return meta, nil
}
