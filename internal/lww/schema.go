package lww

import (
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// TimestampTable is the name of the reserved table that persists
// per-column LWW timestamps. It is added to the schema like any other
// table (see ReservedTable).
const TimestampTable = "_lww_column_timestamps"

// ReservedTable returns the schema.Table backing the LWW timestamp
// store. Callers append it to their schema.Builder once, alongside their
// own tables, so internal/migrate creates and maintains it the same way
// it does any user table.
func ReservedTable() *schema.Table {
	t, err := schema.NewTable(TimestampTable).
		AddColumn(schema.Column{Name: "table_name", Affinity: types.AffinityText, Constraints: []schema.Constraint{schema.ConstraintNotNull}}).
		AddColumn(schema.Column{Name: "row_pk", Affinity: types.AffinityText, Constraints: []schema.Constraint{schema.ConstraintNotNull}}).
		AddColumn(schema.Column{Name: "column_name", Affinity: types.AffinityText, Constraints: []schema.Constraint{schema.ConstraintNotNull}}).
		AddColumn(schema.Column{Name: "timestamp", Affinity: types.AffinityText, Constraints: []schema.Constraint{schema.ConstraintNotNull}}).
		AddColumn(schema.Column{Name: "is_from_server", Affinity: types.AffinityInteger}).
		AddColumn(schema.Column{Name: "value_serialized", Affinity: types.AffinityText}).
		AddColumn(schema.Column{Name: "value_is_null", Affinity: types.AffinityInteger}).
		AddIndex(schema.Index{Name: "idx_lww_ts_lookup", Columns: []string{"table_name", "row_pk", "column_name"}, Unique: true}).
		WithPrimaryKey("table_name", "row_pk", "column_name").
		Build()
	if err != nil {
		// ReservedTable's shape is fixed at compile time; a build failure
		// here means the package itself is broken, not caller input.
		panic("lww: invalid reserved table definition: " + err.Error())
	}
	return t
}
