// Package access is the data access core: the narrow, schema-validated
// CRUD surface the rest of the system (LWW, reactive, sync) is built
// on, generalized from one hard-coded table to any table declared in
// an internal/schema.Schema.
package access

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// Row is a decoded result row: column name to plain Go value (int64,
// float64, string, []byte, time.Time, or nil).
type Row map[string]any

// DataAccess is the capability-composed data layer: one value carrying a
// required Engine/Schema and optional LWW/dependency-notification
// capabilities, rather than an inheritance-shaped
// LWWDataAccess/RelatedDataAccess hierarchy — callers opt into LWW or
// change notification by wiring the corresponding field/wrapper rather
// than by subclassing.
type DataAccess struct {
	Engine engine.Engine
	Schema *schema.Schema

	// Notify, if set, is called with the DatabaseChange produced by every
	// mutating operation (after commit). internal/reactive's
	// ReactiveDataAccess wires this; a plain DataAccess leaves it nil.
	Notify func(types.DatabaseChange)

	metaCache sync.Map // table name -> *TableMetadata
}

// New builds a DataAccess over e validated against s.
func New(e engine.Engine, s *schema.Schema) *DataAccess {
	return &DataAccess{Engine: e, Schema: s}
}

func (d *DataAccess) table(name string) (*schema.Table, error) {
	t, ok := d.Schema.Table(name)
	if !ok {
		return nil, types.Usagef("access.table", "unknown table %q", name)
	}
	return t, nil
}

func (d *DataAccess) notify(c types.DatabaseChange) {
	if d.Notify != nil {
		d.Notify(c)
	}
}

func encodeColumn(t *schema.Table, col string, raw any) (types.Value, error) {
	c, ok := t.Column(col)
	if !ok {
		return types.Value{}, types.Usagef("access.encodeColumn", "table %q has no column %q", t.Name, col)
	}
	v, err := types.FromAny(c.Affinity, raw)
	if err != nil {
		return types.Value{}, types.Usage("access.encodeColumn", err)
	}
	return v, nil
}

func decodeRow(t *schema.Table, r engine.Row) Row {
	out := make(Row, len(r))
	for col, raw := range r {
		c, ok := t.Column(col)
		if !ok || raw == nil {
			out[col] = raw
			continue
		}
		switch c.Affinity {
		case types.AffinityDate:
			if s, ok := raw.(string); ok {
				if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
					out[col] = parsed
					continue
				}
			}
			out[col] = raw
		default:
			out[col] = raw
		}
	}
	return out
}

// GetByPrimaryKey returns the row identified by pk, or (nil, false, nil)
// if absent.
func (d *DataAccess) GetByPrimaryKey(ctx context.Context, tableName string, pk any) (Row, bool, error) {
	t, err := d.table(tableName)
	if err != nil {
		return nil, false, err
	}
	where, args, err := whereForPK(t, pk)
	if err != nil {
		return nil, false, err
	}
	rows, err := d.Engine.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s", t.Name, where), args...)
	if err != nil {
		return nil, false, types.Engine("access.GetByPrimaryKey", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return decodeRow(t, rows[0]), true, nil
}

// QueryOptions narrows a GetAllWhere call: an optional WHERE clause, its
// bind arguments, ORDER BY, LIMIT and OFFSET.
type QueryOptions struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// GetAllWhere returns the ordered rows matching opts.
func (d *DataAccess) GetAllWhere(ctx context.Context, tableName string, opts QueryOptions) ([]Row, error) {
	t, err := d.table(tableName)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s", t.Name)
	if opts.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", opts.Where)
	}
	if opts.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", opts.OrderBy)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
	}
	rows, err := d.Engine.Query(ctx, b.String(), opts.Args...)
	if err != nil {
		return nil, types.Engine("access.GetAllWhere", err)
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = decodeRow(t, r)
	}
	return out, nil
}

// Count returns the number of rows matching an optional where/args.
func (d *DataAccess) Count(ctx context.Context, tableName, where string, args ...any) (int64, error) {
	t, err := d.table(tableName)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) AS c FROM %s", t.Name)
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := d.Engine.Query(ctx, query, args...)
	if err != nil {
		return 0, types.Engine("access.Count", err)
	}
	return toInt64(rows[0]["c"]), nil
}

// ExistsByPrimaryKey reports whether a row with pk exists.
func (d *DataAccess) ExistsByPrimaryKey(ctx context.Context, tableName string, pk any) (bool, error) {
	t, err := d.table(tableName)
	if err != nil {
		return false, err
	}
	where, args, err := whereForPK(t, pk)
	if err != nil {
		return false, err
	}
	n, err := d.Count(ctx, tableName, where, args...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// Insert validates values against the schema, auto-fills the system
// columns, and inserts a new row. It returns the engine's rowid.
func (d *DataAccess) Insert(ctx context.Context, tableName string, values map[string]any) (int64, error) {
	t, err := d.table(tableName)
	if err != nil {
		return 0, err
	}
	encoded, err := d.prepareInsert(t, values)
	if err != nil {
		return 0, err
	}

	cols := make([]string, 0, len(encoded))
	placeholders := make([]string, 0, len(encoded))
	args := make([]any, 0, len(encoded))
	for col, val := range encoded {
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		args = append(args, val.Scalar())
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	_, rowID, err := d.Engine.Execute(ctx, query, args...)
	if err != nil {
		return 0, types.Engine("access.Insert", err)
	}

	d.notify(types.NewChange(t.Name, types.OpInsert, cols...))
	return rowID, nil
}

// prepareInsert projects values onto the table's columns, rejecting
// unknown columns and missing not-null columns without defaults, and
// auto-fills systemId/systemVersion.
func (d *DataAccess) prepareInsert(t *schema.Table, values map[string]any) (map[string]types.Value, error) {
	out := make(map[string]types.Value, len(values)+2)
	for col, raw := range values {
		c, ok := t.Column(col)
		if !ok {
			return nil, types.Usagef("access.Insert", "table %q has no column %q", t.Name, col)
		}
		v, err := types.FromAny(c.Affinity, raw)
		if err != nil {
			return nil, types.Usage("access.Insert", err)
		}
		out[col] = v
	}
	for _, c := range t.Columns {
		if c.Name == schema.SystemIDColumn || c.Name == schema.SystemVersionColumn {
			continue
		}
		if _, present := out[c.Name]; present {
			continue
		}
		if c.Default != nil {
			out[c.Name] = *c.Default
			continue
		}
		if c.Has(schema.ConstraintNotNull) {
			return nil, types.Usagef("access.Insert", "table %q: missing required column %q", t.Name, c.Name)
		}
	}
	out[schema.SystemIDColumn] = types.Value{Affinity: types.AffinityText, Text: uuid.NewString()}
	out[schema.SystemVersionColumn] = types.Value{Affinity: types.AffinityText, Text: newVersionStamp()}
	return out, nil
}

// newVersionStamp produces a systemVersion stamp: the current wall-clock
// time in nanoseconds, as a decimal string. It is independent of
// internal/lww's clock.
var newVersionStamp = func() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// UpdateByPrimaryKey updates only the specified columns of the row
// identified by pk and bumps systemVersion. An empty values map is a
// usage-error.
func (d *DataAccess) UpdateByPrimaryKey(ctx context.Context, tableName string, pk any, values map[string]any) error {
	t, err := d.table(tableName)
	if err != nil {
		return err
	}
	where, args, err := whereForPK(t, pk)
	if err != nil {
		return err
	}
	return d.updateWhere(ctx, t, where, args, values)
}

// UpdateWhere updates every row matching where/args.
func (d *DataAccess) UpdateWhere(ctx context.Context, tableName, where string, args []any, values map[string]any) error {
	t, err := d.table(tableName)
	if err != nil {
		return err
	}
	return d.updateWhere(ctx, t, where, args, values)
}

func (d *DataAccess) updateWhere(ctx context.Context, t *schema.Table, where string, whereArgs []any, values map[string]any) error {
	if len(values) == 0 {
		return types.Usagef("access.Update", "table %q: empty update value map", t.Name)
	}
	encoded := make(map[string]types.Value, len(values)+1)
	cols := make([]string, 0, len(values)+1)
	for col, raw := range values {
		v, err := encodeColumn(t, col, raw)
		if err != nil {
			return err
		}
		encoded[col] = v
		cols = append(cols, col)
	}
	encoded[schema.SystemVersionColumn] = types.Value{Affinity: types.AffinityText, Text: newVersionStamp()}
	cols = append(cols, schema.SystemVersionColumn)

	setClauses := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(whereArgs))
	for i, col := range cols {
		setClauses[i] = col + " = ?"
		args = append(args, encoded[col].Scalar())
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", t.Name, strings.Join(setClauses, ", "), where)
	if _, _, err := d.Engine.Execute(ctx, query, args...); err != nil {
		return types.Engine("access.Update", err)
	}

	c := types.NewChange(t.Name, types.OpUpdate, cols...)
	c.WhereCondition, c.WhereArgs = where, whereArgs
	d.notify(c)
	return nil
}

// DeleteByPrimaryKey deletes the row identified by pk.
func (d *DataAccess) DeleteByPrimaryKey(ctx context.Context, tableName string, pk any) error {
	t, err := d.table(tableName)
	if err != nil {
		return err
	}
	where, args, err := whereForPK(t, pk)
	if err != nil {
		return err
	}
	return d.deleteWhere(ctx, t, where, args)
}

// DeleteWhere deletes every row matching where/args.
func (d *DataAccess) DeleteWhere(ctx context.Context, tableName, where string, args []any) error {
	t, err := d.table(tableName)
	if err != nil {
		return err
	}
	return d.deleteWhere(ctx, t, where, args)
}

func (d *DataAccess) deleteWhere(ctx context.Context, t *schema.Table, where string, args []any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", t.Name, where)
	if _, _, err := d.Engine.Execute(ctx, query, args...); err != nil {
		return types.Engine("access.Delete", err)
	}
	c := types.NewChange(t.Name, types.OpDelete)
	c.WhereCondition, c.WhereArgs = where, args
	d.notify(c)
	return nil
}
