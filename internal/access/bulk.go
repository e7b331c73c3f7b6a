package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// BulkLoadOptions configures BulkLoad: batching, upsert-vs-insert-only
// semantics, and how strictly bad rows are treated.
type BulkLoadOptions struct {
	BatchSize        int  // default 500
	ClearTableFirst  bool
	UpsertMode       bool
	AllowPartialData bool
	CollectErrors    bool
	ValidateData     bool
	IsFromServer     bool
}

// DefaultBulkLoadOptions returns the documented defaults.
func DefaultBulkLoadOptions() BulkLoadOptions {
	return BulkLoadOptions{BatchSize: 500, ValidateData: true}
}

// RowError records a per-row failure when CollectErrors is set.
type RowError struct {
	Index int
	Err   error
}

// BulkLoadResult is the partial-failure-aware outcome of a bulk load.
type BulkLoadResult struct {
	Processed int
	Inserted  int
	Updated   int
	Skipped   int
	Errors    []RowError
}

// RowHook lets a caller (internal/lww) override how a single row is
// inserted or updated within the shared transaction, while reusing this
// package's batching, projection, and validation machinery. exists
// reports whether the row's primary key was already present (only
// meaningful when opts.UpsertMode is set).
type RowHook func(ctx context.Context, tx engine.Tx, t *schema.Table, pk any, values map[string]any, rowIndex int, exists bool) error

// BulkLoad loads rows into tableName in one transaction, batched by
// opts.BatchSize. hook, if non-nil, replaces the default per-row
// insert/update with custom logic (internal/lww plugs in per-column LWW
// timestamp resolution here); a nil hook performs a plain insert/update
// using this package's own Insert/Update semantics.
func (d *DataAccess) BulkLoad(ctx context.Context, tableName string, rows []map[string]any, opts BulkLoadOptions, hook RowHook) (*BulkLoadResult, error) {
	t, err := d.table(tableName)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	result := &BulkLoadResult{}
	err = d.Engine.Transaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		if opts.ClearTableFirst {
			if _, _, err := tx.Execute(ctx, fmt.Sprintf("DELETE FROM %s", t.Name)); err != nil {
				return types.Engine("access.BulkLoad", err)
			}
		}
		for start := 0; start < len(rows); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(rows) {
				end = len(rows)
			}
			for i := start; i < end; i++ {
				if err := d.bulkLoadRow(ctx, tx, t, rows[i], i, opts, hook, result); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := types.NewChange(t.Name, bulkOperation(opts))
	d.notify(c)
	return result, nil
}

func bulkOperation(opts BulkLoadOptions) types.Operation {
	if opts.UpsertMode {
		return types.OpBulkUpdate
	}
	return types.OpBulkInsert
}

// projectRow drops columns the table doesn't declare and encodes the
// rest per their declared affinity.
func projectRow(t *schema.Table, raw map[string]any) (map[string]types.Value, error) {
	out := make(map[string]types.Value, len(raw))
	for col, v := range raw {
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		enc, err := types.FromAny(c.Affinity, v)
		if err != nil {
			return nil, types.Usage("access.projectRow", err)
		}
		out[col] = enc
	}
	return out, nil
}

func validateRequired(t *schema.Table, values map[string]types.Value) error {
	for _, c := range t.Columns {
		if c.Name == schema.SystemIDColumn || c.Name == schema.SystemVersionColumn {
			continue
		}
		if _, ok := values[c.Name]; ok {
			continue
		}
		if c.Default != nil {
			continue
		}
		if c.Has(schema.ConstraintNotNull) {
			return types.Usagef("access.validateRequired", "table %q: missing required column %q", t.Name, c.Name)
		}
	}
	return nil
}

func (d *DataAccess) bulkLoadRow(ctx context.Context, tx engine.Tx, t *schema.Table, raw map[string]any, index int, opts BulkLoadOptions, hook RowHook, result *BulkLoadResult) error {
	result.Processed++

	projected, err := projectRow(t, raw)
	if err != nil {
		return d.bulkLoadFail(result, index, err, opts)
	}
	if opts.ValidateData {
		if err := validateRequired(t, projected); err != nil {
			return d.bulkLoadFail(result, index, err, opts)
		}
	}

	values := make(map[string]any, len(projected))
	for col, v := range projected {
		values[col] = v.Any()
	}

	if opts.UpsertMode {
		pkCols := pkColumns(t)
		pk := make(map[string]any, len(pkCols))
		havePK := true
		for _, col := range pkCols {
			v, ok := values[col]
			if !ok {
				havePK = false
				break
			}
			pk[col] = v
		}
		// A row that doesn't carry its own primary key has no identity to
		// probe against — it's always a new row, the way Insert has no
		// upsert concept either.
		exists := false
		var err error
		if havePK {
			exists, err = rowExists(ctx, tx, t, pk)
			if err != nil {
				return d.bulkLoadFail(result, index, err, opts)
			}
		} else {
			pk = nil
		}
		if hook != nil {
			if err := hook(ctx, tx, t, pk, values, index, exists); err != nil {
				return d.bulkLoadFail(result, index, err, opts)
			}
		} else if exists {
			if err := defaultTxUpdate(ctx, tx, t, pk, values); err != nil {
				return d.bulkLoadFail(result, index, err, opts)
			}
		} else {
			if err := defaultTxInsert(ctx, tx, t, values); err != nil {
				return d.bulkLoadFail(result, index, err, opts)
			}
		}
		if exists {
			result.Updated++
		} else {
			result.Inserted++
		}
		return nil
	}

	if hook != nil {
		if err := hook(ctx, tx, t, nil, values, index, false); err != nil {
			return d.bulkLoadFail(result, index, err, opts)
		}
	} else if err := defaultTxInsert(ctx, tx, t, values); err != nil {
		return d.bulkLoadFail(result, index, err, opts)
	}
	result.Inserted++
	return nil
}

func (d *DataAccess) bulkLoadFail(result *BulkLoadResult, index int, err error, opts BulkLoadOptions) error {
	if opts.AllowPartialData {
		result.Skipped++
		if opts.CollectErrors {
			result.Errors = append(result.Errors, RowError{Index: index, Err: err})
		}
		return nil
	}
	return err
}

// TxInsertRow and TxUpdateRow expose this package's transaction-scoped
// row writers to internal/lww, which needs to interleave its own
// per-column timestamp comparison between BulkLoad's existence probe and
// the actual write while still sharing BulkLoad's batching and
// transaction.

// TxInsertRow inserts values (auto-filling systemId/systemVersion if
// absent) inside an already-open transaction.
func TxInsertRow(ctx context.Context, tx engine.Tx, t *schema.Table, values map[string]any) error {
	return defaultTxInsert(ctx, tx, t, values)
}

// TxUpdateRow updates the row identified by pk with values (bumping
// systemVersion) inside an already-open transaction.
func TxUpdateRow(ctx context.Context, tx engine.Tx, t *schema.Table, pk any, values map[string]any) error {
	return defaultTxUpdate(ctx, tx, t, pk, values)
}

func rowExists(ctx context.Context, tx engine.Tx, t *schema.Table, pk map[string]any) (bool, error) {
	where, args, err := whereForPK(t, pk)
	if err != nil {
		return false, err
	}
	rows, err := tx.Query(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE %s", t.Name, where), args...)
	if err != nil {
		return false, types.Engine("access.rowExists", err)
	}
	return len(rows) > 0, nil
}

func defaultTxInsert(ctx context.Context, tx engine.Tx, t *schema.Table, values map[string]any) error {
	if _, ok := values[schema.SystemIDColumn]; !ok {
		values[schema.SystemIDColumn] = uuid.NewString()
	}
	if _, ok := values[schema.SystemVersionColumn]; !ok {
		values[schema.SystemVersionColumn] = newVersionStamp()
	}
	cols := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for col, v := range values {
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, _, err := tx.Execute(ctx, query, args...); err != nil {
		return types.Engine("access.defaultTxInsert", err)
	}
	return nil
}

func defaultTxUpdate(ctx context.Context, tx engine.Tx, t *schema.Table, pk any, values map[string]any) error {
	where, whereArgs, err := whereForPK(t, pk)
	if err != nil {
		return err
	}
	setCols := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1+len(whereArgs))
	for col, v := range values {
		setCols = append(setCols, col+" = ?")
		args = append(args, v)
	}
	setCols = append(setCols, schema.SystemVersionColumn+" = ?")
	args = append(args, newVersionStamp())
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", t.Name, strings.Join(setCols, ", "), where)
	if _, _, err := tx.Execute(ctx, query, args...); err != nil {
		return types.Engine("access.defaultTxUpdate", err)
	}
	return nil
}
