package lww

import (
	"context"
	"sync"

	"github.com/opensync/reactivestore/internal/access"
	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// DataAccess wraps a plain access.DataAccess with per-column
// last-writer-wins conflict resolution. It embeds the base type rather
// than subclassing it (there is nothing to subclass in Go): every
// non-LWW operation (Insert, GetAllWhere, Count, ...) is inherited
// unchanged, and only the LWW-aware operations below are added.
type DataAccess struct {
	*access.DataAccess

	Clock   *Clock
	Cache   *Cache
	Pending *PendingQueue
}

// New wraps base with LWW support. base's Schema must include
// ReservedTable() so the timestamp store has somewhere to persist.
func New(base *access.DataAccess) *DataAccess {
	store := NewStore(base)
	return &DataAccess{
		DataAccess: base,
		Clock:      NewClock(),
		Cache:      NewCache(store),
		Pending:    NewPendingQueue(),
	}
}

func (d *DataAccess) table(tableName string) (*schema.Table, error) {
	t, ok := d.Schema.Table(tableName)
	if !ok {
		return nil, types.Usagef("lww.table", "unknown table %q", tableName)
	}
	return t, nil
}

func isSystemColumn(name string) bool {
	return name == schema.SystemIDColumn || name == schema.SystemVersionColumn
}

// lwwAffinities returns the declared affinity of every column on t flagged
// lww, keyed by column name.
func lwwAffinities(t *schema.Table) map[string]types.Affinity {
	cols := t.LWWColumns()
	out := make(map[string]types.Affinity, len(cols))
	for _, name := range cols {
		if c, ok := t.Column(name); ok {
			out[name] = c.Affinity
		}
	}
	return out
}

// LWWWriteOptions tunes a single UpdateLWWColumn call. The zero value
// stamps the write with a fresh clock reading and marks it local — what
// every ordinary local edit wants.
type LWWWriteOptions struct {
	// ExplicitTimestamp overrides the generated clock reading. Used by
	// ApplyServerUpdate (server-timestamp) and by replaying a previously
	// recorded write at its original timestamp.
	ExplicitTimestamp string
	// IsFromServer marks the write as server-originated metadata; it is
	// never consulted by the conflict rule, only preserved for
	// observability.
	IsFromServer bool
}

// UpdateLWWColumn writes a single LWW-declared column, comparing its
// (explicit or freshly generated) timestamp against the currently
// recorded one the same way an incoming server value would be — a local
// write at a fresh clock reading always wins in practice, but the
// comparison is the same codepath ApplyServerUpdate uses rather than a
// separate always-wins shortcut. Returns the effective (winning) value.
func (d *DataAccess) UpdateLWWColumn(ctx context.Context, tableName string, pk any, column string, value any, opts LWWWriteOptions) (types.Value, error) {
	t, err := d.table(tableName)
	if err != nil {
		return types.Value{}, err
	}
	if !t.IsLWWColumn(column) {
		return types.Value{}, types.Usagef("lww.UpdateLWWColumn", "table %q: column %q is not declared lww", tableName, column)
	}
	c, _ := t.Column(column)
	encoded, err := types.FromAny(c.Affinity, value)
	if err != nil {
		return types.Value{}, types.Usage("lww.UpdateLWWColumn", err)
	}

	pkStr, err := access.SerializePK(t, pk)
	if err != nil {
		return types.Value{}, err
	}
	ts := opts.ExplicitTimestamp
	if ts == "" {
		ts = d.Clock.Now()
	}

	won, err := d.writeLWWColumn(ctx, t, pkStr, column, c.Affinity, encoded, ts, opts.IsFromServer)
	if err != nil {
		return types.Value{}, err
	}
	if !won {
		current, _, err := d.Cache.Get(ctx, t.Name, pkStr, column, c.Affinity)
		if err != nil {
			return types.Value{}, err
		}
		return current.Value, nil
	}

	// Best-effort: the cache/store entry above is already the source of
	// truth for this column until the next sync, so a failed row write
	// does not abort the local update.
	_ = d.UpdateByPrimaryKey(ctx, tableName, pk, map[string]any{column: value})

	if !opts.IsFromServer {
		d.Pending.Enqueue(tableName, types.PendingUpdate, pkStr, map[string]types.LWWColumnValue{
			column: {Column: column, Value: encoded, Timestamp: ts},
		}, ts)
	}
	return encoded, nil
}

// writeLWWColumn applies the last-writer-wins rule for one column: the
// incoming (timestamp, value) wins iff its timestamp is strictly newer
// than what's currently recorded; an equal timestamp favors the existing
// entry (stable). It returns whether the incoming write won. Callers are
// responsible for writing the underlying row themselves if they need it
// — this only maintains the cache/store, which is authoritative.
func (d *DataAccess) writeLWWColumn(ctx context.Context, t *schema.Table, pkStr, column string, affinity types.Affinity, value types.Value, ts string, fromServer bool) (bool, error) {
	current, ok, err := d.Cache.Get(ctx, t.Name, pkStr, column, affinity)
	if err != nil {
		return false, err
	}
	if ok && !After(ts, current.Timestamp) {
		return false, nil
	}
	if err := d.Cache.Put(ctx, t.Name, pkStr, column, ts, value, fromServer); err != nil {
		// Store.Put failed; keep the cache authoritative regardless, per
		// the best-effort write policy, rather than leave the column in
		// an inconsistent half-written state.
		d.Cache.PutLocal(t.Name, pkStr, column, ts, value, fromServer)
	}
	return true, nil
}

// GetLWWColumnValue returns the current winning value and timestamp of
// one LWW column. The cache/store is authoritative, not the underlying
// table row, since the row write on update is best-effort.
func (d *DataAccess) GetLWWColumnValue(ctx context.Context, tableName string, pk any, column string) (types.LWWColumnValue, bool, error) {
	t, err := d.table(tableName)
	if err != nil {
		return types.LWWColumnValue{}, false, err
	}
	if !t.IsLWWColumn(column) {
		return types.LWWColumnValue{}, false, types.Usagef("lww.GetLWWColumnValue", "table %q: column %q is not declared lww", tableName, column)
	}
	c, _ := t.Column(column)
	pkStr, err := access.SerializePK(t, pk)
	if err != nil {
		return types.LWWColumnValue{}, false, err
	}
	return d.Cache.Get(ctx, tableName, pkStr, column, c.Affinity)
}

// GetLWWRow returns the row's current values with each LWW column
// overridden by its cache value where one is recorded (the base row may
// be stale if a prior best-effort write failed), alongside the winning
// timestamp for each LWW column.
func (d *DataAccess) GetLWWRow(ctx context.Context, tableName string, pk any) (access.Row, map[string]types.LWWColumnValue, error) {
	t, err := d.table(tableName)
	if err != nil {
		return nil, nil, err
	}
	row, ok, err := d.GetByPrimaryKey(ctx, tableName, pk)
	if err != nil || !ok {
		return row, nil, err
	}
	pkStr, err := access.SerializePK(t, pk)
	if err != nil {
		return nil, nil, err
	}
	timestamps, err := d.Cache.RowTimestamps(ctx, tableName, pkStr, lwwAffinities(t))
	if err != nil {
		return nil, nil, err
	}
	for col, lv := range timestamps {
		row[col] = lv.Value.Any()
	}
	return row, timestamps, nil
}

// ApplyServerUpdate applies a server-originated snapshot of a row's
// columns. System columns (systemId, systemVersion) are always skipped —
// they are owned by the local write path, never by a server payload. LWW
// columns are applied only if serverTimestamp is strictly newer than the
// currently recorded timestamp for that column (equal timestamps favor
// the existing entry); non-LWW columns are applied unconditionally,
// since they carry no timestamp to compare. The returned map reports,
// per non-system column, whether the incoming value won.
func (d *DataAccess) ApplyServerUpdate(ctx context.Context, tableName string, pk any, columnValues map[string]any, serverTimestamp string) (map[string]bool, error) {
	t, err := d.table(tableName)
	if err != nil {
		return nil, err
	}
	pkStr, err := access.SerializePK(t, pk)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(columnValues))
	toWrite := make(map[string]any, len(columnValues))

	for col, v := range columnValues {
		if isSystemColumn(col) {
			continue
		}
		if !t.IsLWWColumn(col) {
			toWrite[col] = v
			applied[col] = true
			continue
		}
		c, _ := t.Column(col)
		encoded, err := types.FromAny(c.Affinity, v)
		if err != nil {
			return nil, types.Usage("lww.ApplyServerUpdate", err)
		}
		won, err := d.writeLWWColumn(ctx, t, pkStr, col, c.Affinity, encoded, serverTimestamp, true)
		if err != nil {
			return nil, err
		}
		applied[col] = won
		if won {
			toWrite[col] = v
		}
	}

	if len(toWrite) > 0 {
		// Best-effort, same as UpdateLWWColumn: the cache/store above is
		// already authoritative for any LWW columns in toWrite.
		_ = d.UpdateByPrimaryKey(ctx, tableName, pk, toWrite)
	}
	return applied, nil
}

// BulkRow is one row of an LWW-aware bulk load: its plain column values
// plus, for any LWW columns it carries, the timestamp each was written
// at (and whether the whole row originates from the server).
type BulkRow struct {
	Values           map[string]any
	ColumnTimestamps map[string]string
	IsFromServer     bool
}

type timestampWrite struct {
	pk, column, ts string
	value          types.Value
	fromServer     bool
}

// BulkLoad is internal/access's BulkLoad with per-row, per-column LWW
// resolution spliced in: a row being upserted over an existing one only
// overwrites the columns whose incoming timestamp is newer, leaving
// losing columns as they were. A row that carries a value for an
// LWW-declared column must also carry that column's timestamp — a
// dataset that references an LWW column without any per-row timestamps
// at all, or a row missing the timestamp for one of the LWW columns it
// sets, is a usage error rather than a silently-unconditional write.
// Otherwise this shares BulkLoad's batching, transaction, and
// partial-failure handling unchanged.
func (d *DataAccess) BulkLoad(ctx context.Context, tableName string, rows []BulkRow, opts access.BulkLoadOptions) (*access.BulkLoadResult, error) {
	t, err := d.table(tableName)
	if err != nil {
		return nil, err
	}
	lwwCols := t.LWWColumns()
	if len(lwwCols) > 0 {
		anyTimestamps := false
		for _, r := range rows {
			if len(r.ColumnTimestamps) > 0 {
				anyTimestamps = true
				break
			}
		}
		if !anyTimestamps {
			for _, r := range rows {
				for _, col := range lwwCols {
					if _, ok := r.Values[col]; ok {
						return nil, types.Usagef("lww.BulkLoad", "table %q: dataset sets lww column %q but supplies no per-row timestamps", tableName, col)
					}
				}
			}
		}
		for i, r := range rows {
			for _, col := range lwwCols {
				if _, ok := r.Values[col]; !ok {
					continue
				}
				if _, ok := r.ColumnTimestamps[col]; !ok {
					return nil, types.Usagef("lww.BulkLoad", "table %q: row %d sets lww column %q with no timestamp entry", tableName, i, col)
				}
			}
		}
	}

	var mu sync.Mutex
	var writes []timestampWrite

	hook := func(ctx context.Context, tx engine.Tx, tbl *schema.Table, pk any, values map[string]any, rowIndex int, exists bool) error {
		row := rows[rowIndex]
		won := make(map[string]string, len(row.ColumnTimestamps))

		if exists && len(row.ColumnTimestamps) > 0 {
			pkStr, err := access.SerializePK(tbl, pk)
			if err != nil {
				return err
			}
			// Read through tx: the engine's single connection is held by it.
			stored, err := tx.Query(ctx, "SELECT column_name, timestamp FROM "+TimestampTable+" WHERE table_name = ? AND row_pk = ?", tbl.Name, pkStr)
			if err != nil {
				return err
			}
			current := make(map[string]string, len(stored))
			for _, r := range stored {
				col, _ := r["column_name"].(string)
				current[col], _ = r["timestamp"].(string)
			}
			for col, ts := range row.ColumnTimestamps {
				if cur, ok := current[col]; ok && !After(ts, cur) {
					delete(values, col)
					continue
				}
				won[col] = ts
			}
		} else {
			for col, ts := range row.ColumnTimestamps {
				won[col] = ts
			}
		}

		if exists {
			if err := access.TxUpdateRow(ctx, tx, tbl, pk, values); err != nil {
				return err
			}
		} else if err := access.TxInsertRow(ctx, tx, tbl, values); err != nil {
			return err
		}

		effectivePK := pk
		if !exists {
			effectivePK = insertedPK(tbl, values)
		}
		pkStr, err := access.SerializePK(tbl, effectivePK)
		if err != nil {
			return err
		}
		mu.Lock()
		for col, ts := range won {
			c, _ := tbl.Column(col)
			encoded, err := types.FromAny(c.Affinity, values[col])
			if err != nil {
				mu.Unlock()
				return types.Usage("lww.BulkLoad", err)
			}
			writes = append(writes, timestampWrite{pk: pkStr, column: col, ts: ts, value: encoded, fromServer: row.IsFromServer})
		}
		mu.Unlock()
		return nil
	}

	plainRows := make([]map[string]any, len(rows))
	for i, r := range rows {
		plainRows[i] = r.Values
	}

	result, err := d.DataAccess.BulkLoad(ctx, tableName, plainRows, opts, hook)
	if err != nil {
		return nil, err
	}
	for _, w := range writes {
		if err := d.Cache.Put(ctx, tableName, w.pk, w.column, w.ts, w.value, w.fromServer); err != nil {
			return result, err
		}
	}
	return result, nil
}

// insertedPK reconstructs the primary key of a just-inserted row from
// its (now fully populated, including auto-filled system columns)
// values map.
func insertedPK(t *schema.Table, values map[string]any) any {
	if len(t.PrimaryKey) == 0 {
		return values[schema.SystemIDColumn]
	}
	pk := make(map[string]any, len(t.PrimaryKey))
	for _, col := range t.PrimaryKey {
		pk[col] = values[col]
	}
	return pk
}
