package lww

import (
	"context"

	"github.com/opensync/reactivestore/internal/access"
	"github.com/opensync/reactivestore/internal/types"
)

// Store persists per-column LWW timestamps, together with the value that
// won at that timestamp, in TimestampTable via the plain data access core
// — the reserved table is just another table as far as internal/access is
// concerned. Persisting the value alongside the timestamp (not just the
// timestamp) matters because the underlying row write is best-effort: if
// it fails, this table is the only place the winning value still lives
// until the next sync.
type Store struct {
	data *access.DataAccess
}

// NewStore wraps data, whose schema must include ReservedTable().
func NewStore(data *access.DataAccess) *Store {
	return &Store{data: data}
}

func timestampPK(table, rowPK, column string) map[string]any {
	return map[string]any{
		"table_name":  table,
		"row_pk":      rowPK,
		"column_name": column,
	}
}

// Get returns the stored timestamp and value for one column of one row,
// decoded using affinity, or (zero value, false, nil) if no write has
// ever been recorded for it.
func (s *Store) Get(ctx context.Context, table, rowPK, column string, affinity types.Affinity) (types.LWWColumnValue, bool, error) {
	row, ok, err := s.data.GetByPrimaryKey(ctx, TimestampTable, timestampPK(table, rowPK, column))
	if err != nil || !ok {
		return types.LWWColumnValue{}, false, err
	}
	return decodeRow(column, row, affinity)
}

// Put records a write to one column at timestamp ts with value val,
// unconditionally. Callers are expected to have already compared against
// Get's result — Put itself does not enforce LWW ordering.
func (s *Store) Put(ctx context.Context, table, rowPK, column, ts string, val types.Value, fromServer bool) error {
	exists, err := s.data.ExistsByPrimaryKey(ctx, TimestampTable, timestampPK(table, rowPK, column))
	if err != nil {
		return err
	}
	values := encodeValue(ts, val, fromServer)
	if exists {
		return s.data.UpdateByPrimaryKey(ctx, TimestampTable, timestampPK(table, rowPK, column), values)
	}
	values["table_name"] = table
	values["row_pk"] = rowPK
	values["column_name"] = column
	_, err = s.data.Insert(ctx, TimestampTable, values)
	return err
}

// Row returns every column timestamp+value recorded for one row, keyed by
// column name. affinities supplies the declared affinity of each LWW
// column on the table so values can be decoded; a column missing from
// affinities is skipped.
func (s *Store) Row(ctx context.Context, table, rowPK string, affinities map[string]types.Affinity) (map[string]types.LWWColumnValue, error) {
	rows, err := s.data.GetAllWhere(ctx, TimestampTable, access.QueryOptions{
		Where: "table_name = ? AND row_pk = ?",
		Args:  []any{table, rowPK},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.LWWColumnValue, len(rows))
	for _, r := range rows {
		col, _ := r["column_name"].(string)
		affinity, ok := affinities[col]
		if !ok {
			continue
		}
		lv, _, err := decodeRow(col, r, affinity)
		if err != nil {
			return nil, err
		}
		out[col] = lv
	}
	return out, nil
}

func encodeValue(ts string, val types.Value, fromServer bool) map[string]any {
	fromServerInt := int64(0)
	if fromServer {
		fromServerInt = 1
	}
	isNullInt := int64(0)
	if val.Null {
		isNullInt = 1
	}
	return map[string]any{
		"timestamp":        ts,
		"is_from_server":   fromServerInt,
		"value_serialized": val.Serialize(),
		"value_is_null":    isNullInt,
	}
}

func decodeRow(column string, row access.Row, affinity types.Affinity) (types.LWWColumnValue, bool, error) {
	ts, _ := row["timestamp"].(string)
	fromServer := false
	if v, ok := row["is_from_server"].(int64); ok {
		fromServer = v != 0
	}
	isNull := false
	if v, ok := row["value_is_null"].(int64); ok {
		isNull = v != 0
	}
	serialized, _ := row["value_serialized"].(string)
	val, err := decodeStored(affinity, serialized, isNull)
	if err != nil {
		return types.LWWColumnValue{}, false, err
	}
	return types.LWWColumnValue{Column: column, Value: val, Timestamp: ts, IsFromServer: fromServer}, true, nil
}
