package access

import (
	"fmt"
	"strings"

	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// pkColumns returns the table's effective primary-key column list: the
// declared PrimaryKey, or [systemId] if none was declared (every table
// gets a system identity column regardless).
func pkColumns(t *schema.Table) []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	return []string{schema.SystemIDColumn}
}

// resolvePK normalizes a caller-supplied primary-key value — a single
// scalar, a map by column name, or an ordered list matching schema order —
// into an ordered slice of encoded types.Value, one per pkColumns(t).
//
// A list or map of mismatched arity is a usage-error.
func resolvePK(t *schema.Table, pk any) ([]types.Value, error) {
	cols := pkColumns(t)

	switch v := pk.(type) {
	case map[string]any:
		if len(v) != len(cols) {
			return nil, types.Usagef("access.resolvePK", "primary key map has %d entries, table %q expects %d", len(v), t.Name, len(cols))
		}
		out := make([]types.Value, len(cols))
		for i, col := range cols {
			raw, ok := v[col]
			if !ok {
				return nil, types.Usagef("access.resolvePK", "primary key map missing column %q", col)
			}
			val, err := encodeColumn(t, col, raw)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case []any:
		if len(v) != len(cols) {
			return nil, types.Usagef("access.resolvePK", "primary key list has %d entries, table %q expects %d", len(v), t.Name, len(cols))
		}
		out := make([]types.Value, len(cols))
		for i, raw := range v {
			val, err := encodeColumn(t, cols[i], raw)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	default:
		if len(cols) != 1 {
			return nil, types.Usagef("access.resolvePK", "table %q has a composite primary key; pass a map or ordered list", t.Name)
		}
		val, err := encodeColumn(t, cols[0], pk)
		if err != nil {
			return nil, err
		}
		return []types.Value{val}, nil
	}
}

// SerializePK renders pk as the stable identity string used by the LWW
// cache and timestamp store: a single-column key serializes as its
// encoded scalar, a composite key as "col1:val1|col2:val2|..." in schema
// order. Expressing the same values as a map or an ordered list yields
// the identical string.
func SerializePK(t *schema.Table, pk any) (string, error) {
	vals, err := resolvePK(t, pk)
	if err != nil {
		return "", err
	}
	cols := pkColumns(t)
	if len(cols) == 1 {
		return vals[0].Serialize(), nil
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s:%s", col, vals[i].Serialize())
	}
	return strings.Join(parts, "|"), nil
}

// whereForPK builds `col1 = ? AND col2 = ? ...` (schema order) and the
// matching bind-argument vector for pk.
func whereForPK(t *schema.Table, pk any) (string, []any, error) {
	vals, err := resolvePK(t, pk)
	if err != nil {
		return "", nil, err
	}
	cols := pkColumns(t)
	clauses := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		clauses[i] = col + " = ?"
		args[i] = vals[i].Scalar()
	}
	return strings.Join(clauses, " AND "), args, nil
}
