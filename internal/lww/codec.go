package lww

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/opensync/reactivestore/internal/types"
)

// decodeStored parses the string produced by types.Value.Serialize back
// into a typed Value. It is the timestamp store's inverse of Serialize,
// needed because the store persists a column's winning value alongside
// its timestamp (the cache is the source of truth for an LWW column
// until the next sync, so reads must come from here, not from a
// best-effort DB write that may have failed silently).
func decodeStored(a types.Affinity, s string, isNull bool) (types.Value, error) {
	if isNull {
		return types.NullValue(a), nil
	}
	switch a {
	case types.AffinityInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return types.Value{}, fmt.Errorf("lww: decode integer %q: %w", s, err)
		}
		return types.Value{Affinity: a, Int: n}, nil
	case types.AffinityReal:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Value{}, fmt.Errorf("lww: decode real %q: %w", s, err)
		}
		return types.Value{Affinity: a, Real: f}, nil
	case types.AffinityText:
		return types.Value{Affinity: a, Text: s}, nil
	case types.AffinityBlob:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return types.Value{}, fmt.Errorf("lww: decode blob %q: %w", s, err)
		}
		return types.Value{Affinity: a, Blob: b}, nil
	case types.AffinityDate:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return types.Value{}, fmt.Errorf("lww: decode date %q: %w", s, err)
		}
		return types.Value{Affinity: a, Date: t}, nil
	default:
		return types.Value{}, fmt.Errorf("lww: unknown affinity %v", a)
	}
}
