package types

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Affinity is the declared type of a column, used to encode/decode scalar
// values at the data-access boundary.
type Affinity int

const (
	AffinityInteger Affinity = iota
	AffinityReal
	AffinityText
	AffinityBlob
	AffinityDate
)

func (a Affinity) String() string {
	switch a {
	case AffinityInteger:
		return "integer"
	case AffinityReal:
		return "real"
	case AffinityText:
		return "text"
	case AffinityBlob:
		return "blob"
	case AffinityDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the scalar types a row cell can hold. The
// source system leans on an untyped "any"; this pins that down to the set
// of affinities the schema declares, encoding and decoding only at the
// data-access boundary (internal/access) so the rest of the system works
// with plain Go values (int64, float64, string, []byte, time.Time, nil).
type Value struct {
	Affinity Affinity
	Null     bool
	Int      int64
	Real     float64
	Text     string
	Blob     []byte
	Date     time.Time
}

// NullValue returns a Value representing SQL NULL with the given affinity.
func NullValue(a Affinity) Value { return Value{Affinity: a, Null: true} }

// FromAny encodes a raw Go value into a Value using the column's declared
// affinity. It is the single conversion point the rest of the system relies
// on so that, e.g., a date is always represented as an ISO-8601 string once
// it reaches storage or the timestamp store.
func FromAny(a Affinity, v any) (Value, error) {
	if v == nil {
		return NullValue(a), nil
	}
	switch a {
	case AffinityInteger:
		switch n := v.(type) {
		case int:
			return Value{Affinity: a, Int: int64(n)}, nil
		case int32:
			return Value{Affinity: a, Int: int64(n)}, nil
		case int64:
			return Value{Affinity: a, Int: n}, nil
		case bool:
			if n {
				return Value{Affinity: a, Int: 1}, nil
			}
			return Value{Affinity: a, Int: 0}, nil
		default:
			return Value{}, fmt.Errorf("cannot encode %T as integer", v)
		}
	case AffinityReal:
		switch n := v.(type) {
		case float32:
			return Value{Affinity: a, Real: float64(n)}, nil
		case float64:
			return Value{Affinity: a, Real: n}, nil
		case int:
			return Value{Affinity: a, Real: float64(n)}, nil
		case int64:
			return Value{Affinity: a, Real: float64(n)}, nil
		default:
			return Value{}, fmt.Errorf("cannot encode %T as real", v)
		}
	case AffinityText:
		switch s := v.(type) {
		case string:
			return Value{Affinity: a, Text: s}, nil
		case fmt.Stringer:
			return Value{Affinity: a, Text: s.String()}, nil
		default:
			return Value{}, fmt.Errorf("cannot encode %T as text", v)
		}
	case AffinityBlob:
		switch b := v.(type) {
		case []byte:
			return Value{Affinity: a, Blob: b}, nil
		case string:
			return Value{Affinity: a, Blob: []byte(b)}, nil
		default:
			return Value{}, fmt.Errorf("cannot encode %T as blob", v)
		}
	case AffinityDate:
		switch d := v.(type) {
		case time.Time:
			return Value{Affinity: a, Date: d}, nil
		case string:
			t, err := time.Parse(time.RFC3339, d)
			if err != nil {
				return Value{}, fmt.Errorf("cannot parse %q as date: %w", d, err)
			}
			return Value{Affinity: a, Date: t}, nil
		default:
			return Value{}, fmt.Errorf("cannot encode %T as date", v)
		}
	default:
		return Value{}, fmt.Errorf("unknown affinity %v", a)
	}
}

// Scalar returns the value in the form the underlying database/sql driver
// expects as a bind parameter: dates as ISO-8601 strings, blobs as raw
// bytes, everything else as its native Go scalar.
func (v Value) Scalar() any {
	if v.Null {
		return nil
	}
	switch v.Affinity {
	case AffinityInteger:
		return v.Int
	case AffinityReal:
		return v.Real
	case AffinityText:
		return v.Text
	case AffinityBlob:
		return v.Blob
	case AffinityDate:
		return v.Date.UTC().Format(time.RFC3339Nano)
	default:
		return nil
	}
}

// Any unwraps the Value back into a plain Go value suitable for returning
// to a caller.
func (v Value) Any() any {
	if v.Null {
		return nil
	}
	switch v.Affinity {
	case AffinityInteger:
		return v.Int
	case AffinityReal:
		return v.Real
	case AffinityText:
		return v.Text
	case AffinityBlob:
		return v.Blob
	case AffinityDate:
		return v.Date
	default:
		return nil
	}
}

// Serialize renders the value the way a primary-key component is encoded
// into the stable identity string used by the cache and timestamp store:
// dates as ISO-8601, blobs as base64, everything else via fmt.Sprint.
func (v Value) Serialize() string {
	if v.Null {
		return ""
	}
	switch v.Affinity {
	case AffinityDate:
		return v.Date.UTC().Format(time.RFC3339Nano)
	case AffinityBlob:
		return base64.StdEncoding.EncodeToString(v.Blob)
	case AffinityInteger:
		return fmt.Sprintf("%d", v.Int)
	case AffinityReal:
		return fmt.Sprintf("%v", v.Real)
	default:
		return v.Text
	}
}

// Equal reports whether two values carry the same affinity and content.
func (v Value) Equal(o Value) bool {
	if v.Affinity != o.Affinity || v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	switch v.Affinity {
	case AffinityInteger:
		return v.Int == o.Int
	case AffinityReal:
		return v.Real == o.Real
	case AffinityText:
		return v.Text == o.Text
	case AffinityBlob:
		return string(v.Blob) == string(o.Blob)
	case AffinityDate:
		return v.Date.Equal(o.Date)
	default:
		return false
	}
}
