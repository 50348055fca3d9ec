package table

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ColumnType is the semantic type shared by every value of a column.
type ColumnType string

const (
	Int    ColumnType = "int"
	Float  ColumnType = "float"
	String ColumnType = "string"
)

// normalize coerces Go scalars into the three storage types: int64, float64 and string.
// NaN becomes null.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case float64:
		if math.IsNaN(x) {
			return nil, nil
		}
		return x, nil
	case float32:
		if math.IsNaN(float64(x)) {
			return nil, nil
		}
		return float64(x), nil
	case string:
		return x, nil
	case *int64:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case *float64:
		if x == nil {
			return nil, nil
		}
		return normalize(*x)
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// TypeOf returns the column type a normalized value belongs to.
func TypeOf(v any) (ColumnType, bool) {
	switch v.(type) {
	case int64:
		return Int, true
	case float64:
		return Float, true
	case string:
		return String, true
	}
	return "", false
}

// coerce converts a normalized value into the storage type of a column.
func coerce(v any, typ ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case Int:
		if i, ok := v.(int64); ok {
			return i, nil
		}
	case Float:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		}
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %v (%T) in %s column", ErrTypeMismatch, v, v, typ)
}

// Unify returns the narrowest type able to hold values of both a and b.
func Unify(a, b ColumnType) (ColumnType, error) {
	switch {
	case a == b:
		return a, nil
	case (a == Int && b == Float) || (a == Float && b == Int):
		return Float, nil
	}
	return "", fmt.Errorf("%w: cannot unify %s and %s", ErrTypeMismatch, a, b)
}

// Compare orders values: nulls first, then numbers (ints and floats compared numerically), then
// strings.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		return compareNumbers(a, b)
	default:
		return strings.Compare(a.(string), b.(string))
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	default:
		return 2
	}
}

func compareNumbers(a, b any) int {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	af, bf := toFloat(a), toFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

func toFloat(v any) float64 {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v.(float64)
}

// CompareRows compares two rows lexicographically with Compare.
func CompareRows(a, b []any) int {
	for i := range a {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// AppendKey appends a canonical encoding of v to buf. Values that compare equal as join keys
// encode identically, so 3 and 3.0 share an encoding.
func AppendKey(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 'n')
	case int64:
		buf = append(buf, 'i')
		return binary.BigEndian.AppendUint64(buf, uint64(x))
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			buf = append(buf, 'i')
			return binary.BigEndian.AppendUint64(buf, uint64(int64(x)))
		}
		buf = append(buf, 'f')
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(x))
	case string:
		buf = append(buf, 's')
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		return append(buf, x...)
	}
	panic(fmt.Sprintf("unnormalized value %T", v))
}

// EncodeKey encodes a key tuple. ok is false when any component is null, as null keys never
// match.
func EncodeKey(buf []byte, vals ...any) (key []byte, ok bool) {
	ok = true
	for _, v := range vals {
		if v == nil {
			ok = false
		}
		buf = AppendKey(buf, v)
	}
	return buf, ok
}
