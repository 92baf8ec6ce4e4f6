package record

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value is a sealed interface over the scalar values a record field or a
// query parameter may hold. Only Null, String, Int, Float, Bool and Bytes
// implement it.
type Value interface {
	value() // sealed

	// Arg returns the value in the form database/sql expects as an argument.
	Arg() any
}

// Null represents SQL NULL.
type Null struct{}

func (Null) value()   {}
func (Null) Arg() any { return nil }

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text value.
type String string

func (String) value()     {}
func (s String) Arg() any { return string(s) }

// Int is an integer value. Always int64.
type Int int64

func (Int) value()     {}
func (n Int) Arg() any { return int64(n) }

// Float is a floating point value.
type Float float64

func (Float) value()     {}
func (f Float) Arg() any { return float64(f) }

// Bool is a boolean value.
type Bool bool

func (Bool) value()     {}
func (b Bool) Arg() any { return bool(b) }

// Bytes is a binary value.
type Bytes []byte

func (Bytes) value()     {}
func (b Bytes) Arg() any { return []byte(b) }

// MarshalJSON encodes Bytes as a base64 JSON string.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b))
}

// Of converts a Go value to a Value.
//
// Accepted inputs are nil, the Value types themselves, string, []byte, bool,
// all integer kinds (uint64 above MaxInt64 is rejected), float32/float64 and
// time.Time (encoded as an RFC 3339 string with nanoseconds, UTC).
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case []byte:
		cp := make([]byte, len(val))
		copy(cp, val)
		return Bytes(cp), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return uintValue(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case time.Time:
		return String(val.UTC().Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// MustOf is like Of but panics on error.
// Use only in tests or with inputs known to be valid.
func MustOf(v any) Value {
	val, err := Of(v)
	if err != nil {
		panic(err)
	}
	return val
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

// AsInt64 coerces numeric values to int64.
//
// Int is returned as-is, integral Floats are converted, and Strings holding a
// base-10 integer or an integral decimal ("25", "25.0") are parsed. Drivers
// such as MySQL report DECIMAL columns as text, so this is the usual way to
// read a numeric field.
func AsInt64(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case Float:
		f := float64(val)
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	case String:
		s := strings.TrimSpace(string(val))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return AsInt64(Float(f))
	default:
		return 0, false
	}
}

// AsString returns the text of a String or Bytes value.
func AsString(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Bytes:
		return string(val), true
	default:
		return "", false
	}
}

// MarshalValue marshals a Value to (non-canonical) JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("cannot marshal non-finite float %v", f)
		}
		return json.Marshal(f)
	case Bool:
		return json.Marshal(bool(val))
	case Bytes:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}
