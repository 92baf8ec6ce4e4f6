package record

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// MarshalCanonical produces canonical JSON for a Value: the only encoding
// that may feed key derivation.
//
// Rules, after RFC 8785:
//  1. Strings are written byte for byte; only '"', '\\' and U+0000-U+001F
//     are escaped. No Unicode normalization is applied.
//  2. Strings that are not valid UTF-8 become {"s64":"<std base64>"}.
//  3. No HTML escaping.
//  4. Floats use the shortest round-trip representation; NaN and Inf are rejected.
//  5. Bytes become {"b64":"<std base64>"} so they never collide with a String.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalCanonicalObject writes an object with keys in UTF-16 code unit
// order. Values are already-encoded canonical fragments.
func marshalCanonicalObject(obj map[string][]byte) []byte {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sortKeysUTF16(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(&buf, k)
		buf.WriteByte(':')
		buf.Write(obj[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		writeCanonicalText(buf, string(val))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite float is forbidden in canonical JSON: %v", f)
		}
		if f == 0 {
			// -0 and +0 must encode identically.
			buf.WriteString("0")
			return nil
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Bytes:
		buf.Write(marshalCanonicalObject(map[string][]byte{
			"b64": canonicalString(base64.StdEncoding.EncodeToString(val)),
		}))
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func canonicalString(s string) []byte {
	var buf bytes.Buffer
	writeCanonicalText(&buf, s)
	return buf.Bytes()
}

// writeCanonicalText writes s as a JSON string, or as a tagged base64
// object when s is not valid UTF-8.
func writeCanonicalText(buf *bytes.Buffer, s string) {
	if utf8.ValidString(s) {
		writeCanonicalString(buf, s)
		return
	}
	buf.Write(marshalCanonicalObject(map[string][]byte{
		"s64": canonicalString(base64.StdEncoding.EncodeToString([]byte(s))),
	}))
}

// writeCanonicalString escapes the minimum RFC 8785 requires. U+2028 and
// U+2029 are written literally, unlike encoding/json. s must be valid UTF-8.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// sortKeysUTF16 sorts keys by UTF-16 code units, which differs from Go's
// byte-wise UTF-8 ordering for characters outside the BMP.
func sortKeysUTF16(keys []string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && compareUTF16(keys[j], keys[j-1]) < 0; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
