package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	ts := time.Date(2024, 12, 6, 8, 23, 25, 0, time.FixedZone("X", 3600))

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "alice", String("alice")},
		{"bytes", []byte{0x01, 0x02}, Bytes{0x01, 0x02}},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int32", int32(-7), Int(-7)},
		{"uint8", uint8(200), Int(200)},
		{"uint64 small", uint64(9), Int(9)},
		{"float64", 2.5, Float(2.5)},
		{"float32", float32(0.5), Float(0.5)},
		{"time", ts, String("2024-12-06T07:23:25Z")},
		{"value passthrough", Int(3), Int(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Of(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOf_Rejects(t *testing.T) {
	_, err := Of(uint64(math.MaxUint64))
	assert.Error(t, err)

	_, err = Of(struct{}{})
	assert.ErrorContains(t, err, "unsupported value type")
}

func TestOf_CopiesBytes(t *testing.T) {
	src := []byte("abc")
	v, err := Of(src)
	require.NoError(t, err)
	src[0] = 'z'
	assert.Equal(t, Bytes("abc"), v)
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name   string
		in     Value
		want   int64
		wantOK bool
	}{
		{"int", Int(30), 30, true},
		{"integral float", Float(45), 45, true},
		{"fractional float", Float(45.5), 0, false},
		{"decimal text", String("25"), 25, true},
		{"decimal text with zero fraction", String("25.0"), 25, true},
		{"text with spaces", String(" 7 "), 7, true},
		{"non numeric text", String("abc"), 0, false},
		{"bool", Bool(true), 0, false},
		{"null", Null{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt64(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_Accessors(t *testing.T) {
	r := New(
		F("user_id", String("u-1")),
		F("name", String("Alice")),
		F("age", Int(30)),
		F("nickname", nil),
	)

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"user_id", "name", "age", "nickname"}, r.Names())

	v, ok := r.Get("nickname")
	require.True(t, ok)
	assert.Equal(t, Null{}, v)

	_, ok = r.Get("email")
	assert.False(t, ok)

	age, ok := r.Int("age")
	require.True(t, ok)
	assert.Equal(t, int64(30), age)

	name, ok := r.String("name")
	require.True(t, ok)
	assert.Equal(t, "Alice", name)

	assert.Equal(t, map[string]any{
		"user_id":  "u-1",
		"name":     "Alice",
		"age":      int64(30),
		"nickname": nil,
	}, r.Map())
}

func TestRecord_FieldsIsACopy(t *testing.T) {
	r := New(F("a", Int(1)))
	fields := r.Fields()
	fields[0].Value = Int(99)

	v, _ := r.Get("a")
	assert.Equal(t, Int(1), v)
}

func TestRecord_MarshalJSON_PreservesFieldOrder(t *testing.T) {
	r := New(
		F("zeta", Int(1)),
		F("alpha", String("Alice")),
		F("mid", Float(1.5)),
		F("flag", Bool(false)),
		F("none", Null{}),
		F("raw", Bytes("hi")),
	)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"zeta":1,"alpha":"Alice","mid":1.5,"flag":false,"none":null,"raw":"aGk="}`,
		string(data))
}

func TestRecord_MarshalJSON_RejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(New(F("x", Float(math.Inf(1)))))
	assert.Error(t, err)
}

func TestQuery_ArgsAndString(t *testing.T) {
	q := Q("SELECT * FROM user_data WHERE age > ? AND name = ?", Int(40), String("Bob"))

	assert.Equal(t, []any{int64(40), "Bob"}, q.Args())
	assert.Equal(t, "SELECT * FROM user_data WHERE age > ? AND name = ? [40, Bob]", q.String())
	assert.Equal(t, "SELECT 1", Q("SELECT 1").String())
}

func TestNewQuery(t *testing.T) {
	q, err := NewQuery("SELECT ?", 5, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(5), String("x"), Null{}}, q.Params)

	_, err = NewQuery("SELECT ?", struct{}{})
	assert.ErrorContains(t, err, "param[0]")
}
