package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value Value
}

// F is shorthand for constructing a Field.
// Example: record.New(record.F("name", record.String("Alice")), record.F("age", record.Int(30)))
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Record is an ordered mapping from field name to scalar value.
// Field order is the column order of the query that produced the record.
//
// A Record is immutable once built; accessors return copies.
type Record struct {
	fields []Field
}

// New builds a Record from fields in the given order.
// A later field with a duplicate name shadows nothing: Get returns the first.
func New(fields ...Field) Record {
	cp := make([]Field, len(fields))
	copy(cp, fields)
	for i := range cp {
		if cp[i].Value == nil {
			cp[i].Value = Null{}
		}
	}
	return Record{fields: cp}
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Names returns field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the fields in order.
func (r Record) Fields() []Field {
	cp := make([]Field, len(r.fields))
	copy(cp, r.fields)
	return cp
}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Int returns the named field coerced to int64 (see AsInt64).
func (r Record) Int(name string) (int64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	return AsInt64(v)
}

// String returns the named field as text (see AsString).
func (r Record) String(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return AsString(v)
}

// Map returns the record as a plain map of driver values.
// Field order is lost; use it for display or assertions only.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		m[f.Name] = f.Value.Arg()
	}
	return m
}

// MarshalJSON encodes the record as a JSON object whose keys appear in
// field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", f.Name, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", f.Name, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
