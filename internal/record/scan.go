package record

import (
	"database/sql"
	"fmt"
	"strings"
)

// binaryTypes lists database type names whose []byte values stay Bytes.
// Every other []byte (MySQL reports text and DECIMAL columns that way)
// becomes a String.
var binaryTypes = map[string]struct{}{
	"BLOB":       {},
	"TINYBLOB":   {},
	"MEDIUMBLOB": {},
	"LONGBLOB":   {},
	"BINARY":     {},
	"VARBINARY":  {},
	"BYTEA":      {},
}

// Scanner converts rows of one result set into Records.
// Build it once per *sql.Rows; column metadata is read only at construction.
type Scanner struct {
	names  []string
	binary []bool
}

// NewScanner reads the column names and types of rows.
func NewScanner(rows *sql.Rows) (*Scanner, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	binary := make([]bool, len(names))
	types, err := rows.ColumnTypes()
	if err == nil && len(types) == len(names) {
		for i, ct := range types {
			_, binary[i] = binaryTypes[strings.ToUpper(ct.DatabaseTypeName())]
		}
	}

	return &Scanner{names: names, binary: binary}, nil
}

// Columns returns the column names in result order.
func (s *Scanner) Columns() []string {
	cp := make([]string, len(s.names))
	copy(cp, s.names)
	return cp
}

// Scan converts the current row. Call only after rows.Next returned true.
func (s *Scanner) Scan(rows *sql.Rows) (Record, error) {
	raw := make([]any, len(s.names))
	dest := make([]any, len(s.names))
	for i := range raw {
		dest[i] = &raw[i]
	}

	if err := rows.Scan(dest...); err != nil {
		return Record{}, fmt.Errorf("scan row: %w", err)
	}

	fields := make([]Field, len(s.names))
	for i, name := range s.names {
		v, err := s.convert(i, raw[i])
		if err != nil {
			return Record{}, fmt.Errorf("column %q: %w", name, err)
		}
		fields[i] = Field{Name: name, Value: v}
	}
	return Record{fields: fields}, nil
}

func (s *Scanner) convert(col int, v any) (Value, error) {
	if b, ok := v.([]byte); ok && !s.binary[col] {
		return String(b), nil
	}
	return Of(v)
}

// ScanAll drains rows into a slice of Records and closes rows.
// Returns an empty (non-nil) slice when the result set is empty.
func ScanAll(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	sc, err := NewScanner(rows)
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for rows.Next() {
		rec, err := sc.Scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
