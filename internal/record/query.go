package record

import (
	"fmt"
	"strings"
)

// Query identifies an operation: query text plus ordered parameters.
type Query struct {
	Text   string
	Params []Value
}

// Q builds a Query from text and already-typed parameters.
func Q(text string, params ...Value) Query {
	cp := make([]Value, len(params))
	copy(cp, params)
	return Query{Text: text, Params: cp}
}

// NewQuery builds a Query converting Go parameters with Of.
func NewQuery(text string, params ...any) (Query, error) {
	vals := make([]Value, len(params))
	for i, p := range params {
		v, err := Of(p)
		if err != nil {
			return Query{}, fmt.Errorf("param[%d]: %w", i, err)
		}
		vals[i] = v
	}
	return Query{Text: text, Params: vals}, nil
}

// Args returns the parameters as database/sql arguments.
func (q Query) Args() []any {
	args := make([]any, len(q.Params))
	for i, p := range q.Params {
		if p == nil {
			args[i] = nil
			continue
		}
		args[i] = p.Arg()
	}
	return args
}

// String renders the query for logs: text followed by the parameter list.
func (q Query) String() string {
	if len(q.Params) == 0 {
		return q.Text
	}
	parts := make([]string, len(q.Params))
	for i, p := range q.Params {
		if p == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = fmt.Sprintf("%v", p.Arg())
	}
	return fmt.Sprintf("%s [%s]", q.Text, strings.Join(parts, ", "))
}
