package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Operator is a comparison used in a filter clause.
type Operator string

const (
	OpEq  Operator = "="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpIn  Operator = "in"
)

// IsValid reports whether the operator is recognized.
func (o Operator) IsValid() bool {
	switch o {
	case OpEq, OpGt, OpGte, OpLt, OpLte, OpIn:
		return true
	default:
		return false
	}
}

// Clause is a single predicate. Keys are forwarded to the server verbatim.
type Clause struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Where builds a clause.
func Where(key string, op Operator, value any) Clause {
	return Clause{Key: key, Operator: op, Value: value}
}

// Filter is a conjunction of clauses. It always encodes as a JSON array of
// clauses; the mapping form accepted by Eq and UnmarshalJSON is sugar for
// a list of "=" clauses in key order.
type Filter []Clause

// Eq builds a filter of equality clauses from a mapping, ordered by key so
// the encoded payload is deterministic.
func Eq(fields map[string]any) Filter {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := make(Filter, 0, len(keys))
	for _, k := range keys {
		f = append(f, Where(k, OpEq, fields[k]))
	}
	return f
}

// And returns a new filter with the clauses appended.
func (f Filter) And(clauses ...Clause) Filter {
	out := make(Filter, 0, len(f)+len(clauses))
	out = append(out, f...)
	return append(out, clauses...)
}

// Validate checks every clause locally.
func (f Filter) Validate() error {
	for i, c := range f {
		field := fmt.Sprintf("filter[%d]", i)
		if c.Key == "" {
			return Invalid(field+".key", "must not be empty")
		}
		if !c.Operator.IsValid() {
			return Invalid(field+".operator", "unsupported operator %q", c.Operator)
		}
		if c.Operator == OpIn && !isList(c.Value) {
			return Invalid(field+".value", "operator \"in\" requires a list value")
		}
	}
	return nil
}

// UnmarshalJSON accepts either form:
//
//	{"category": "exterior", "in_stock": true}
//	[{"key": "category", "operator": "=", "value": "exterior"}]
func (f *Filter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = nil
		return nil
	case data[0] == '{':
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*f = Eq(m)
		return nil
	case data[0] == '[':
		var clauses []Clause
		if err := json.Unmarshal(data, &clauses); err != nil {
			return err
		}
		for i := range clauses {
			if clauses[i].Operator == "" {
				clauses[i].Operator = OpEq
			}
		}
		*f = clauses
		return nil
	default:
		return fmt.Errorf("filter must be a JSON object or array")
	}
}

// ParseFilter decodes a filter from JSON text in either form and validates it.
func ParseFilter(text string) (Filter, error) {
	var f Filter
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return nil, Invalid("filter", "%v", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
