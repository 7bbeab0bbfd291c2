package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFilterMapAndClauseFormsEncodeIdentically(t *testing.T) {
	fromMap := Eq(map[string]any{"in_stock": true, "category": "exterior"})
	fromClauses := Filter{
		Where("category", OpEq, "exterior"),
		Where("in_stock", OpEq, true),
	}

	a, err := json.Marshal(fromMap)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(fromClauses)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("map form = %s\nclause form = %s", a, b)
	}
	want := `[{"key":"category","operator":"=","value":"exterior"},{"key":"in_stock","operator":"=","value":true}]`
	if string(a) != want {
		t.Errorf("encoded = %s, want %s", a, want)
	}
}

func TestFilterUnmarshalBothForms(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Filter
	}{
		{"object", `{"price": 10, "brand": "acme"}`, Filter{Where("brand", OpEq, "acme"), Where("price", OpEq, float64(10))}},
		{"array", `[{"key":"price","operator":"<","value":50}]`, Filter{Where("price", OpLt, float64(50))}},
		{"array default operator", `[{"key":"brand","value":"acme"}]`, Filter{Where("brand", OpEq, "acme")}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Filter
			if err := json.Unmarshal([]byte(tt.json), &f); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if len(f) != len(tt.want) {
				t.Fatalf("got %d clauses, want %d", len(f), len(tt.want))
			}
			for i := range f {
				if f[i] != tt.want[i] {
					t.Errorf("clause[%d] = %+v, want %+v", i, f[i], tt.want[i])
				}
			}
		})
	}

	var f Filter
	if err := json.Unmarshal([]byte(`"price>10"`), &f); err == nil {
		t.Error("string filter should be rejected")
	}
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"empty", nil, false},
		{"comparisons", Filter{Where("price", OpGte, 10), Where("price", OpLte, 99)}, false},
		{"in list", Filter{Where("color", OpIn, []string{"red", "blue"})}, false},
		{"in decoded list", Filter{Where("color", OpIn, []any{"red"})}, false},
		{"in scalar", Filter{Where("color", OpIn, "red")}, true},
		{"in nil", Filter{Where("color", OpIn, nil)}, true},
		{"empty key", Filter{Where("", OpEq, 1)}, true},
		{"unknown operator", Filter{Where("price", Operator("!="), 1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestFilterAndDoesNotAlias(t *testing.T) {
	base := make(Filter, 1, 4)
	base[0] = Where("a", OpEq, 1)
	x := base.And(Where("b", OpEq, 2))
	y := base.And(Where("c", OpEq, 3))
	if x[1].Key != "b" || y[1].Key != "c" {
		t.Errorf("And() aliased backing arrays: %v %v", x, y)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(`[{"key":"tags","operator":"in","value":["a","b"]}]`)
	if err != nil {
		t.Fatalf("ParseFilter() error = %v", err)
	}
	if len(f) != 1 || f[0].Operator != OpIn {
		t.Errorf("filter = %+v", f)
	}

	if _, err := ParseFilter(`{bad`); !errors.Is(err, ErrValidation) {
		t.Errorf("malformed error = %v, want ErrValidation", err)
	}
	if _, err := ParseFilter(`[{"key":"tags","operator":"in","value":"a"}]`); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid in error = %v, want ErrValidation", err)
	}
}
