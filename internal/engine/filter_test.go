package engine

import (
	"reflect"
	"testing"

	"github.com/kraterdb/krater/internal/store"
)

func TestParseFilters(t *testing.T) {
	filters := ParseFilters(`[{"property_name":"voltage","operator":"gt","property_value":5}]`)
	if len(filters) != 1 {
		t.Fatalf("len = %d, want 1", len(filters))
	}
	f := filters[0]
	if f.PropertyName != "voltage" || f.Operator != "gt" {
		t.Errorf("filter = %+v", f)
	}

	if got := ParseFilters(""); got != nil {
		t.Errorf("empty input parsed to %v", got)
	}
	// Malformed JSON is dropped, not an error.
	if got := ParseFilters(`{"not":"an array"`); got != nil {
		t.Errorf("malformed input parsed to %v", got)
	}
}

func TestCompileFilters(t *testing.T) {
	conds, qerr := CompileFilters([]Filter{
		{PropertyName: "voltage", Operator: "gte", PropertyValue: 5.0},
		{PropertyName: "phase", Operator: "eq", PropertyValue: "a"},
	})
	if qerr != nil {
		t.Fatalf("CompileFilters failed: %v", qerr)
	}
	if len(conds) != 2 {
		t.Fatalf("len = %d, want 2", len(conds))
	}
	if conds[0].expr != `"voltage" >= ?` {
		t.Errorf("expr = %q", conds[0].expr)
	}
	if conds[1].expr != `"phase" = ?` {
		t.Errorf("expr = %q", conds[1].expr)
	}
	if conds[1].args[0] != "a" {
		t.Errorf("args = %v", conds[1].args)
	}
}

func TestCompileFiltersRejectsUnsafeNames(t *testing.T) {
	cases := []string{
		"voltage; DROP TABLE events",
		`voltage" = "1`,
		"volt age",
		"Voltage",
		"",
	}
	for _, name := range cases {
		_, qerr := CompileFilters([]Filter{{PropertyName: name, Operator: "eq", PropertyValue: 1}})
		if qerr == nil {
			t.Errorf("CompileFilters accepted property name %q", name)
			continue
		}
		if qerr.Kind != ErrBadQuery {
			t.Errorf("error kind for %q = %s, want %s", name, qerr.Kind, ErrBadQuery)
		}
	}
}

func TestCompileFiltersRejectsUnknownOperator(t *testing.T) {
	_, qerr := CompileFilters([]Filter{{PropertyName: "voltage", Operator: "like", PropertyValue: 1}})
	if qerr == nil {
		t.Fatal("CompileFilters accepted an unknown operator")
	}
}

func TestApplyFilter(t *testing.T) {
	rows := []store.Row{
		{"voltage": 10.0},
		{"voltage": 20.0},
		{"voltage": 30.0},
	}
	out := ApplyFilter(Filter{PropertyName: "voltage", Operator: "gt", PropertyValue: 15.0}, rows)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0]["voltage"] != 20.0 || out[1]["voltage"] != 30.0 {
		t.Errorf("rows = %v", out)
	}
}

func TestApplyFilterKeepsRowsMissingTheColumn(t *testing.T) {
	rows := []store.Row{
		{"sum": 30.0},
		{"voltage": 1.0},
	}
	out := ApplyFilter(Filter{PropertyName: "voltage", Operator: "gt", PropertyValue: 15.0}, rows)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if _, ok := out[0]["sum"]; !ok {
		t.Errorf("aggregate row was dropped: %v", out)
	}
}

func TestApplyFilterStringComparison(t *testing.T) {
	rows := []store.Row{
		{"phase": "a"},
		{"phase": "b"},
	}
	out := ApplyFilter(Filter{PropertyName: "phase", Operator: "eq", PropertyValue: "b"}, rows)
	want := []store.Row{{"phase": "b"}}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("rows = %v, want %v", out, want)
	}
}

func TestApplyFilterCoercesStoredForms(t *testing.T) {
	// The store hands numeric columns back as float64, int64, or raw
	// bytes depending on the driver path; all must compare numerically.
	rows := []store.Row{
		{"voltage": int64(10)},
		{"voltage": []byte("20")},
		{"voltage": "30"},
	}
	out := ApplyFilter(Filter{PropertyName: "voltage", Operator: "gte", PropertyValue: 20.0}, rows)
	if len(out) != 2 {
		t.Errorf("len = %d, want 2: %v", len(out), out)
	}
}
