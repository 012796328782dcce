package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kraterdb/krater/internal/store"
)

// Filter is one declarative comparison from the request's filters
// parameter. Values are never embedded in query text; they always
// travel as bound parameters.
type Filter struct {
	PropertyName  string `json:"property_name"`
	Operator      string `json:"operator"`
	PropertyValue any    `json:"property_value"`
}

// operators maps the declarative operator names to SQL comparisons.
var operators = map[string]string{
	"eq":  "=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
	"ne":  "!=",
}

// ParseFilters decodes the JSON-encoded filters parameter. Malformed
// JSON yields no filters rather than an error; callers depend on this
// lenient behavior.
func ParseFilters(raw string) []Filter {
	if raw == "" {
		return nil
	}
	var filters []Filter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil
	}
	return filters
}

// CompileFilters turns filters into parameterized conditions. Property
// names are allow-list validated before they reach query text; an
// unknown operator or invalid name is a validation failure, never a
// passthrough.
func CompileFilters(filters []Filter) ([]condition, *QueryError) {
	conds := make([]condition, 0, len(filters))
	for _, f := range filters {
		if err := checkIdent("property", f.PropertyName); err != nil {
			return nil, err
		}
		op, ok := operators[f.Operator]
		if !ok {
			return nil, badQuery("invalid filter operator: %q", f.Operator)
		}
		conds = append(conds, condition{
			expr: store.QuoteIdent(f.PropertyName) + " " + op + " ?",
			args: []any{f.PropertyValue},
		})
	}
	return conds, nil
}

// ApplyFilter re-applies one filter to decoded rows. The raw-row
// archetypes use this so filtering composes with columns that were not
// part of the SQL projection. Rows that lack the filtered property are
// kept: the aggregate row shapes produced by the unique archetypes do
// not carry filter columns, and dropping them would corrupt results.
func ApplyFilter(f Filter, rows []store.Row) []store.Row {
	op, ok := operators[f.Operator]
	if !ok {
		return rows
	}
	out := rows[:0:0]
	for _, row := range rows {
		val, present := row[f.PropertyName]
		if !present {
			out = append(out, row)
			continue
		}
		cmp, comparable := compareValues(val, f.PropertyValue)
		if !comparable {
			continue
		}
		if matchesOperator(op, cmp) {
			out = append(out, row)
		}
	}
	return out
}

func matchesOperator(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

// compareValues orders two property values. Numbers compare
// numerically; everything else compares by string form, which matches
// how the store hands values back.
func compareValues(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	default:
		return 0, true
	}
}

// toFloat coerces store and JSON scalar forms to float64.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(val), 64)
		return f, err == nil
	}
	return 0, false
}
