package engine

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestValidIdentAllowList(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("lowercase alphanumeric names are accepted", prop.ForAll(
		func(name string) bool {
			return validIdent(name)
		},
		gen.RegexMatch(`[a-z][a-z0-9]{0,15}`),
	))

	properties.Property("nested names are checked per segment", prop.ForAll(
		func(a, b string) bool {
			return validIdent(a + Separator + b)
		},
		gen.RegexMatch(`[a-z][a-z0-9]{0,7}`),
		gen.RegexMatch(`[a-z][a-z0-9]{0,7}`),
	))

	properties.Property("appending a metacharacter always rejects", prop.ForAll(
		func(name string, meta string) bool {
			return !validIdent(name + meta)
		},
		gen.RegexMatch(`[a-z][a-z0-9]{0,15}`),
		gen.OneConstOf(`"`, `'`, ";", " ", "--", "(", ")", "=", ",", ".", "*"),
	))

	properties.TestingRun(t)
}

func TestValidIdentRejects(t *testing.T) {
	cases := []string{
		"",
		"Voltage",
		"1voltage",
		"voltage; DROP TABLE users",
		`voltage" OR "1"="1`,
		"voltage$",
		"$voltage",
		"volt$$age",
		"volt-age",
	}
	for _, name := range cases {
		if validIdent(name) {
			t.Errorf("validIdent(%q) = true, want false", name)
		}
	}
}

func TestCheckIdent(t *testing.T) {
	if qerr := checkIdent("property", "voltage"); qerr != nil {
		t.Fatalf("checkIdent rejected a valid name: %v", qerr)
	}
	qerr := checkIdent("property", "volt age")
	if qerr == nil {
		t.Fatal("checkIdent accepted an invalid name")
	}
	if qerr.Kind != ErrBadQuery {
		t.Errorf("error kind = %s, want %s", qerr.Kind, ErrBadQuery)
	}
}

func TestNumberPlaceholders(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM t", "SELECT * FROM t"},
		{"a = ?", "a = $1"},
		{"a = ? AND b > ? AND c < ?", "a = $1 AND b > $2 AND c < $3"},
	}
	for _, tc := range cases {
		if got := numberPlaceholders(tc.in); got != tc.want {
			t.Errorf("numberPlaceholders(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAndSkipsEmptyConditions(t *testing.T) {
	c := and([]condition{
		{},
		{expr: "a = ?", args: []any{1}},
		{},
		{expr: "b = ?", args: []any{2}},
	})
	if c.expr != "a = ? AND b = ?" {
		t.Errorf("expr = %q", c.expr)
	}
	if len(c.args) != 2 {
		t.Errorf("args = %v, want two", c.args)
	}
	if !strings.Contains(c.expr, "AND") {
		t.Error("conditions were not conjoined")
	}
}
