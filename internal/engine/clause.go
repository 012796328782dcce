package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// condition is one WHERE fragment with '?' value placeholders. Builder
// assembly renumbers placeholders to the backend's positional $N form,
// so fragments compose in any order without coordination.
type condition struct {
	expr string
	args []any
}

// and conjoins conditions into a single WHERE clause body.
func and(conds []condition) condition {
	exprs := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		if c.expr == "" {
			continue
		}
		exprs = append(exprs, c.expr)
		args = append(args, c.args...)
	}
	return condition{expr: strings.Join(exprs, " AND "), args: args}
}

// numberPlaceholders rewrites '?' placeholders to $1..$N.
func numberPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// identSegment is the allow-list for each '$'-separated segment of a
// property, collection, or project identifier. Identifiers are the only
// request-controlled text embedded in query bodies, so everything else
// travels as a bound parameter.
var identSegment = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Separator joins the segments of a flattened nested property name.
const Separator = "$"

// validIdent reports whether name is safe to embed as an identifier.
// Nested property names are checked segment by segment after separator
// decoding; already-flattened keys therefore round-trip unchanged.
func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for _, seg := range strings.Split(name, Separator) {
		if !identSegment.MatchString(seg) {
			return false
		}
	}
	return true
}

// checkIdent converts an allow-list miss into the engine's validation
// failure.
func checkIdent(kind, name string) *QueryError {
	if !validIdent(name) {
		return badQuery("invalid %s name: %q", kind, name)
	}
	return nil
}
