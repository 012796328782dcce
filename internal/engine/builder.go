package engine

import (
	"strconv"
	"strings"

	"github.com/kraterdb/krater/internal/store"
)

// DefaultRowCap bounds how many events a single query may touch when
// the request does not supply `latest`.
const DefaultRowCap = 5000

// Query is one compiled, parameterized statement ready for execution.
type Query struct {
	SQL  string
	Args []any
}

// Builder assembles one statement per archetype. All clause fragments
// arrive pre-parameterized; the builder's job is projection, GROUP BY,
// ordering, and the row cap.
type Builder struct {
	// RowCap is the process-wide ceiling applied when `latest` is
	// absent. Zero means DefaultRowCap.
	RowCap int
}

// limitFor resolves the effective row cap for a request.
func (b *Builder) limitFor(latest int) int {
	if latest > 0 {
		return latest
	}
	if b.RowCap > 0 {
		return b.RowCap
	}
	return DefaultRowCap
}

// Build compiles the statement for req. Identifiers (project id,
// collection, target, group_by) must already be allow-list validated by
// the gate; values stay bound parameters throughout.
func (b *Builder) Build(req *Request, conds []condition) (Query, *QueryError) {
	spec := archetypes[req.Archetype]
	table := req.ProjectID + "_" + req.Collection

	projection, grouped, qerr := b.projection(req, spec)
	if qerr != nil {
		return Query{}, qerr
	}

	where := and(conds)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(projection)
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	if where.expr != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where.expr)
	}
	if grouped {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(store.QuoteIdent(req.GroupBy))
	}
	if req.Archetype == Extraction {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(store.QuoteIdent(store.TimestampColumn))
		sb.WriteString(" DESC")
	}
	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(b.limitFor(req.Latest)))

	return Query{SQL: numberPlaceholders(sb.String()), Args: where.args}, nil
}

// projection renders the SELECT list and reports whether a GROUP BY
// applies. Interval requests always fetch raw rows: bucketed
// aggregation is computed client-side, not by the backend.
func (b *Builder) projection(req *Request, spec archetypeSpec) (string, bool, *QueryError) {
	switch {
	case req.Archetype == Extraction:
		if req.TargetProperty == "" {
			return "*", false, nil
		}
		parts := strings.Split(req.TargetProperty, ",")
		quoted := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if err := checkIdent("property", p); err != nil {
				return "", false, err
			}
			quoted = append(quoted, store.QuoteIdent(p))
		}
		return strings.Join(quoted, ", "), false, nil

	case req.Interval != "":
		return "*", false, nil

	case spec.rawRows:
		// Percentile and median compute client-side; the grouped
		// variant needs the grouping column too, so fetch everything.
		if req.GroupBy != "" {
			return "*", false, nil
		}
		return store.QuoteIdent(req.TargetProperty), false, nil

	case req.GroupBy != "":
		return store.QuoteIdent(req.GroupBy) + ", " + spec.projection(req.TargetProperty), true, nil

	default:
		return spec.projection(req.TargetProperty), false, nil
	}
}
