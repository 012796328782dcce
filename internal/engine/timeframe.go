package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kraterdb/krater/internal/store"
)

// Timeframe is a resolved [Start, End) window over the reserved
// timestamp column. The zero value is unbounded.
type Timeframe struct {
	Start   time.Time
	End     time.Time
	Bounded bool
}

// absoluteTimeframe is the JSON object form of the timeframe parameter.
type absoluteTimeframe struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// relativeExpr matches the relative grammar [this|previous]_<n>_<unit>.
var relativeExpr = regexp.MustCompile(`^(this|previous)_([0-9]+)_(seconds|minutes|hours|days|weeks|months|years)$`)

// ResolveTimeframe resolves the raw timeframe parameter against now.
// An empty parameter yields an unbounded window. this_N_unit resolves
// to [now-N*unit, now]; previous_N_unit to [now-2N*unit, now-N*unit].
func ResolveTimeframe(raw string, now time.Time) (Timeframe, *QueryError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timeframe{}, nil
	}

	if strings.HasPrefix(raw, "{") {
		var abs absoluteTimeframe
		if err := json.Unmarshal([]byte(raw), &abs); err != nil {
			return Timeframe{}, badQuery("invalid timeframe: %v", err)
		}
		start, err := time.Parse(time.RFC3339, abs.Start)
		if err != nil {
			return Timeframe{}, badQuery("invalid timeframe start: %v", err)
		}
		end, err := time.Parse(time.RFC3339, abs.End)
		if err != nil {
			return Timeframe{}, badQuery("invalid timeframe end: %v", err)
		}
		return Timeframe{Start: start, End: end, Bounded: true}, nil
	}

	m := relativeExpr.FindStringSubmatch(raw)
	if m == nil {
		return Timeframe{}, badQuery("invalid timeframe: %q", raw)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return Timeframe{}, badQuery("invalid timeframe count: %q", m[2])
	}

	end := now
	if m[1] == "previous" {
		end = subtractUnits(now, n, m[3])
	}
	start := subtractUnits(end, n, m[3])
	return Timeframe{Start: start, End: end, Bounded: true}, nil
}

// subtractUnits steps t back by n units. Months and years step by
// calendar arithmetic; the fixed-length units by duration.
func subtractUnits(t time.Time, n int, unit string) time.Time {
	switch unit {
	case "seconds":
		return t.Add(-time.Duration(n) * time.Second)
	case "minutes":
		return t.Add(-time.Duration(n) * time.Minute)
	case "hours":
		return t.Add(-time.Duration(n) * time.Hour)
	case "days":
		return t.AddDate(0, 0, -n)
	case "weeks":
		return t.AddDate(0, 0, -7*n)
	case "months":
		return t.AddDate(0, -n, 0)
	case "years":
		return t.AddDate(-n, 0, 0)
	}
	return t
}

// Condition renders the window as a predicate on the reserved timestamp
// column. Unbounded windows contribute nothing.
func (tf Timeframe) Condition() condition {
	if !tf.Bounded {
		return condition{}
	}
	col := store.QuoteIdent(store.TimestampColumn)
	return condition{
		expr: col + " >= ? AND " + col + " < ?",
		args: []any{tf.Start.UTC(), tf.End.UTC()},
	}
}
