package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kraterdb/krater/internal/store"
)

// Interval is a calendar bucket granularity for time-series queries.
type Interval string

const (
	Minutely Interval = "minutely"
	Hourly   Interval = "hourly"
	Daily    Interval = "daily"
	Weekly   Interval = "weekly"
	Monthly  Interval = "monthly"
	Yearly   Interval = "yearly"
)

// ParseInterval validates the interval parameter. Empty means no
// bucketing.
func ParseInterval(raw string) (Interval, *QueryError) {
	switch Interval(raw) {
	case "", Minutely, Hourly, Daily, Weekly, Monthly, Yearly:
		return Interval(raw), nil
	}
	return "", badQuery("`interval` must be one of `minutely`, `hourly`, `daily`, `weekly`, `monthly`, `yearly`")
}

// IntervalResult is one bucket of a time-series response.
type IntervalResult struct {
	Interval string `json:"interval"`
	Result   any    `json:"result"`
}

// bucketStart truncates t to the calendar start of the interval unit.
// All bucketing is UTC; weeks start on Sunday.
func bucketStart(t time.Time, iv Interval) time.Time {
	t = t.UTC()
	switch iv {
	case Minutely:
		return t.Truncate(time.Minute)
	case Hourly:
		return t.Truncate(time.Hour)
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Weekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -int(day.Weekday()))
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// bucketLabel renders the response label for a bucket start.
func bucketLabel(t time.Time, iv Interval) string {
	switch iv {
	case Minutely, Hourly:
		return t.Format("02-Jan-2006:15:04")
	case Daily, Weekly:
		return t.Format("02-Jan-2006")
	case Monthly:
		return t.Format("Jan-2006")
	case Yearly:
		return t.Format("2006")
	}
	return t.Format(time.RFC3339)
}

// AggregateByInterval partitions rows by the calendar start of their
// reserved timestamp and reduces each bucket with the archetype's
// aggregate. Buckets are disjoint and cover the input exactly; rows
// without a readable timestamp cannot be bucketed and fail the query.
func AggregateByInterval(rows []store.Row, iv Interval, agg aggKind, target string, pct float64) ([]IntervalResult, *QueryError) {
	type bucket struct {
		start time.Time
		rows  []store.Row
	}
	grouped := make(map[int64]*bucket)
	for _, row := range rows {
		ts, ok := toFloat(row[store.TimestampColumn])
		if !ok {
			return nil, badQuery("row is missing the reserved timestamp column")
		}
		start := bucketStart(time.UnixMilli(int64(ts)), iv)
		key := start.UnixNano()
		b, exists := grouped[key]
		if !exists {
			b = &bucket{start: start}
			grouped[key] = b
		}
		b.rows = append(b.rows, row)
	}

	buckets := make([]*bucket, 0, len(grouped))
	for _, b := range grouped {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].start.Before(buckets[j].start) })

	results := make([]IntervalResult, 0, len(buckets))
	for _, b := range buckets {
		results = append(results, IntervalResult{
			Interval: bucketLabel(b.start, iv),
			Result:   reduce(b.rows, agg, target, pct),
		})
	}
	return results, nil
}

// GroupByProperty partitions rows by the literal value of the group_by
// column and reduces each group. Used by the raw-row archetypes whose
// aggregation happens client-side. The named column must exist in the
// retrieved row shape.
func GroupByProperty(rows []store.Row, groupBy, resultKey string, agg aggKind, target string, pct float64) ([]store.Row, *QueryError) {
	if len(rows) > 0 {
		if _, ok := rows[0][groupBy]; !ok {
			return nil, badQuery("column %q does not exist", groupBy)
		}
	}

	keys := make([]string, 0)
	grouped := make(map[string][]store.Row)
	values := make(map[string]any)
	for _, row := range rows {
		v := row[groupBy]
		k := fmt.Sprintf("%v", v)
		if _, seen := grouped[k]; !seen {
			keys = append(keys, k)
			values[k] = v
		}
		grouped[k] = append(grouped[k], row)
	}
	sort.Strings(keys)

	results := make([]store.Row, 0, len(keys))
	for _, k := range keys {
		results = append(results, store.Row{
			groupBy:   values[k],
			resultKey: reduce(grouped[k], agg, target, pct),
		})
	}
	return results, nil
}

// reduce applies one aggregate to a set of rows.
func reduce(rows []store.Row, agg aggKind, target string, pct float64) any {
	switch agg {
	case aggCount:
		return len(rows)
	case aggMin:
		vals := columnValues(rows, target)
		if len(vals) == 0 {
			return nil
		}
		min := vals[0]
		for _, v := range vals[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case aggMax:
		vals := columnValues(rows, target)
		if len(vals) == 0 {
			return nil
		}
		max := vals[0]
		for _, v := range vals[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case aggSum:
		var sum float64
		for _, v := range columnValues(rows, target) {
			sum += v
		}
		return sum
	case aggAvg:
		vals := columnValues(rows, target)
		if len(vals) == 0 {
			return nil
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	case aggPercentile:
		if v, ok := PercentileOf(columnValues(rows, target), pct); ok {
			return v
		}
		return nil
	case aggCountUnique:
		return len(distinctValues(rows, target))
	case aggSelectUnique:
		return distinctValues(rows, target)
	}
	return nil
}

// columnValues extracts the numeric values of one column, skipping
// rows where the column is absent or non-numeric.
func columnValues(rows []store.Row, column string) []float64 {
	vals := make([]float64, 0, len(rows))
	for _, row := range rows {
		if f, ok := toFloat(row[column]); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

// distinctValues returns each distinct value of a column exactly once,
// in first-seen order.
func distinctValues(rows []store.Row, column string) []any {
	seen := make(map[string]struct{}, len(rows))
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		v, ok := row[column]
		if !ok {
			continue
		}
		k := fmt.Sprintf("%v", v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// PercentileOf computes the nearest-rank percentile of values at rank
// p in [0,100]. The input is sorted ascending, the value at position
// ceil(p/100*N) (clamped to the ends) is returned: rank 0 yields the
// minimum, rank 100 the maximum, rank 50 the median of an odd-length
// list. An empty input has no value and reports ok=false.
func PercentileOf(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1], true
}

// ToObjectOfArrays transposes an array of row objects into one object
// mapping each key to the array of its values across rows. Rows with
// divergent key sets produce arrays of differing length; that is the
// documented contract, not an error.
func ToObjectOfArrays(rows []store.Row) map[string][]any {
	out := make(map[string][]any)
	for _, row := range rows {
		for k, v := range row {
			out[k] = append(out[k], v)
		}
	}
	return out
}
