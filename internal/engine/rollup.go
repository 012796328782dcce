package engine

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/kraterdb/krater/internal/cache"
)

// Rollup windows accepted by the historical archetype.
const (
	RollupWeek  = "week"
	RollupMonth = "month"
	RollupDay   = "day"
)

// RollupStats summarizes one reconstructed window.
type RollupStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RollupResult is the historical response body: one value per bucket
// in chronological order, plus the window summary.
type RollupResult struct {
	Values []float64   `json:"values"`
	Stats  RollupStats `json:"stats"`
}

// RollupReader reconstructs windows of pre-aggregated history from
// the cache. The ingestion side maintains one cache entry per
// project/collection/property holding a flat map of dated stats
// (count_2024-03-01, sum_2024-03-01, avg_2024-03, avg_2024-03-01_13
// and so on); the reader only ever walks that map, it never touches
// the event store.
type RollupReader struct {
	cache cache.Cache
	now   func() time.Time
}

func NewRollupReader(c cache.Cache) *RollupReader {
	return &RollupReader{cache: c, now: time.Now}
}

// Read reconstructs the window named by req.Type. All bucket walks
// are calendar walks in UTC; buckets absent from the cache entry
// count as zero.
func (r *RollupReader) Read(ctx context.Context, req *Request) (*RollupResult, *QueryError) {
	switch req.Type {
	case RollupWeek, RollupMonth, RollupDay:
	default:
		return nil, badQuery("Wrong or missing `type` parameter")
	}

	hist, qerr := r.load(ctx, rollupKey(req.ProjectID, req.Collection, req.TargetProperty))
	if qerr != nil {
		return nil, qerr
	}

	switch req.Type {
	case RollupWeek:
		return r.week(hist, req.Dt)
	case RollupMonth:
		return r.month(hist, req.Dt)
	default:
		return r.day(hist, req.Dt)
	}
}

func rollupKey(projectID, collection, property string) string {
	return projectID + "_" + collection + "_" + property + "_hist"
}

func (r *RollupReader) load(ctx context.Context, key string) (map[string]float64, *QueryError) {
	raw, found, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, badQuery("historical store unavailable: %v", err)
	}
	if !found {
		return nil, badQuery("no history recorded for this property")
	}
	hist := make(map[string]float64)
	if err := json.Unmarshal([]byte(raw), &hist); err != nil {
		return nil, badQuery("corrupt history entry: %v", err)
	}
	return hist, nil
}

// anchor resolves the walk's starting day: the dt parameter when
// given, otherwise today.
func (r *RollupReader) anchor(dt string) (time.Time, *QueryError) {
	if dt == "" {
		now := r.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.ParseInLocation("2006-01-02", dt, time.UTC)
	if err != nil {
		return time.Time{}, badQuery("`dt` must be a YYYY-MM-DD date")
	}
	return day, nil
}

// week walks the seven days ending at the anchor. The per-day average
// series runs oldest first; the window average is recomputed from the
// summed counts rather than averaging the daily averages, and the
// window minimum skips zero-filled days so an idle day cannot mask a
// real minimum.
func (r *RollupReader) week(hist map[string]float64, dt string) (*RollupResult, *QueryError) {
	day, qerr := r.anchor(dt)
	if qerr != nil {
		return nil, qerr
	}

	out := &RollupResult{Values: make([]float64, 0, 7)}
	min := math.Inf(1)
	max := math.Inf(-1)
	var count, sum float64
	for i := 0; i < 7; i++ {
		k := day.Format("2006-01-02")
		count += hist["count_"+k]
		sum += hist["sum_"+k]
		out.Values = append([]float64{hist["avg_"+k]}, out.Values...)
		if v := hist["min_"+k]; v != 0 && v < min {
			min = v
		}
		if v := hist["max_"+k]; v > max {
			max = v
		}
		day = day.AddDate(0, 0, -1)
	}
	if count != 0 {
		out.Stats.Avg = sum / count
	}
	if !math.IsInf(min, 1) {
		out.Stats.Min = min
	}
	if !math.IsInf(max, -1) {
		out.Stats.Max = max
	}
	return out, nil
}

// month reports the anchor month's summary and the per-day average
// series for the part of the current month up to the anchor. The walk
// stops at the month boundary, so an anchor outside the current month
// yields an empty series with the summary intact.
func (r *RollupReader) month(hist map[string]float64, dt string) (*RollupResult, *QueryError) {
	day, qerr := r.anchor(dt)
	if qerr != nil {
		return nil, qerr
	}
	monthKey := day.Format("2006-01")

	out := &RollupResult{Values: []float64{}}
	out.Stats.Avg = hist["avg_"+monthKey]
	out.Stats.Min = hist["min_"+monthKey]
	out.Stats.Max = hist["max_"+monthKey]

	current := r.now().UTC().Month()
	for day.Month() == current {
		k := monthKey + day.Format("-02")
		out.Values = append([]float64{hist["avg_"+k]}, out.Values...)
		day = day.AddDate(0, 0, -1)
	}
	return out, nil
}

// day reports the 24 hourly averages of the dt day plus that day's
// summary. Unlike week and month, there is no implicit "today": the
// day window is only meaningful for an explicit date.
func (r *RollupReader) day(hist map[string]float64, dt string) (*RollupResult, *QueryError) {
	if dt == "" {
		return nil, badQuery("`dt` is required for the day window")
	}
	day, qerr := r.anchor(dt)
	if qerr != nil {
		return nil, qerr
	}

	out := &RollupResult{Values: make([]float64, 0, 24)}
	for hour := day; hour.Day() == day.Day(); hour = hour.Add(time.Hour) {
		out.Values = append(out.Values, hist["avg_"+hour.Format("2006-01-02_15")])
	}
	out.Stats.Avg = hist["avg_"+dt]
	out.Stats.Min = hist["min_"+dt]
	out.Stats.Max = hist["max_"+dt]
	return out, nil
}
