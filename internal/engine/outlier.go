package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraterdb/krater/internal/cache"
	"github.com/kraterdb/krater/internal/store"
)

// OutlierPolicy toggles inclusion of dispersion outliers in a query.
type OutlierPolicy string

const (
	OutliersInclude OutlierPolicy = "include"
	OutliersExclude OutlierPolicy = "exclude"
	OutliersOnly    OutlierPolicy = "only"
)

// active reports whether the policy needs a predicate at all.
func (p OutlierPolicy) active() bool {
	return p == OutliersExclude || p == OutliersOnly
}

// outlierK is the dispersion multiplier: a value is an outlier when it
// falls more than outlierK standard deviations from the column mean.
const outlierK = 3.0

// OutlierStat is the cached dispersion snapshot for one
// (collection, property) pair. Stats are computed lazily on first use
// and never auto-invalidated; they go stale as new data arrives, which
// is an accepted operational tradeoff.
type OutlierStat struct {
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

// statsComputer is the slice of the event store the detector needs.
type statsComputer interface {
	ColumnStats(ctx context.Context, table, column string) (mean, stddev float64, err error)
}

// Detector builds outlier predicates backed by the stats cache.
type Detector struct {
	cache cache.Cache
	store statsComputer
}

// NewDetector creates an outlier detector.
func NewDetector(c cache.Cache, s statsComputer) *Detector {
	return &Detector{cache: c, store: s}
}

// statKey is the cache key for one (project, collection, property)
// stats entry.
func statKey(projectID, collection, property string) string {
	return fmt.Sprintf("%s_%s_%s", projectID, collection, property)
}

// Predicate returns the exclusion/inclusion condition for the policy.
// On a cache miss the stats are computed from the full unfiltered
// column and written back cache-aside; a concurrent recomputation race
// is benign (last writer wins).
func (d *Detector) Predicate(ctx context.Context, projectID, collection, property string, policy OutlierPolicy) (condition, *QueryError) {
	if !policy.active() {
		return condition{}, nil
	}
	if err := checkIdent("property", property); err != nil {
		return condition{}, err
	}

	stat, err := d.lookup(ctx, projectID, collection, property)
	if err != nil {
		return condition{}, badQuery("outlier stats: %v", err)
	}

	lo := stat.Mean - outlierK*stat.Stddev
	hi := stat.Mean + outlierK*stat.Stddev
	col := store.QuoteIdent(property)

	expr := col + " BETWEEN ? AND ?"
	if policy == OutliersOnly {
		expr = "NOT (" + expr + ")"
	}
	return condition{expr: expr, args: []any{lo, hi}}, nil
}

func (d *Detector) lookup(ctx context.Context, projectID, collection, property string) (OutlierStat, error) {
	key := statKey(projectID, collection, property)

	if raw, ok, err := d.cache.Get(ctx, key); err != nil {
		return OutlierStat{}, err
	} else if ok {
		var stat OutlierStat
		if err := json.Unmarshal([]byte(raw), &stat); err == nil {
			return stat, nil
		}
		// Unreadable entry: fall through and recompute over it.
	}

	mean, stddev, err := d.store.ColumnStats(ctx, projectID+"_"+collection, property)
	if err != nil {
		return OutlierStat{}, err
	}
	stat := OutlierStat{Mean: mean, Stddev: stddev}

	encoded, err := json.Marshal(stat)
	if err != nil {
		return OutlierStat{}, err
	}
	if err := d.cache.Set(ctx, key, string(encoded)); err != nil {
		return OutlierStat{}, err
	}
	return stat, nil
}
