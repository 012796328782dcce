package engine

import (
	"github.com/kraterdb/krater/internal/store"
)

// Archetype identifies one of the supported query shapes. The set is
// closed: dispatch goes through the archetypes table so an unhandled
// entry is a programming error, not a silent passthrough.
type Archetype string

const (
	Count       Archetype = "count"
	Minimum     Archetype = "minimum"
	Maximum     Archetype = "maximum"
	Sum         Archetype = "sum"
	Average     Archetype = "average"
	Median      Archetype = "median"
	Percentile  Archetype = "percentile"
	CountUnique Archetype = "count_unique"
	SelectUnique Archetype = "select_unique"
	Extraction  Archetype = "extraction"

	// Historical is the pre-aggregated rollup view. It never touches
	// the relational store; see rollup.go.
	Historical Archetype = "eeris"
)

// KnownArchetype reports whether a names a supported query shape.
func KnownArchetype(a Archetype) bool {
	_, ok := archetypes[a]
	return ok
}

// aggKind names the reduction applied to a bucket or group of rows on
// the client-side aggregation paths.
type aggKind int

const (
	aggNone aggKind = iota
	aggCount
	aggMin
	aggMax
	aggSum
	aggAvg
	aggPercentile
	aggCountUnique
	aggSelectUnique
)

// archetypeSpec drives validation, SQL projection, and result shaping
// for one archetype.
type archetypeSpec struct {
	// needsTarget requires target_property at the gate.
	needsTarget bool
	// needsPercentile requires the percentile parameter at the gate.
	needsPercentile bool
	// rawRows fetches unaggregated rows even without an interval;
	// aggregation (if any) happens client-side.
	rawRows bool
	// postFilter re-applies the request filters to decoded rows, so
	// filtering composes with columns outside the projection.
	postFilter bool
	// agg is the client-side reduction for interval/group paths.
	agg aggKind
	// resultKey is the JSON key of the aggregate in result rows.
	resultKey string
	// projection renders the SQL aggregate expression for the
	// non-interval path. Empty for raw-row archetypes.
	projection func(target string) string
}

var archetypes = map[Archetype]archetypeSpec{
	Count: {
		agg:       aggCount,
		resultKey: "count",
		projection: func(string) string {
			return "COUNT(*) AS count"
		},
	},
	Minimum: {
		needsTarget: true,
		agg:         aggMin,
		resultKey:   "min",
		projection: func(target string) string {
			return "MIN(" + store.QuoteIdent(target) + ") AS min"
		},
	},
	Maximum: {
		needsTarget: true,
		agg:         aggMax,
		resultKey:   "max",
		projection: func(target string) string {
			return "MAX(" + store.QuoteIdent(target) + ") AS max"
		},
	},
	Sum: {
		needsTarget: true,
		agg:         aggSum,
		resultKey:   "sum",
		projection: func(target string) string {
			return "SUM(" + store.QuoteIdent(target) + ") AS sum"
		},
	},
	Average: {
		needsTarget: true,
		agg:         aggAvg,
		resultKey:   "avg",
		projection: func(target string) string {
			return "AVG(" + store.QuoteIdent(target) + ") AS avg"
		},
	},
	Median: {
		needsTarget: true,
		rawRows:     true,
		postFilter:  true,
		agg:         aggPercentile,
		resultKey:   "median",
	},
	Percentile: {
		needsTarget:     true,
		needsPercentile: true,
		rawRows:         true,
		postFilter:      true,
		agg:             aggPercentile,
		resultKey:       "percentile",
	},
	CountUnique: {
		needsTarget: true,
		postFilter:  true,
		agg:         aggCountUnique,
		resultKey:   "count",
		projection: func(target string) string {
			return "COUNT(DISTINCT " + store.QuoteIdent(target) + ") AS count"
		},
	},
	SelectUnique: {
		needsTarget: true,
		postFilter:  true,
		agg:         aggSelectUnique,
		resultKey:   "result",
		projection: func(target string) string {
			q := store.QuoteIdent(target)
			return "ARRAY_AGG(DISTINCT " + q + ") AS " + q
		},
	},
	Extraction: {
		rawRows:    true,
		postFilter: true,
	},
	Historical: {
		needsTarget: true,
	},
}
