// Package observability tracks query workload statistics for operational introspection.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks which archetypes run and which columns queries
// filter on. The per-column counts are the raw material for deciding
// what to index; the archetype counts show what the workload looks
// like. All methods are O(1) on the hot path and thread-safe.
type QueryStats struct {
	mu            sync.RWMutex
	archetypeFreq map[string]*ArchetypeStats
	predicateFreq map[string]*PredicateStats
	window        time.Duration
}

// ArchetypeStats holds usage counts for one query archetype.
type ArchetypeStats struct {
	Archetype string    `json:"archetype"`
	Frequency int64     `json:"frequency"`
	Failures  int64     `json:"failures"`
	LastSeen  time.Time `json:"last_seen"`
}

// PredicateStats holds filter statistics for one column.
type PredicateStats struct {
	Column    string         `json:"column"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Operators map[string]int `json:"operators"` // operator → count (e.g., "eq" → 5)
}

// NewQueryStats creates a new workload statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		archetypeFreq: make(map[string]*ArchetypeStats),
		predicateFreq: make(map[string]*PredicateStats),
		window:        window,
	}
}

// RecordQuery records one executed query of the given archetype.
func (q *QueryStats) RecordQuery(archetype string, failed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.archetypeFreq[archetype]
	if !exists {
		stats = &ArchetypeStats{Archetype: archetype}
		q.archetypeFreq[archetype] = stats
	}

	stats.Frequency++
	if failed {
		stats.Failures++
	}
	stats.LastSeen = time.Now()
}

// RecordPredicate records a filter predicate against a column.
// column: the filtered column name (e.g., "voltage")
// operator: the filter operator (e.g., "eq", "gt", "lte")
func (q *QueryStats) RecordPredicate(column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.predicateFreq[column]
	if !exists {
		stats = &PredicateStats{
			Column:    column,
			Operators: make(map[string]int),
		}
		q.predicateFreq[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// Archetypes returns a copy of all archetype counts sorted by
// frequency (descending).
func (q *QueryStats) Archetypes() []ArchetypeStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := make([]ArchetypeStats, 0, len(q.archetypeFreq))
	for _, s := range q.archetypeFreq {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Frequency > stats[j].Frequency
	})
	return stats
}

// TopPredicates returns the top N filtered columns by frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (q *QueryStats) TopPredicates(n int) []PredicateStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.predicateFreq) == 0 {
		return []PredicateStats{}
	}

	stats := make([]PredicateStats, 0, len(q.predicateFreq))
	for _, s := range q.predicateFreq {
		// Deep copy to prevent external modification.
		statsCopy := PredicateStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Operators: make(map[string]int),
		}
		for op, count := range s.Operators {
			statsCopy.Operators[op] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Frequency > stats[j].Frequency
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for arch, stats := range q.archetypeFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.archetypeFreq, arch)
		}
	}
	for col, stats := range q.predicateFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.predicateFreq, col)
		}
	}
}
