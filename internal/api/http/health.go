package http

import (
	"context"
	"net/http"

	"github.com/kraterdb/krater/internal/observability"
)

// pinger is anything with a liveness probe.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports readiness of the event store and the cache.
type HealthHandler struct {
	store pinger
	cache pinger
}

func NewHealthHandler(store, cache pinger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"store": "ok", "cache": "ok"}
	healthy := true

	if err := h.store.Ping(r.Context()); err != nil {
		status["store"] = err.Error()
		healthy = false
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		status["cache"] = err.Error()
		healthy = false
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Envelope{OK: healthy, Results: status})
}

// StatsHandler exposes the workload statistics snapshot.
type StatsHandler struct {
	stats *observability.QueryStats
}

func NewStatsHandler(stats *observability.QueryStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeResults(w, map[string]any{
		"archetypes": h.stats.Archetypes(),
		"predicates": h.stats.TopPredicates(20),
	})
}
