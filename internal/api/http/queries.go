package http

import (
	"net/http"
	"strconv"

	"github.com/kraterdb/krater/internal/engine"
)

// QueryAPI exposes the query engine over GET endpoints. Every input
// arrives in the URL: archetype and project in the path, everything
// else in the query string.
type QueryAPI struct {
	engine *engine.Engine
}

// NewQueryAPI creates the query API over an engine.
func NewQueryAPI(eng *engine.Engine) *QueryAPI {
	return &QueryAPI{engine: eng}
}

// Register installs the query routes on mux, wrapped in chain.
func (a *QueryAPI) Register(mux *http.ServeMux, chain func(http.Handler) http.Handler) {
	mux.Handle("GET /projects/{projectID}/queries/{archetype}", chain(http.HandlerFunc(a.handleQuery)))
	mux.Handle("GET /projects/{projectID}/queries/collections", chain(http.HandlerFunc(a.handleCollections)))

	// Anything else under /projects is a malformed query, not a 404.
	mux.Handle("/projects/", chain(http.HandlerFunc(a.handleInvalid)))
}

func (a *QueryAPI) handleQuery(w http.ResponseWriter, r *http.Request) {
	archetype := engine.Archetype(r.PathValue("archetype"))
	if !engine.KnownArchetype(archetype) {
		a.handleInvalid(w, r)
		return
	}

	req, qerr := parseRequest(r, archetype)
	if qerr != nil {
		writeQueryError(w, qerr)
		return
	}

	results, qerr := a.engine.Execute(r.Context(), req)
	if qerr != nil {
		writeQueryError(w, qerr)
		return
	}
	writeResults(w, results)
}

func (a *QueryAPI) handleCollections(w http.ResponseWriter, r *http.Request) {
	results, qerr := a.engine.Collections(r.Context(),
		r.PathValue("projectID"), r.URL.Query().Get("masterKey"))
	if qerr != nil {
		writeQueryError(w, qerr)
		return
	}
	writeResults(w, results)
}

func (a *QueryAPI) handleInvalid(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusBadRequest, "This is not a valid query!")
}

// parseRequest decodes the query string into an engine request.
// Validation beyond basic number parsing belongs to the engine.
func parseRequest(r *http.Request, archetype engine.Archetype) (*engine.Request, *engine.QueryError) {
	q := r.URL.Query()

	req := &engine.Request{
		ProjectID:      r.PathValue("projectID"),
		Archetype:      archetype,
		Collection:     q.Get("event_collection"),
		ReadKey:        q.Get("readKey"),
		MasterKey:      q.Get("masterKey"),
		TargetProperty: q.Get("target_property"),
		GroupBy:        q.Get("group_by"),
		Interval:       q.Get("interval"),
		Outliers:       q.Get("outliers"),
		OutliersIn:     q.Get("outliers_in"),
		FiltersRaw:     q.Get("filters"),
		TimeframeRaw:   q.Get("timeframe"),
		ConcatResults:  q.Get("concat_results") == "true",
		Export:         q.Get("export") == "true",
		Type:           q.Get("type"),
		Dt:             q.Get("dt"),
	}

	if raw := q.Get("percentile"); raw != "" {
		pct, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &engine.QueryError{
				Kind:    engine.ErrBadQuery,
				Message: "`percentile` must be a number",
			}
		}
		req.Percentile = pct
		req.PercentileSet = true
	}

	if raw := q.Get("latest"); raw != "" {
		latest, err := strconv.Atoi(raw)
		if err != nil || latest < 0 {
			return nil, &engine.QueryError{
				Kind:    engine.ErrBadQuery,
				Message: "`latest` must be a non-negative integer",
			}
		}
		req.Latest = latest
	}

	return req, nil
}
