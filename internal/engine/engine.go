// Package engine executes declarative analytics queries against
// per-project event tables.
package engine

import (
	"context"
	"time"

	"github.com/kraterdb/krater/internal/cache"
	"github.com/kraterdb/krater/internal/observability"
	"github.com/kraterdb/krater/internal/project"
	"github.com/kraterdb/krater/internal/store"
)

// Engine wires the query pipeline: access gate, clause compilation,
// statement building, execution, and post-processing. One Engine
// serves all projects; the shared store and cache handles are pooled
// clients, so concurrent queries need no engine-level locking.
type Engine struct {
	projects project.Store
	events   store.EventStore
	detector *Detector
	rollups  *RollupReader
	builder  *Builder
	exporter *Exporter
	stats    *observability.QueryStats

	// debugErrors exposes backend error text in responses. Off by
	// default: execution errors leak schema details.
	debugErrors bool

	now func() time.Time
}

// Options configures optional engine behavior.
type Options struct {
	// RowCap overrides DefaultRowCap when positive.
	RowCap int
	// Exporter enables extraction export; nil disables it.
	Exporter *Exporter
	// Stats receives workload statistics; nil disables tracking.
	Stats *observability.QueryStats
	// DebugErrors exposes backend error text in query failures.
	DebugErrors bool
}

// New creates an engine over the given project store, event store,
// and cache.
func New(projects project.Store, events store.EventStore, c cache.Cache, opts Options) *Engine {
	return &Engine{
		projects:    projects,
		events:      events,
		detector:    NewDetector(c, events),
		rollups:     NewRollupReader(c),
		builder:     &Builder{RowCap: opts.RowCap},
		exporter:    opts.Exporter,
		stats:       opts.Stats,
		debugErrors: opts.DebugErrors,
		now:         time.Now,
	}
}

// Execute runs one query and returns the value for the response
// envelope's results field.
func (e *Engine) Execute(ctx context.Context, req *Request) (any, *QueryError) {
	result, qerr := e.execute(ctx, req)
	if e.stats != nil {
		e.stats.RecordQuery(string(req.Archetype), qerr != nil)
	}
	return result, qerr
}

func (e *Engine) execute(ctx context.Context, req *Request) (any, *QueryError) {
	spec, ok := archetypes[req.Archetype]
	if !ok {
		return nil, badQuery("unknown archetype: %q", req.Archetype)
	}

	if _, qerr := e.authorize(ctx, req); qerr != nil {
		return nil, qerr
	}

	if qerr := checkIdent("project", req.ProjectID); qerr != nil {
		return nil, qerr
	}
	if qerr := checkIdent("collection", req.Collection); qerr != nil {
		return nil, qerr
	}
	if spec.needsTarget && req.TargetProperty == "" {
		return nil, errKind(ErrTargetNotProvided)
	}
	if req.TargetProperty != "" && req.Archetype != Extraction {
		if qerr := checkIdent("property", req.TargetProperty); qerr != nil {
			return nil, qerr
		}
	}
	if req.GroupBy != "" {
		if qerr := checkIdent("property", req.GroupBy); qerr != nil {
			return nil, qerr
		}
	}

	pct, qerr := e.percentileRank(req, spec)
	if qerr != nil {
		return nil, qerr
	}

	if req.Archetype == Historical {
		return e.rollups.Read(ctx, req)
	}

	iv, qerr := ParseInterval(req.Interval)
	if qerr != nil {
		return nil, qerr
	}

	filters := ParseFilters(req.FiltersRaw)
	conds, qerr := e.compileConditions(ctx, req, filters)
	if qerr != nil {
		return nil, qerr
	}

	query, qerr := e.builder.Build(req, conds)
	if qerr != nil {
		return nil, qerr
	}

	rows, err := e.events.QueryRows(ctx, query.SQL, query.Args...)
	if err != nil {
		if e.debugErrors {
			return nil, badQuery("%v", err)
		}
		return nil, badQuery("query execution failed")
	}

	if spec.postFilter {
		for _, f := range filters {
			rows = ApplyFilter(f, rows)
		}
	}

	return e.shape(ctx, req, spec, iv, rows, pct)
}

// authorize is the access gate: credentials present, project exists,
// key matches. A project lookup failure is reported as not-found, the
// same as a genuinely absent project, so probing cannot distinguish
// the two.
func (e *Engine) authorize(ctx context.Context, req *Request) (*project.Project, *QueryError) {
	if req.ReadKey == "" && req.MasterKey == "" {
		return nil, errKind(ErrNoCredentials)
	}
	p, err := e.projects.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, errKind(ErrProjectNotFound)
	}
	if req.ReadKey != p.ReadKey && req.MasterKey != p.MasterKey {
		return nil, errKind(ErrKeyNotAuthorized)
	}
	return p, nil
}

// percentileRank resolves the client-side percentile rank: fixed at 50
// for median, caller-supplied for percentile.
func (e *Engine) percentileRank(req *Request, spec archetypeSpec) (float64, *QueryError) {
	if req.Archetype == Median {
		return 50, nil
	}
	if !spec.needsPercentile {
		return 0, nil
	}
	if !req.PercentileSet {
		return 0, errKind(ErrTargetNotProvided)
	}
	if req.Percentile < 0 || req.Percentile > 100 {
		return 0, badQuery("`percentile` must be between 0 and 100")
	}
	return req.Percentile, nil
}

// compileConditions assembles the WHERE fragments: timeframe window,
// request filters, outlier policy.
func (e *Engine) compileConditions(ctx context.Context, req *Request, filters []Filter) ([]condition, *QueryError) {
	conds := make([]condition, 0, len(filters)+2)

	tf, qerr := ResolveTimeframe(req.TimeframeRaw, e.now())
	if qerr != nil {
		return nil, qerr
	}
	if c := tf.Condition(); c.expr != "" {
		conds = append(conds, c)
	}

	fconds, qerr := CompileFilters(filters)
	if qerr != nil {
		return nil, qerr
	}
	if e.stats != nil {
		for _, f := range filters {
			e.stats.RecordPredicate(f.PropertyName, f.Operator)
		}
	}
	conds = append(conds, fconds...)

	policy := OutlierPolicy(req.Outliers)
	if policy.active() {
		if req.OutliersIn == "" {
			return nil, errKind(ErrTargetNotProvided)
		}
		c, qerr := e.detector.Predicate(ctx, req.ProjectID, req.Collection, req.OutliersIn, policy)
		if qerr != nil {
			return nil, qerr
		}
		if c.expr != "" {
			conds = append(conds, c)
		}
	}

	return conds, nil
}

// shape post-processes fetched rows into the response results value.
func (e *Engine) shape(ctx context.Context, req *Request, spec archetypeSpec, iv Interval, rows []store.Row, pct float64) (any, *QueryError) {
	if req.Archetype == Extraction {
		return e.shapeExtraction(ctx, req, rows)
	}

	if iv != "" {
		return AggregateByInterval(rows, iv, spec.agg, req.TargetProperty, pct)
	}

	if spec.rawRows {
		if req.GroupBy != "" {
			return GroupByProperty(rows, req.GroupBy, spec.resultKey, spec.agg, req.TargetProperty, pct)
		}
		var result any
		if v, ok := PercentileOf(columnValues(rows, req.TargetProperty), pct); ok {
			result = v
		}
		return []store.Row{{spec.resultKey: result}}, nil
	}

	// SQL-side aggregates arrive already shaped, one row ungrouped or
	// one row per group.
	return rows, nil
}

func (e *Engine) shapeExtraction(ctx context.Context, req *Request, rows []store.Row) (any, *QueryError) {
	if req.Export {
		if e.exporter == nil {
			return nil, badQuery("export is not enabled on this deployment")
		}
		result, err := e.exporter.Export(ctx, req.ProjectID, req.Collection, rows)
		if err != nil {
			if e.debugErrors {
				return nil, badQuery("%v", err)
			}
			return nil, badQuery("export failed")
		}
		return result, nil
	}
	if req.ConcatResults {
		return ToObjectOfArrays(rows), nil
	}
	return rows, nil
}

// Collections lists the event collections of a project and their
// column schemas. This is a master-key operation: it exposes schema,
// not data, but schema is still private to the project owner.
func (e *Engine) Collections(ctx context.Context, projectID, masterKey string) (map[string][]store.ColumnInfo, *QueryError) {
	if masterKey == "" {
		return nil, errKind(ErrNoCredentials)
	}
	p, err := e.projects.Get(ctx, projectID)
	if err != nil {
		return nil, errKind(ErrProjectNotFound)
	}
	if masterKey != p.MasterKey {
		return nil, errKind(ErrKeyNotAuthorized)
	}

	collections, err := e.events.Collections(ctx, projectID)
	if err != nil {
		if e.debugErrors {
			return nil, badQuery("%v", err)
		}
		return nil, badQuery("schema listing failed")
	}
	return collections, nil
}
