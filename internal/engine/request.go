package engine

// Request carries one decoded query. The HTTP layer fills it from the
// URL path and query string; nothing here has been validated yet.
type Request struct {
	ProjectID  string
	Archetype  Archetype
	Collection string

	// Credentials. Either key may satisfy a read query; /collections
	// requires the master key.
	ReadKey   string
	MasterKey string

	// TargetProperty is the analysed column. Required by every
	// archetype except count and extraction.
	TargetProperty string

	// Percentile is the rank for the percentile archetype.
	// PercentileSet distinguishes an explicit 0 from an absent value.
	Percentile    float64
	PercentileSet bool

	GroupBy  string
	Interval string

	// Latest caps the number of rows fetched; zero falls back to the
	// engine's row cap.
	Latest int

	// Outliers selects the outlier policy (include, exclude, only).
	// OutliersIn names the column the policy applies to; required
	// whenever the policy is exclude or only.
	Outliers   string
	OutliersIn string

	// FiltersRaw and TimeframeRaw are the undecoded query-string
	// values; the engine parses them.
	FiltersRaw   string
	TimeframeRaw string

	// ConcatResults transposes extraction output from an array of
	// objects to an object of arrays.
	ConcatResults bool

	// Export writes extraction rows to object storage instead of
	// inlining them in the response.
	Export bool

	// Type and Dt drive the historical (eeris) archetype: type is the
	// rollup window (week, month, day), dt the day selector for the
	// day window.
	Type string
	Dt   string
}
