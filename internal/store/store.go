// Package store provides the relational event-store adapter. Event
// collections are dynamically created tables named
// "{projectId}_{collection}"; the engine only ever reads them.
package store

import (
	"context"
	"errors"
)

// TimestampColumn is the reserved column that orders every event record.
// It is written at ingestion time and is the only column guaranteed to
// exist in every collection.
const TimestampColumn = "krater$timestamp"

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("event store unavailable")

// Row is a decoded result row: column name to Go value. Numeric columns
// decode to float64 or int64, timestamps to epoch milliseconds.
type Row = map[string]any

// ColumnInfo describes one column of an event collection.
type ColumnInfo struct {
	ColumnName string `json:"column_name"`
	Type       string `json:"type"`
}

// EventStore is the read-only surface the query engine needs from the
// relational backend.
type EventStore interface {
	// QueryRows executes a single read statement with bound args and
	// returns the decoded rows.
	QueryRows(ctx context.Context, query string, args ...any) ([]Row, error)

	// ColumnStats computes mean and standard deviation over the full,
	// unfiltered column. Used to lazily populate the outlier stats cache.
	ColumnStats(ctx context.Context, table, column string) (mean, stddev float64, err error)

	// Collections lists the columns of every event collection owned by
	// the given project, keyed by collection name.
	Collections(ctx context.Context, projectID string) (map[string][]ColumnInfo, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
