// Package cache provides the statistics cache the query engine consults
// for outlier dispersion stats and pre-aggregated historical rollups.
// Entries are written cache-aside with no TTL; eviction is an external
// operational concern.
package cache

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the cache backend cannot be reached.
var ErrUnavailable = errors.New("stats cache unavailable")

// Cache is a flat string key/value store. Values are JSON documents:
// {"mean":..,"stddev":..} for outlier stats, a bucket-label map for
// historical rollups.
type Cache interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value for key with no expiry. Concurrent writers
	// race benignly; last writer wins.
	Set(ctx context.Context, key, value string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
