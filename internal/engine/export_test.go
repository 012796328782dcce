package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraterdb/krater/internal/storage"
	"github.com/kraterdb/krater/internal/store"
)

func TestExporterWritesRows(t *testing.T) {
	dest, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	exp := NewExporter(dest, false)
	exp.newID = func() string { return "run1" }

	rows := []store.Row{
		{"voltage": 10.0},
		{"voltage": 20.0},
	}
	result, err := exp.Export(context.Background(), "p1", "measurements", rows)
	require.NoError(t, err)
	assert.Equal(t, "exports/p1/measurements/run1.json", result.Exported)
	assert.Equal(t, 2, result.Rows)

	data, err := dest.Get(context.Background(), result.Exported)
	require.NoError(t, err)
	var decoded []store.Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, 10.0, decoded[0]["voltage"])
}

func TestExporterCompression(t *testing.T) {
	dest, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	exp := NewExporter(dest, true)
	exp.newID = func() string { return "run2" }

	result, err := exp.Export(context.Background(), "p1", "measurements", []store.Row{{"voltage": 10.0}})
	require.NoError(t, err)
	assert.Equal(t, "exports/p1/measurements/run2.json.sz", result.Exported)

	compressed, err := dest.Get(context.Background(), result.Exported)
	require.NoError(t, err)
	data, err := snappy.Decode(nil, compressed)
	require.NoError(t, err)

	var decoded []store.Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 1)
}

func TestExporterEmptyExtraction(t *testing.T) {
	dest, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	exp := NewExporter(dest, false)
	result, err := exp.Export(context.Background(), "p1", "measurements", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Rows)

	data, err := dest.Get(context.Background(), result.Exported)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
