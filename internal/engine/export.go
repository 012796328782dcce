package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/kraterdb/krater/internal/storage"
	"github.com/kraterdb/krater/internal/store"
)

// ExportResult replaces the inline rows of an extraction when the
// caller asks for an export. Exported is the object path the rows were
// written to.
type ExportResult struct {
	Exported string `json:"exported"`
	Rows     int    `json:"rows"`
}

// Exporter writes extraction rows to object storage as one JSON
// object per run. With compression enabled the payload is snappy
// block format and the object name carries a .sz suffix.
type Exporter struct {
	store    storage.ObjectStore
	compress bool
	newID    func() string
}

func NewExporter(s storage.ObjectStore, compress bool) *Exporter {
	return &Exporter{store: s, compress: compress, newID: uuid.NewString}
}

// Export marshals rows and persists them under
// exports/{projectID}/{collection}/{id}.json[.sz].
func (e *Exporter) Export(ctx context.Context, projectID, collection string, rows []store.Row) (*ExportResult, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	objectPath := fmt.Sprintf("exports/%s/%s/%s.json", projectID, collection, e.newID())
	if e.compress {
		data = snappy.Encode(nil, data)
		objectPath += ".sz"
	}

	if err := e.store.Put(ctx, objectPath, data); err != nil {
		return nil, fmt.Errorf("persist export: %w", err)
	}
	return &ExportResult{Exported: objectPath, Rows: len(rows)}, nil
}
