// Package project provides read access to the project registry. A
// project is the tenant unit: it owns event collections and holds the
// capability keys presented on every query. The query engine never
// mutates projects; creation and key rotation belong to the external
// management service.
package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no project exists for an id.
var ErrNotFound = errors.New("project not found")

// Project is one tenant. The three keys are capability tokens: readKey
// authorizes queries, writeKey authorizes ingestion (external), and
// masterKey authorizes everything.
type Project struct {
	ProjectID    string    `json:"projectId"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	ReadKey      string    `json:"readKey"`
	WriteKey     string    `json:"writeKey"`
	MasterKey    string    `json:"masterKey"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the read-side lookup the access gate depends on.
type Store interface {
	// Get returns the project for id, or ErrNotFound.
	Get(ctx context.Context, projectID string) (*Project, error)
}

// NewID generates a project identifier. Identifiers are prefixed table
// name material, so they stay within the lowercase alphanumeric
// allow-list.
func NewID() string {
	return "pid" + strings.ReplaceAll(uuid.New().String(), "-", "")[:11]
}

// NewKey generates a capability key.
func NewKey() string {
	return uuid.New().String()
}
