package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore reads projects from the shared relational backend. It
// shares the event store's connection pool.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// EnsureSchema creates the projects table if it does not exist. The
// management service owns the rows; the query engine only needs the
// table present for lookups.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS projects (
		project_id   VARCHAR(64) PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		organization VARCHAR(255) NOT NULL DEFAULT '',
		read_key     VARCHAR(64) NOT NULL,
		write_key    VARCHAR(64) NOT NULL,
		master_key   VARCHAR(64) NOT NULL,
		created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("ensure projects schema: %w", err)
	}
	return nil
}

// Get returns the project for projectID, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, projectID string) (*Project, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT project_id, title, organization, read_key, write_key, master_key, created_at
		  FROM projects
		 WHERE project_id = $1`, projectID).
		Scan(&p.ProjectID, &p.Title, &p.Organization, &p.ReadKey, &p.WriteKey, &p.MasterKey, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup project %s: %w", projectID, err)
	}
	return &p, nil
}
