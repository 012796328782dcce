package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Config holds connection settings for the Postgres-wire backend
// (CockroachDB or Postgres).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// QueryTimeout bounds every statement issued through this adapter.
	QueryTimeout time.Duration
}

// DefaultConfig returns settings suitable for a local CockroachDB node.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            26257,
		User:            "krater",
		DBName:          "krater",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Postgres implements EventStore over a pooled database/sql connection.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the backend and verifies the connection.
func Open(cfg Config) (*Postgres, error) {
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.DBName, cfg.SSLMode)
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping event store: %w", err)
	}

	return &Postgres{db: db, timeout: cfg.QueryTimeout}, nil
}

// NewWithDB wraps an existing connection pool. Used by tests and by the
// project registry, which shares the pool.
func NewWithDB(db *sql.DB, timeout time.Duration) *Postgres {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Postgres{db: db, timeout: timeout}
}

// DB exposes the underlying pool for components that share it.
func (p *Postgres) DB() *sql.DB { return p.db }

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Ping verifies connectivity within the configured timeout.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

// QueryRows executes one read statement and decodes every row into a
// column-keyed map.
func (p *Postgres) QueryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = decodeValue(raw[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ColumnStats computes mean and standard deviation over the whole
// column. A column with fewer than two rows has zero deviation.
func (p *Postgres) ColumnStats(ctx context.Context, table, column string) (float64, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q := fmt.Sprintf(`SELECT COALESCE(AVG(%s), 0), COALESCE(STDDEV(%s), 0) FROM %s`,
		QuoteIdent(column), QuoteIdent(column), table)

	var mean, stddev sql.NullFloat64
	if err := p.db.QueryRowContext(ctx, q).Scan(&mean, &stddev); err != nil {
		return 0, 0, err
	}
	return mean.Float64, stddev.Float64, nil
}

// Collections lists the schema of every collection under the project
// prefix. Internal row-id columns are hidden.
func (p *Postgres) Collections(ctx context.Context, projectID string) (map[string][]ColumnInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT table_name, column_name, data_type
		   FROM information_schema.columns
		  WHERE table_schema = 'public' AND table_name LIKE $1`,
		projectID+"\\_%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[string][]ColumnInfo)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, err
		}
		if column == "rowid" {
			continue
		}
		collection := strings.TrimPrefix(table, projectID+"_")
		results[collection] = append(results[collection], ColumnInfo{ColumnName: column, Type: dataType})
	}
	return results, rows.Err()
}

// QuoteIdent double-quotes an identifier for embedding in query text.
// Callers must have allow-list validated the identifier already; quoting
// here only preserves the reserved '$' separator in column names.
func QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, ``) + `"`
}

// decodeValue normalizes driver values for post-processing and JSON
// encoding: timestamps become epoch milliseconds, numeric byte slices
// become float64, everything else passes through.
func decodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UnixMilli()
	case []byte:
		s := string(val)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		if arr, ok := decodeArrayLiteral(s); ok {
			return arr
		}
		return s
	default:
		return v
	}
}

// decodeArrayLiteral decodes a one-dimensional Postgres array literal
// such as "{1.1,4.5,x}" (produced by ARRAY_AGG) into a slice. Quoted
// elements may contain commas and backslash-escaped characters.
func decodeArrayLiteral(s string) ([]any, bool) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, false
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []any{}, true
	}

	var out []any
	var elem strings.Builder
	quoted := false
	inQuotes := false
	flush := func() {
		v := elem.String()
		wasQuoted := quoted
		elem.Reset()
		quoted = false
		if !wasQuoted {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out = append(out, f)
				return
			}
		}
		out = append(out, v)
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case inQuotes:
			switch {
			case c == '\\' && i+1 < len(body):
				i++
				elem.WriteByte(body[i])
			case c == '"':
				inQuotes = false
			default:
				elem.WriteByte(c)
			}
		case c == '"':
			inQuotes = true
			quoted = true
		case c == ',':
			flush()
		default:
			elem.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, false
	}
	flush()
	return out, true
}
