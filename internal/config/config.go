// Package config provides unified configuration for the Krater query service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration for the query service.
type Config struct {
	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Store is the event store (Postgres wire) configuration
	Store StoreConfig `json:"store" yaml:"store"`

	// Cache is the Redis configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Query engine configuration
	Query QueryConfig `json:"query" yaml:"query"`

	// Export configuration for extraction exports
	Export ExportConfig `json:"export" yaml:"export"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// StoreConfig holds event store connection configuration.
type StoreConfig struct {
	// Host is the store host
	Host string `json:"host" yaml:"host"`

	// Port is the store port
	Port int `json:"port" yaml:"port"`

	// User is the connection user
	User string `json:"user" yaml:"user"`

	// Password is the connection password
	Password string `json:"password" yaml:"password"`

	// DBName is the database name
	DBName string `json:"dbname" yaml:"dbname"`

	// SSLMode is the connection TLS mode (disable, require, verify-full)
	SSLMode string `json:"sslmode" yaml:"sslmode"`

	// MaxOpenConns bounds the connection pool
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns bounds the idle connections kept
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// CacheConfig holds Redis configuration.
type CacheConfig struct {
	// Addr is the Redis host:port
	Addr string `json:"addr" yaml:"addr"`

	// Password is the Redis password (empty for none)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database index
	DB int `json:"db" yaml:"db"`
}

// QueryConfig holds query engine configuration.
type QueryConfig struct {
	// RowCap is the global row limit applied when `latest` is absent
	RowCap int `json:"row_cap" yaml:"row_cap"`

	// Timeout is the per-query execution timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// DebugErrors exposes backend error text in responses
	DebugErrors bool `json:"debug_errors" yaml:"debug_errors"`

	// StatsWindow is the retention window for workload statistics
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// ExportConfig holds extraction export configuration.
type ExportConfig struct {
	// Enabled turns the export=true extraction path on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the export destination type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local destination path (for local type)
	Path string `json:"path" yaml:"path"`

	// Compress enables snappy compression of export payloads
	Compress bool `json:"compress" yaml:"compress"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 export destination configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Store: StoreConfig{
			Host:         "localhost",
			Port:         26257,
			User:         "root",
			DBName:       "krater",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
		},
		Query: QueryConfig{
			RowCap:      5000,
			Timeout:     30 * time.Second,
			StatsWindow: time.Hour,
		},
		Export: ExportConfig{
			Type: "local",
			Path: "./data/krater/exports",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Store.Host == "" {
		return fmt.Errorf("store.host is required")
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		return fmt.Errorf("store.port must be a valid port, got %d", c.Store.Port)
	}
	if c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required")
	}
	if c.Query.RowCap <= 0 {
		return fmt.Errorf("query.row_cap must be positive, got %d", c.Query.RowCap)
	}
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive, got %s", c.Query.Timeout)
	}

	if c.Export.Enabled {
		if c.Export.Type != "local" && c.Export.Type != "s3" {
			return fmt.Errorf("invalid export type: %s (must be local or s3)", c.Export.Type)
		}
		if c.Export.Type == "s3" && c.Export.S3.Bucket == "" {
			return fmt.Errorf("export.s3.bucket is required when export type is s3")
		}
		if c.Export.Type == "local" && c.Export.Path == "" {
			return fmt.Errorf("export.path is required when export type is local")
		}
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the KRATER_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("KRATER_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Store configuration
	if v := os.Getenv("KRATER_STORE_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv("KRATER_STORE_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Store.Port)
	}
	if v := os.Getenv("KRATER_STORE_USER"); v != "" {
		cfg.Store.User = v
	}
	if v := os.Getenv("KRATER_STORE_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("KRATER_STORE_DBNAME"); v != "" {
		cfg.Store.DBName = v
	}
	if v := os.Getenv("KRATER_STORE_SSLMODE"); v != "" {
		cfg.Store.SSLMode = v
	}

	// Cache configuration
	if v := os.Getenv("KRATER_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("KRATER_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("KRATER_CACHE_DB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Cache.DB)
	}

	// Query configuration
	if v := os.Getenv("KRATER_QUERY_ROW_CAP"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.RowCap)
	}
	if v := os.Getenv("KRATER_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Query.Timeout = d
		}
	}
	if v := os.Getenv("KRATER_QUERY_DEBUG_ERRORS"); v != "" {
		cfg.Query.DebugErrors = v == "true" || v == "1"
	}

	// Export configuration
	if v := os.Getenv("KRATER_EXPORT_ENABLED"); v != "" {
		cfg.Export.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("KRATER_EXPORT_TYPE"); v != "" {
		cfg.Export.Type = v
	}
	if v := os.Getenv("KRATER_EXPORT_PATH"); v != "" {
		cfg.Export.Path = v
	}
	if v := os.Getenv("KRATER_EXPORT_COMPRESS"); v != "" {
		cfg.Export.Compress = v == "true" || v == "1"
	}
	if v := os.Getenv("KRATER_S3_BUCKET"); v != "" {
		cfg.Export.S3.Bucket = v
	}
	if v := os.Getenv("KRATER_S3_REGION"); v != "" {
		cfg.Export.S3.Region = v
	}
	if v := os.Getenv("KRATER_S3_ENDPOINT"); v != "" {
		cfg.Export.S3.Endpoint = v
	}
}
