// Package app provides application lifecycle management for the Krater query service.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	httpapi "github.com/kraterdb/krater/internal/api/http"
	"github.com/kraterdb/krater/internal/cache"
	"github.com/kraterdb/krater/internal/config"
	"github.com/kraterdb/krater/internal/engine"
	"github.com/kraterdb/krater/internal/observability"
	"github.com/kraterdb/krater/internal/project"
	"github.com/kraterdb/krater/internal/server"
	"github.com/kraterdb/krater/internal/storage"
	"github.com/kraterdb/krater/internal/store"
)

// App owns the shared clients and the HTTP server. One pooled store
// handle and one cache client serve all concurrent queries.
type App struct {
	cfg *config.Config

	// Shared resources
	events   *store.Postgres
	projects *project.PostgresStore
	redis    *cache.Redis
	exporter *engine.Exporter
	stats    *observability.QueryStats
	shutdown *server.ShutdownManager

	httpServer *http.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &App{cfg: cfg}, nil
}

// Start initializes shared resources and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startHTTPServer(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.startStatsPruner(ctx)

	log.Printf("Krater query service started")
	return nil
}

// initSharedResources connects the event store, the project registry,
// the cache, and the optional export destination.
func (a *App) initSharedResources(ctx context.Context) error {
	storeCfg := store.DefaultConfig()
	storeCfg.Host = a.cfg.Store.Host
	storeCfg.Port = a.cfg.Store.Port
	storeCfg.User = a.cfg.Store.User
	storeCfg.Password = a.cfg.Store.Password
	storeCfg.DBName = a.cfg.Store.DBName
	storeCfg.SSLMode = a.cfg.Store.SSLMode
	storeCfg.MaxOpenConns = a.cfg.Store.MaxOpenConns
	storeCfg.MaxIdleConns = a.cfg.Store.MaxIdleConns
	storeCfg.QueryTimeout = a.cfg.Query.Timeout

	events, err := store.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to connect event store: %w", err)
	}
	a.events = events
	log.Printf("Event store connected: %s:%d/%s", storeCfg.Host, storeCfg.Port, storeCfg.DBName)

	// The project registry shares the event store's pool.
	a.projects = project.NewPostgresStore(events.DB(), a.cfg.Query.Timeout)
	if err := a.projects.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure project schema: %w", err)
	}

	redisCfg := cache.DefaultRedisConfig()
	redisCfg.Addr = a.cfg.Cache.Addr
	redisCfg.Password = a.cfg.Cache.Password
	redisCfg.DB = a.cfg.Cache.DB
	a.redis = cache.NewRedis(redisCfg)
	log.Printf("Cache client initialized: %s", redisCfg.Addr)

	if a.cfg.Export.Enabled {
		var dest storage.ObjectStore
		switch a.cfg.Export.Type {
		case "local":
			dest, err = storage.NewLocal(a.cfg.Export.Path)
		case "s3":
			s3Cfg := storage.DefaultS3Config()
			if a.cfg.Export.S3.Region != "" {
				s3Cfg.Region = a.cfg.Export.S3.Region
			}
			s3Cfg.Endpoint = a.cfg.Export.S3.Endpoint
			s3Cfg.UsePathStyle = a.cfg.Export.S3.UsePathStyle
			dest, err = storage.NewS3(ctx, a.cfg.Export.S3.Bucket, s3Cfg)
		default:
			return fmt.Errorf("unsupported export type: %s", a.cfg.Export.Type)
		}
		if err != nil {
			return fmt.Errorf("failed to initialize export destination: %w", err)
		}
		a.exporter = engine.NewExporter(dest, a.cfg.Export.Compress)
		log.Printf("Export destination initialized: type=%s compress=%t",
			a.cfg.Export.Type, a.cfg.Export.Compress)
	}

	statsWindow := a.cfg.Query.StatsWindow
	if statsWindow <= 0 {
		statsWindow = time.Hour
	}
	a.stats = observability.NewQueryStats(statsWindow)

	a.shutdown = server.NewShutdownManager(0)
	a.shutdown.RegisterCloser(a.events)
	a.shutdown.RegisterCloser(server.CloserFunc(a.redis.Close))

	return nil
}

// startHTTPServer wires the engine and the routes and begins serving.
func (a *App) startHTTPServer() error {
	eng := engine.New(a.projects, a.events, a.redis, engine.Options{
		RowCap:      a.cfg.Query.RowCap,
		Exporter:    a.exporter,
		Stats:       a.stats,
		DebugErrors: a.cfg.Query.DebugErrors,
	})

	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.CorrelationIDMiddleware,
		httpapi.ContentTypeMiddleware,
		httpapi.LoggingMiddleware,
		httpapi.MetricsMiddleware,
	)

	mux := http.NewServeMux()
	httpapi.NewQueryAPI(eng).Register(mux, middleware)
	mux.Handle("GET /healthz", httpapi.NewHealthHandler(a.events, a.redis))
	mux.Handle("GET /statz", middleware(httpapi.NewStatsHandler(a.stats)))
	mux.Handle("GET /metrics", httpapi.MetricsHandler())

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	// The graceful wrapper registers the server with the shutdown
	// manager, so teardown closes it before the store and cache pools.
	gs := server.NewGracefulHTTPServer(a.httpServer, a.shutdown)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := gs.ListenAndServe(); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// startStatsPruner drops stale workload statistics periodically.
func (a *App) startStatsPruner(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.stats.Prune()
			}
		}
	}()
}

// Stop gracefully stops the server and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	if a.cancel != nil {
		a.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.shutdown != nil {
		if err := a.shutdown.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	log.Printf("Krater stopped")
	return nil
}

// cleanup releases all shared resources.
func (a *App) cleanup() {
	if a.events != nil {
		a.events.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
