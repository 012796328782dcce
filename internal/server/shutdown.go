// Package server owns process lifecycle: signal handling, in-flight
// query draining, and ordered teardown of the store, cache, and export
// clients.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const defaultDrainTimeout = 15 * time.Second

// ShutdownManager coordinates graceful shutdown. New queries are
// rejected once shutdown begins, running ones get drainTimeout to
// finish, then registered closers run newest-first so the HTTP
// listener goes down before the pools it serves from.
type ShutdownManager struct {
	drainTimeout time.Duration

	begun    chan struct{}
	once     sync.Once
	inFlight atomic.Int64
	stopping atomic.Bool

	mu      sync.Mutex
	closers []io.Closer
}

// NewShutdownManager creates a manager that drains in-flight queries
// for at most drainTimeout (zero means the default 15s).
func NewShutdownManager(drainTimeout time.Duration) *ShutdownManager {
	if drainTimeout == 0 {
		drainTimeout = defaultDrainTimeout
	}
	return &ShutdownManager{
		drainTimeout: drainTimeout,
		begun:        make(chan struct{}),
	}
}

// RegisterCloser adds a resource to tear down. Closers run in reverse
// registration order.
func (sm *ShutdownManager) RegisterCloser(closer io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, closer)
}

// ListenForSignals blocks until SIGTERM, SIGINT, or ctx cancellation,
// then runs Shutdown. It returns immediately if shutdown was already
// started elsewhere.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		return sm.Shutdown(ctx)
	case <-ctx.Done():
		return sm.Shutdown(ctx)
	case <-sm.begun:
		return nil
	}
}

// Shutdown drains in-flight queries and closes registered resources.
// Safe to call more than once; only the first call does the work. The
// caller bounds the whole teardown through ctx.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	sm.once.Do(func() {
		sm.stopping.Store(true)
		close(sm.begun)

		if err := sm.drain(ctx); err != nil {
			shutdownErr = fmt.Errorf("drain failed: %w", err)
		}

		sm.mu.Lock()
		closers := sm.closers
		sm.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("close failed: %w", err)
			}
		}
	})

	return shutdownErr
}

func (sm *ShutdownManager) drain(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, sm.drainTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sm.inFlight.Load() == 0 {
			return nil
		}

		select {
		case <-drainCtx.Done():
			if n := sm.inFlight.Load(); n > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight queries", n)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest registers an in-flight query. It reports false once
// shutdown has begun, in which case the query must be rejected and
// UntrackRequest must not be called.
func (sm *ShutdownManager) TrackRequest() bool {
	if sm.stopping.Load() {
		return false
	}
	sm.inFlight.Add(1)
	return true
}

// UntrackRequest marks a tracked query finished.
func (sm *ShutdownManager) UntrackRequest() {
	sm.inFlight.Add(-1)
}

// IsShuttingDown reports whether shutdown has begun.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return sm.stopping.Load()
}

// Begun is closed when shutdown starts.
func (sm *ShutdownManager) Begun() <-chan struct{} {
	return sm.begun
}

// GracefulHTTPServer ties an http.Server's lifetime to the manager:
// serving registers the listener for teardown, and a shutdown begun
// elsewhere unblocks ListenAndServe.
type GracefulHTTPServer struct {
	server   *http.Server
	shutdown *ShutdownManager
}

func NewGracefulHTTPServer(server *http.Server, shutdown *ShutdownManager) *GracefulHTTPServer {
	return &GracefulHTTPServer{server: server, shutdown: shutdown}
}

// ListenAndServe serves until the listener fails or shutdown begins.
func (gs *GracefulHTTPServer) ListenAndServe() error {
	gs.shutdown.RegisterCloser(&httpServerCloser{server: gs.server})

	errCh := make(chan error, 1)
	go func() {
		if err := gs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-gs.shutdown.Begun():
		// The manager owns the actual server.Shutdown call.
		return <-errCh
	}
}

type httpServerCloser struct {
	server *http.Server
}

func (c *httpServerCloser) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.server.Shutdown(ctx)
}

// ShutdownMiddleware tracks in-flight queries and answers 503 with
// Connection: close once shutdown has begun.
func ShutdownMiddleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.TrackRequest() {
				w.Header().Set("Connection", "close")
				http.Error(w, "Service Unavailable - Shutting Down", http.StatusServiceUnavailable)
				return
			}
			defer sm.UntrackRequest()

			next.ServeHTTP(w, r)
		})
	}
}

// CloserFunc adapts a plain function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
