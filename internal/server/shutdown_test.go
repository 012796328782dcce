package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestShutdownClosesInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(0)

	var order []string
	sm.RegisterCloser(CloserFunc(func() error {
		order = append(order, "store")
		return nil
	}))
	sm.RegisterCloser(CloserFunc(func() error {
		order = append(order, "cache")
		return nil
	}))
	sm.RegisterCloser(CloserFunc(func() error {
		order = append(order, "http")
		return nil
	}))

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"http", "cache", "store"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	sm := NewShutdownManager(0)

	calls := 0
	sm.RegisterCloser(CloserFunc(func() error {
		calls++
		return nil
	}))

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("closer called %d times, want 1", calls)
	}
}

func TestTrackRequestDuringShutdown(t *testing.T) {
	sm := NewShutdownManager(0)

	if !sm.TrackRequest() {
		t.Fatal("request rejected before shutdown")
	}
	sm.UntrackRequest()

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sm.TrackRequest() {
		t.Error("request accepted during shutdown")
	}
	if !sm.IsShuttingDown() {
		t.Error("IsShuttingDown = false after Shutdown")
	}
}

func TestShutdownDrainsInFlight(t *testing.T) {
	sm := NewShutdownManager(time.Second)

	sm.TrackRequest()
	go func() {
		time.Sleep(200 * time.Millisecond)
		sm.UntrackRequest()
	}()

	start := time.Now()
	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Error("Shutdown returned before the in-flight request finished")
	}
	if sm.inFlight.Load() != 0 {
		t.Errorf("in-flight = %d after drain", sm.inFlight.Load())
	}
}

func TestShutdownDrainTimeout(t *testing.T) {
	sm := NewShutdownManager(100 * time.Millisecond)

	sm.TrackRequest() // never untracked
	if err := sm.Shutdown(context.Background()); err == nil {
		t.Error("Shutdown succeeded with a stuck in-flight request")
	}
}

func TestShutdownMiddleware(t *testing.T) {
	sm := NewShutdownManager(0)
	handler := ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status during shutdown = %d, want 503", rec.Code)
	}
}
