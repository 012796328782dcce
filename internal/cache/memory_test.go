package cache

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, found, err := m.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found=%v err=%v", found, err)
	}

	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	v, found, err := m.Get(ctx, "k")
	if err != nil || !found || v != "v" {
		t.Fatalf("Get(k) = %q found=%v err=%v", v, found, err)
	}

	if err := m.Set(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, _, _ = m.Get(ctx, "k")
	if v != "v2" {
		t.Errorf("Get after overwrite = %q", v)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, "shared", "v")
				_, _, _ = m.Get(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}
