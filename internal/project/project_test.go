package project

import (
	"context"
	"errors"
	"regexp"
	"testing"
)

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

func TestNewIDIsTableNameSafe(t *testing.T) {
	// Project ids become table name prefixes, so they must stay within
	// the lowercase alphanumeric allow-list.
	for i := 0; i < 100; i++ {
		id := NewID()
		if !identPattern.MatchString(id) {
			t.Fatalf("NewID() = %q, not allow-list safe", id)
		}
		if len(id) != 14 {
			t.Fatalf("NewID() = %q, want 14 characters", id)
		}
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	s.Put(&Project{ProjectID: "p1", ReadKey: "rk", MasterKey: "mk"})

	p, err := s.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.ReadKey != "rk" || p.MasterKey != "mk" {
		t.Errorf("project = %+v", p)
	}

	// The returned value is a copy; mutating it must not touch the store.
	p.ReadKey = "changed"
	again, _ := s.Get(context.Background(), "p1")
	if again.ReadKey != "rk" {
		t.Error("Get returned a shared reference")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nosuch")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
