package svn2svn

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.db")

	c, err := OpenMapCache(path)
	if err != nil {
		t.Fatalf("OpenMapCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	for _, p := range []RevPair{{3, 1}, {7, 2}, {10, 3}} {
		if err := c.Put(p.Source, p.Target); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	m, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []RevPair{{Source: 3, Target: 1}, {Source: 7, Target: 2}, {Source: 10, Target: 3}}
	if diff := cmp.Diff(want, m.Pairs()); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestMapCacheLoadEmpty(t *testing.T) {
	c, err := OpenMapCache("")
	if err != nil {
		t.Fatalf("OpenMapCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	m, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestMapCacheReset(t *testing.T) {
	c, err := OpenMapCache("")
	if err != nil {
		t.Fatalf("OpenMapCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.Put(5, 9); err != nil {
		t.Fatalf("Put: %v", err)
	}

	authoritative := NewRevMap()
	if err := authoritative.Record(3, 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := c.Reset(authoritative); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	m, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(authoritative.Pairs(), m.Pairs()); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestMapCacheNil(t *testing.T) {
	var c *MapCache
	if err := c.Put(1, 1); err == nil {
		t.Error("Put on nil cache should fail")
	}
	if _, err := c.Load(); err == nil {
		t.Error("Load on nil cache should fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil cache: %v", err)
	}
}
