package svn2svn

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tonyduckles/svn2svn/svn"
)

func TestRevMapRecordMonotonic(t *testing.T) {
	m := NewRevMap()

	if err := m.Record(3, 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.Record(7, 2); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := m.Record(7, 3); !errors.Is(err, ErrNonMonotonicMapping) {
		t.Errorf("duplicate source: err = %v, want ErrNonMonotonicMapping", err)
	}
	if err := m.Record(8, 2); !errors.Is(err, ErrNonMonotonicMapping) {
		t.Errorf("stale target: err = %v, want ErrNonMonotonicMapping", err)
	}

	if m.LastSource() != 7 || m.LastTarget() != 2 {
		t.Errorf("last = (r%d, r%d), want (r7, r2)", m.LastSource(), m.LastTarget())
	}
}

func TestRevMapResolve(t *testing.T) {
	m := NewRevMap()
	for _, p := range []RevPair{{3, 1}, {7, 2}, {10, 3}} {
		if err := m.Record(p.Source, p.Target); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := m.Resolve(7)
	if err != nil || got != 2 {
		t.Errorf("Resolve(7) = (%d, %v), want (2, nil)", got, err)
	}
	if _, err := m.Resolve(5); !errors.Is(err, ErrUnmappedRevision) {
		t.Errorf("Resolve(5): err = %v, want ErrUnmappedRevision", err)
	}
}

func TestRevMapResolveAtOrBefore(t *testing.T) {
	m := NewRevMap()
	for _, p := range []RevPair{{3, 1}, {7, 2}, {10, 3}} {
		if err := m.Record(p.Source, p.Target); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	cases := []struct {
		source int64
		want   int64
	}{
		{3, 1},
		{5, 1}, // between mappings resolves downward
		{7, 2},
		{100, 3},
	}
	for _, c := range cases {
		got, err := m.ResolveAtOrBefore(c.source)
		if err != nil || got != c.want {
			t.Errorf("ResolveAtOrBefore(%d) = (%d, %v), want (%d, nil)", c.source, got, err, c.want)
		}
	}

	if _, err := m.ResolveAtOrBefore(2); !errors.Is(err, ErrUnmappedRevision) {
		t.Errorf("ResolveAtOrBefore(2): err = %v, want ErrUnmappedRevision", err)
	}
}

func TestRebuildRevMap(t *testing.T) {
	ctx := context.Background()
	target := svn.NewMemRepo("mem://dst")

	commit := func(message string) {
		t.Helper()
		changes := []svn.PathChange{{Path: "/proj/f.txt", Action: svn.ActionModify, Kind: svn.KindFile}}
		if target.Head() == 0 {
			changes = []svn.PathChange{{Path: "/proj/f.txt", Action: svn.ActionAdd, Kind: svn.KindFile}}
		}
		if _, err := target.CommitChanges("replay", message, changes, map[string][]byte{"/proj/f.txt": []byte(message)}); err != nil {
			t.Fatalf("CommitChanges: %v", err)
		}
	}

	commit("initial setup, no trailer")
	commit(FormatMessage("first", 4, "", nowTime(), false, false))
	commit(FormatMessage("second", 9, "", nowTime(), false, false))

	m, err := RebuildRevMap(ctx, target, "mem://dst/proj", target.Head())
	if err != nil {
		t.Fatalf("RebuildRevMap: %v", err)
	}

	want := []RevPair{{Source: 4, Target: 2}, {Source: 9, Target: 3}}
	if diff := cmp.Diff(want, m.Pairs()); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestRebuildRevMapOutOfOrderIsFatal(t *testing.T) {
	ctx := context.Background()
	target := svn.NewMemRepo("mem://dst")

	add := func(path, message string) {
		t.Helper()
		if _, err := target.CommitChanges("replay", message,
			[]svn.PathChange{{Path: path, Action: svn.ActionAdd, Kind: svn.KindFile}},
			map[string][]byte{path: []byte("x")}); err != nil {
			t.Fatalf("CommitChanges: %v", err)
		}
	}

	add("/proj/a.txt", FormatMessage("later", 9, "", nowTime(), false, false))
	add("/proj/b.txt", FormatMessage("earlier", 4, "", nowTime(), false, false))

	_, err := RebuildRevMap(ctx, target, "mem://dst/proj", target.Head())
	if !errors.Is(err, ErrNonMonotonicMapping) {
		t.Fatalf("err = %v, want ErrNonMonotonicMapping", err)
	}
}
