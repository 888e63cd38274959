package svn2svn

import (
	"context"
	"testing"

	"github.com/tonyduckles/svn2svn/svn"
)

func TestRevisionWalkerYieldsAscending(t *testing.T) {
	ctx := context.Background()
	source := seedSource(t)

	w := NewRevisionWalker(source, "mem://src/trunk", 1, source.Head())

	var revs []int64
	for {
		entry, err := w.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if entry == nil {
			break
		}
		if len(entry.Changes) == 0 {
			t.Errorf("r%d: no changed paths fetched", entry.Revision)
		}
		revs = append(revs, entry.Revision)
	}

	want := []int64{1, 2, 3, 4}
	if len(revs) != len(want) {
		t.Fatalf("revisions = %v, want %v", revs, want)
	}
	for i := range want {
		if revs[i] != want[i] {
			t.Fatalf("revisions = %v, want %v", revs, want)
		}
	}

	// exhausted walker stays exhausted
	entry, err := w.Next(ctx)
	if err != nil || entry != nil {
		t.Fatalf("Next after exhaustion = (%v, %v), want (nil, nil)", entry, err)
	}
}

func TestRevisionWalkerRange(t *testing.T) {
	ctx := context.Background()
	source := seedSource(t)

	w := NewRevisionWalker(source, "mem://src/trunk", 2, 3)

	first, err := w.Next(ctx)
	if err != nil || first == nil || first.Revision != 2 {
		t.Fatalf("first = (%v, %v), want r2", first, err)
	}
	second, err := w.Next(ctx)
	if err != nil || second == nil || second.Revision != 3 {
		t.Fatalf("second = (%v, %v), want r3", second, err)
	}
	end, err := w.Next(ctx)
	if err != nil || end != nil {
		t.Fatalf("end = (%v, %v), want (nil, nil)", end, err)
	}
}

func TestRevisionWalkerEmptyRange(t *testing.T) {
	ctx := context.Background()
	source := seedSource(t)

	w := NewRevisionWalker(source, "mem://src/trunk", 10, 4)
	entry, err := w.Next(ctx)
	if err != nil || entry != nil {
		t.Fatalf("Next = (%v, %v), want (nil, nil)", entry, err)
	}
}

func TestRevisionWalkerSkipsOutOfScope(t *testing.T) {
	ctx := context.Background()
	source := seedSource(t)

	// a revision touching only /branches does not reach the walker
	if _, err := source.CommitChanges("carol", "branch work",
		[]svn.PathChange{{Path: "/branches/x.txt", Action: svn.ActionAdd, Kind: svn.KindFile}},
		map[string][]byte{"/branches/x.txt": []byte("x")}); err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}

	w := NewRevisionWalker(source, "mem://src/trunk", 5, source.Head())
	entry, err := w.Next(ctx)
	if err != nil || entry != nil {
		t.Fatalf("Next = (%v, %v), want (nil, nil)", entry, err)
	}
}
