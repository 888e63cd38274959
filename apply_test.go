package svn2svn

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tonyduckles/svn2svn/svn"
)

// applyFixture returns a source with history, a target whose /proj
// offset already holds a.txt, and an applier staging into a fresh
// working copy.
func applyFixture(t *testing.T) (*svn.MemRepo, *svn.MemRepo, *ChangeApplier) {
	t.Helper()
	ctx := context.Background()

	source := seedSource(t)
	target := seedTarget(t)
	if _, err := target.CommitChanges("replay", "seed a",
		[]svn.PathChange{{Path: "/proj/a.txt", Action: svn.ActionAdd, Kind: svn.KindFile}},
		map[string][]byte{"/proj/a.txt": []byte("alpha v1\n")}); err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}

	wc, err := target.Checkout(ctx, "mem://dst/proj", "/tmp/wc")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	applier := NewChangeApplier(source, target, "mem://src/trunk", "mem://dst/proj", wc, false)

	return source, target, applier
}

func TestApplyModify(t *testing.T) {
	ctx := context.Background()
	_, target, applier := applyFixture(t)

	changes := []ResolvedChange{{
		PathChange: svn.PathChange{Path: "/trunk/a.txt", Action: svn.ActionModify, Kind: svn.KindFile},
		PathOffset: "a.txt",
	}}
	if err := applier.Apply(ctx, 2, changes); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rev, err := target.Commit(ctx, applier.wc, "replay r2")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	content, err := target.Cat(ctx, "mem://dst/proj/a.txt", rev)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if string(content) != "alpha v2\n" {
		t.Errorf("content = %q, want alpha v2", content)
	}
}

func TestApplyReplaceIsDeleteThenAdd(t *testing.T) {
	ctx := context.Background()
	_, target, applier := applyFixture(t)

	changes := []ResolvedChange{{
		PathChange: svn.PathChange{Path: "/trunk/a.txt", Action: svn.ActionReplace, Kind: svn.KindFile},
		PathOffset: "a.txt",
	}}
	if err := applier.Apply(ctx, 2, changes); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rev, err := target.Commit(ctx, applier.wc, "replay replace")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, err := target.Log(ctx, "mem://dst/proj", rev, rev, 0, true)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Log = (%v, %v)", entries, err)
	}
	if len(entries[0].Changes) != 1 || entries[0].Changes[0].Action != svn.ActionReplace {
		t.Errorf("changes = %+v, want a single replace", entries[0].Changes)
	}
}

func TestApplyCopyPreservesAncestry(t *testing.T) {
	ctx := context.Background()
	_, target, applier := applyFixture(t)

	changes := []ResolvedChange{{
		PathChange: svn.PathChange{
			Path: "/trunk/c.txt", Action: svn.ActionAdd, Kind: svn.KindFile,
			CopyFrom: &svn.CopyFrom{Path: "/trunk/a.txt", Rev: 2},
		},
		PathOffset: "c.txt",
		Copy:       &ResolvedCopy{SourceOffset: "a.txt", SourceRev: 2, TargetRev: 2},
	}}
	if err := applier.Apply(ctx, 3, changes); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rev, err := target.Commit(ctx, applier.wc, "replay copy")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, err := target.Log(ctx, "mem://dst/proj", rev, rev, 0, true)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Log = (%v, %v)", entries, err)
	}
	want := []svn.PathChange{{
		Path:     "/proj/c.txt",
		Action:   svn.ActionAdd,
		Kind:     svn.KindFile,
		CopyFrom: &svn.CopyFrom{Path: "/proj/a.txt", Rev: 2},
	}}
	if diff := cmp.Diff(want, entries[0].Changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}

	// content is the source's final state, not the copy source's
	content, _ := target.Cat(ctx, "mem://dst/proj/c.txt", rev)
	if string(content) != "alpha v2\n" {
		t.Errorf("content = %q, want alpha v2", content)
	}
}

func TestApplyCopyDegradesWhenTargetLacksOrigin(t *testing.T) {
	ctx := context.Background()
	_, target, applier := applyFixture(t)

	changes := []ResolvedChange{{
		PathChange: svn.PathChange{
			Path: "/trunk/c.txt", Action: svn.ActionAdd, Kind: svn.KindFile,
			CopyFrom: &svn.CopyFrom{Path: "/trunk/a.txt", Rev: 2},
		},
		PathOffset: "c.txt",
		// points at a target revision where a.txt did not exist yet
		Copy: &ResolvedCopy{SourceOffset: "missing.txt", SourceRev: 2, TargetRev: 1},
	}}
	if err := applier.Apply(ctx, 3, changes); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rev, err := target.Commit(ctx, applier.wc, "replay degraded copy")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, _ := target.Log(ctx, "mem://dst/proj", rev, rev, 0, true)
	if entries[0].Changes[0].CopyFrom != nil {
		t.Error("degraded copy should carry no copy-from")
	}
	content, _ := target.Cat(ctx, "mem://dst/proj/c.txt", rev)
	if string(content) != "alpha v2\n" {
		t.Errorf("content = %q, want alpha v2", content)
	}
}

func TestApplyMaterializeDirExportsContent(t *testing.T) {
	ctx := context.Background()
	_, target, applier := applyFixture(t)

	changes := []ResolvedChange{{
		PathChange:  svn.PathChange{Path: "/trunk/sub", Action: svn.ActionAdd, Kind: svn.KindDir},
		PathOffset:  "sub",
		Materialize: true,
	}}
	if err := applier.Apply(ctx, 1, changes); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rev, err := target.Commit(ctx, applier.wc, "replay dir")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	content, err := target.Cat(ctx, "mem://dst/proj/sub/b.txt", rev)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if string(content) != "beta v1\n" {
		t.Errorf("content = %q, want beta v1", content)
	}
}

func TestApplyConflicts(t *testing.T) {
	ctx := context.Background()
	_, _, applier := applyFixture(t)

	var conflict *ApplyConflictError

	// add over an existing tracked path
	err := applier.Apply(ctx, 5, []ResolvedChange{{
		PathChange: svn.PathChange{Path: "/trunk/a.txt", Action: svn.ActionAdd, Kind: svn.KindFile},
		PathOffset: "a.txt",
	}})
	if !errors.As(err, &conflict) {
		t.Fatalf("add conflict: err = %v, want ApplyConflictError", err)
	}

	// delete of a path the working copy does not track
	err = applier.Apply(ctx, 5, []ResolvedChange{{
		PathChange: svn.PathChange{Path: "/trunk/ghost.txt", Action: svn.ActionDelete, Kind: svn.KindFile},
		PathOffset: "ghost.txt",
	}})
	if !errors.As(err, &conflict) {
		t.Fatalf("delete conflict: err = %v, want ApplyConflictError", err)
	}
}

func TestApplyKeepProps(t *testing.T) {
	ctx := context.Background()

	source := svn.NewMemRepo("mem://src")
	if _, err := source.CommitChanges("alice", "init",
		[]svn.PathChange{{Path: "/trunk/run.sh", Action: svn.ActionAdd, Kind: svn.KindFile}},
		map[string][]byte{"/trunk/run.sh": []byte("#!/bin/sh\n")}); err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}

	target := seedTarget(t)
	wc, err := target.Checkout(ctx, "mem://dst/proj", "/tmp/wc")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	applier := NewChangeApplier(source, target, "mem://src/trunk", "mem://dst/proj", wc, true)
	err = applier.Apply(ctx, 1, []ResolvedChange{{
		PathChange: svn.PathChange{Path: "/trunk/run.sh", Action: svn.ActionAdd, Kind: svn.KindFile},
		PathOffset: "run.sh",
	}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, err := target.Commit(ctx, wc, "replay r1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}
