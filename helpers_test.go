package svn2svn

import (
	"testing"
	"time"

	"github.com/tonyduckles/svn2svn/svn"
)

func nowTime() time.Time {
	return time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
}

// seedSource builds a small source history under /trunk:
//
//	r1  add /trunk, /trunk/a.txt, /trunk/sub/b.txt
//	r2  modify /trunk/a.txt
//	r3  copy /trunk/a.txt -> /trunk/c.txt (from r2)
//	r4  delete /trunk/sub/b.txt
func seedSource(t *testing.T) *svn.MemRepo {
	t.Helper()

	m := svn.NewMemRepo("mem://src")

	commit := func(author, message string, changes []svn.PathChange, contents map[string][]byte) {
		t.Helper()
		if _, err := m.CommitChanges(author, message, changes, contents); err != nil {
			t.Fatalf("CommitChanges: %v", err)
		}
	}

	commit("alice", "initial import",
		[]svn.PathChange{
			{Path: "/trunk", Action: svn.ActionAdd, Kind: svn.KindDir},
			{Path: "/trunk/a.txt", Action: svn.ActionAdd, Kind: svn.KindFile},
			{Path: "/trunk/sub", Action: svn.ActionAdd, Kind: svn.KindDir},
			{Path: "/trunk/sub/b.txt", Action: svn.ActionAdd, Kind: svn.KindFile},
		},
		map[string][]byte{
			"/trunk/a.txt":     []byte("alpha v1\n"),
			"/trunk/sub/b.txt": []byte("beta v1\n"),
		})
	commit("bob", "tweak alpha",
		[]svn.PathChange{{Path: "/trunk/a.txt", Action: svn.ActionModify, Kind: svn.KindFile}},
		map[string][]byte{"/trunk/a.txt": []byte("alpha v2\n")})
	commit("alice", "copy alpha",
		[]svn.PathChange{{
			Path:     "/trunk/c.txt",
			Action:   svn.ActionAdd,
			Kind:     svn.KindFile,
			CopyFrom: &svn.CopyFrom{Path: "/trunk/a.txt", Rev: 2},
		}},
		nil)
	commit("bob", "drop beta",
		[]svn.PathChange{{Path: "/trunk/sub/b.txt", Action: svn.ActionDelete, Kind: svn.KindFile}},
		nil)

	return m
}

// seedTarget builds an empty target offset /proj ready to replay into.
func seedTarget(t *testing.T) *svn.MemRepo {
	t.Helper()

	m := svn.NewMemRepo("mem://dst")
	if _, err := m.CommitChanges("setup", "create project dir",
		[]svn.PathChange{{Path: "/proj", Action: svn.ActionAdd, Kind: svn.KindDir}}, nil); err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}

	return m
}
