package svn

import (
	"fmt"
	"time"
)

// Action is the changed-path action letter as reported by svn log.
type Action byte

const (
	ActionAdd     Action = 'A'
	ActionModify  Action = 'M'
	ActionDelete  Action = 'D'
	ActionReplace Action = 'R'
)

// Valid reports whether the action is one of the four supported letters.
func (a Action) Valid() bool {
	switch a {
	case ActionAdd, ActionModify, ActionDelete, ActionReplace:
		return true
	default:
		return false
	}
}

func (a Action) String() string {
	return string(rune(a))
}

// NodeKind is the kind of a node in the repository tree.
type NodeKind uint8

const (
	KindNone NodeKind = iota
	KindFile
	KindDir
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "none"
	}
}

// ParseNodeKind maps the kind strings used by svn's xml output.
// Commits made on pre-1.6 repositories can carry an empty kind,
// which maps to [KindNone].
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "dir":
		return KindDir, nil
	case "", "none":
		return KindNone, nil
	default:
		return KindNone, fmt.Errorf("unknown node kind: %q", s)
	}
}

// CopyFrom records the origin of a path that was created by copy.
type CopyFrom struct {
	// Path is repository-absolute, with a leading slash.
	Path string
	// Rev is the revision the copy was made from.
	Rev int64
}

func (c *CopyFrom) String() string {
	return fmt.Sprintf("%s@%d", c.Path, c.Rev)
}

// PathChange is one changed path within a revision.
type PathChange struct {
	// Path is repository-absolute, with a leading slash.
	Path   string
	Action Action
	Kind   NodeKind
	// CopyFrom is nil unless the node was created by copy.
	CopyFrom *CopyFrom
}

// LogEntry is one revision of history. Changes preserves the order svn
// reported them in - a path can be deleted and re-added within the same
// revision, and that order is significant.
type LogEntry struct {
	Revision int64
	Author   string
	Date     time.Time
	Message  string
	Changes  []PathChange
}

// DirEntry is one entry from a recursive or flat listing.
// Path is relative to the listed root, without a leading slash.
type DirEntry struct {
	Path string
	Kind NodeKind
}

// Info describes a repository location.
type Info struct {
	// URL as passed in, without trailing slash.
	URL string
	// RepoRoot is the URL of the repository root.
	RepoRoot string
	// UUID of the repository.
	UUID string
	// Revision is the HEAD revision at the time of the call.
	Revision int64
}

// BasePath returns the path of URL inside the repository,
// repository-absolute ("" when URL is the root itself).
func (i *Info) BasePath() string {
	if len(i.URL) <= len(i.RepoRoot) {
		return ""
	}

	return i.URL[len(i.RepoRoot):]
}
