package svn2svn

import (
	"errors"
	"fmt"
)

var (
	ErrUnmappedRevision    = errors.New("source revision has no target mapping")
	ErrNonMonotonicMapping = errors.New("revision mapping is not strictly increasing")
	ErrTargetNotEmpty      = errors.New("target offset is not empty, use force to replay anyway")
	ErrNoReplayedHistory   = errors.New("no replayed history found in target")
	ErrNilClient           = errors.New("nil client")
	ErrNilCache            = errors.New("nil map cache")
	ErrEmptySourceURL      = errors.New("empty source url")
	ErrEmptyTargetURL      = errors.New("empty target url")
	ErrNoMatchingRevisions = errors.New("no matching revisions in source range")
)

// SourceReadError indicates source revision metadata or content could not
// be read. It is fatal for the run; the revision map stays at its last
// good state.
type SourceReadError struct {
	// Rev is the revision being fetched, 0 when a range fetch failed.
	Rev int64
	Err error
}

func (e *SourceReadError) Error() string {
	if e.Rev == 0 {
		return fmt.Sprintf("cannot read source history: %v", e.Err)
	}

	return fmt.Sprintf("cannot read source revision r%d: %v", e.Rev, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// ApplyConflictError indicates a staged operation was inconsistent with
// the working-copy state, e.g. an add where the path already exists. It
// aborts the current revision without a partial commit.
type ApplyConflictError struct {
	Rev    int64
	Path   string
	Action string
	Reason string
}

func (e *ApplyConflictError) Error() string {
	return fmt.Sprintf("r%d: cannot stage %s of %s: %s", e.Rev, e.Action, e.Path, e.Reason)
}

// CommitRejectedError indicates the target refused a staged revision:
// either the pre-commit hook could not be run at all, or the svn commit
// itself failed. A clean hook veto is not an error and does not take
// this shape. Fatal for the run.
type CommitRejectedError struct {
	Rev int64
	Err error
}

func (e *CommitRejectedError) Error() string {
	return fmt.Sprintf("r%d: target rejected commit: %v", e.Rev, e.Err)
}

func (e *CommitRejectedError) Unwrap() error { return e.Err }
