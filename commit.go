package svn2svn

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonyduckles/svn2svn/svn"
)

// CommitEngine turns one staged working copy into one target commit. It
// owns the two-step metadata dance: the commit itself carries the
// trailer-annotated message, then svn:author and svn:date revision
// properties are patched afterwards, since they cannot be set atomically
// with the commit.
type CommitEngine struct {
	target    svn.Client
	targetURL string
	wc        *svn.WorkingCopy

	hook Hook

	// keepAuthor and keepDate patch revision properties after commit,
	// which needs the target's pre-revprop-change hook enabled.
	keepAuthor bool
	keepDate   bool

	// logAuthor and logDate embed the original metadata in the commit
	// message instead, which needs no server cooperation.
	logAuthor bool
	logDate   bool
}

// NewCommitEngine creates a commit engine for wc. hook may be nil.
func NewCommitEngine(target svn.Client, targetURL string, wc *svn.WorkingCopy, hook Hook, keepAuthor, keepDate, logAuthor, logDate bool) *CommitEngine {
	return &CommitEngine{
		target:     target,
		targetURL:  targetURL,
		wc:         wc,
		hook:       hook,
		keepAuthor: keepAuthor,
		keepDate:   keepDate,
		logAuthor:  logAuthor,
		logDate:    logDate,
	}
}

// Commit runs the hook, commits the staged working copy, and patches
// revision properties. It returns the new target revision, 0 when the
// hook vetoed (vetoed true) or nothing was staged. A veto reverts the
// working copy and is not an error; a revision-property patch failure is
// downgraded to a warning since content and mapping are already durable.
func (e *CommitEngine) Commit(ctx context.Context, entry *svn.LogEntry) (targetRev int64, vetoed bool, err error) {
	message := FormatMessage(entry.Message, entry.Revision, entry.Author, entry.Date, e.logAuthor, e.logDate)

	if e.hook != nil {
		err := e.hook.Check(ctx, e.wc.Dir, entry.Revision, message)
		if errors.Is(err, ErrHookVeto) {
			if err := e.target.Revert(ctx, e.wc); err != nil {
				return 0, true, fmt.Errorf("cannot revert vetoed working copy: %w", err)
			}

			return 0, true, nil
		}
		if err != nil {
			return 0, false, &CommitRejectedError{Rev: entry.Revision, Err: err}
		}
	}

	targetRev, err = e.target.Commit(ctx, e.wc, message)
	if err != nil {
		return 0, false, &CommitRejectedError{Rev: entry.Revision, Err: err}
	}
	if targetRev == 0 {
		// every staged change was a no-op against the working copy
		logger.Info("nothing to commit", "rev", entry.Revision)

		return 0, false, nil
	}

	e.patchRevProps(ctx, entry, targetRev)

	logger.Info("committed", "source-rev", entry.Revision, "target-rev", targetRev)

	return targetRev, false, nil
}

func (e *CommitEngine) patchRevProps(ctx context.Context, entry *svn.LogEntry, targetRev int64) {
	if e.keepAuthor && entry.Author != "" {
		if err := e.target.SetRevProp(ctx, e.targetURL, targetRev, "svn:author", entry.Author); err != nil {
			logger.Warn("cannot set svn:author, is the target's pre-revprop-change hook enabled?",
				"target-rev", targetRev, "err", err)
		}
	}
	if e.keepDate && !entry.Date.IsZero() {
		if err := e.target.SetRevProp(ctx, e.targetURL, targetRev, "svn:date", svn.FormatTime(entry.Date)); err != nil {
			logger.Warn("cannot set svn:date, is the target's pre-revprop-change hook enabled?",
				"target-rev", targetRev, "err", err)
		}
	}
}
