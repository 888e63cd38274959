package svn2svn

import (
	"context"
	"fmt"
	"strings"

	"github.com/tonyduckles/svn2svn/svn"
)

// ChangeApplier translates a resolved change list into working-copy
// mutations, applied strictly in source order. It trusts the source's
// changed-path list: directory contents are only touched when they are
// explicitly listed, except for full-content directory adds, whose
// contents never appear in the list and are exported wholesale.
//
// Nothing here commits; the working copy is local state until
// [CommitEngine] runs.
type ChangeApplier struct {
	source svn.Client
	target svn.Client

	// sourceBaseURL addresses the source offset, targetURL the target
	// offset.
	sourceBaseURL string
	targetURL     string

	wc        *svn.WorkingCopy
	keepProps bool
}

// NewChangeApplier creates an applier staging into wc.
func NewChangeApplier(source, target svn.Client, sourceBaseURL, targetURL string, wc *svn.WorkingCopy, keepProps bool) *ChangeApplier {
	return &ChangeApplier{
		source:        source,
		target:        target,
		sourceBaseURL: strings.TrimRight(sourceBaseURL, "/"),
		targetURL:     strings.TrimRight(targetURL, "/"),
		wc:            wc,
		keepProps:     keepProps,
	}
}

// Apply stages every change of one source revision. A failure leaves the
// working copy dirty; the caller reverts it. Conflicts with current
// working-copy state surface as [ApplyConflictError] and abort the
// revision before any commit.
func (a *ChangeApplier) Apply(ctx context.Context, rev int64, changes []ResolvedChange) error {
	for _, c := range changes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Debug("stage", "rev", rev, "action", c.Action.String(), "path", c.PathOffset)

		var err error
		switch c.Action {
		case svn.ActionReplace:
			err = a.applyReplace(ctx, rev, c)
		case svn.ActionAdd:
			err = a.applyAdd(ctx, rev, c)
		case svn.ActionModify:
			err = a.applyModify(ctx, rev, c)
		case svn.ActionDelete:
			err = a.applyDelete(ctx, rev, c)
		default:
			err = fmt.Errorf("unsupported action %q", c.Action)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *ChangeApplier) applyReplace(ctx context.Context, rev int64, c ResolvedChange) error {
	// replace is delete followed by add, staged as two operations, never
	// coalesced
	tracked, err := a.target.Tracked(ctx, a.wc, c.PathOffset)
	if err != nil {
		return err
	}
	if tracked {
		if c.Kind == svn.KindDir {
			if err := a.target.Update(ctx, a.wc, c.PathOffset); err != nil {
				return err
			}
		}
		if err := a.target.Delete(ctx, a.wc, c.PathOffset); err != nil {
			return err
		}
	}

	return a.applyAdd(ctx, rev, c)
}

func (a *ChangeApplier) applyAdd(ctx context.Context, rev int64, c ResolvedChange) error {
	if c.Action == svn.ActionAdd {
		tracked, err := a.target.Tracked(ctx, a.wc, c.PathOffset)
		if err != nil {
			return err
		}
		if tracked {
			return &ApplyConflictError{Rev: rev, Path: c.PathOffset, Action: "add", Reason: "path already exists in working copy"}
		}
	}

	switch {
	case c.Copy != nil:
		if err := a.applyCopy(ctx, rev, c); err != nil {
			return err
		}
	case c.Kind == svn.KindDir:
		if err := a.materializeDir(ctx, rev, c); err != nil {
			return err
		}
	default:
		if err := a.materializeFile(ctx, rev, c.PathOffset); err != nil {
			return err
		}
		if err := a.target.Add(ctx, a.wc, c.PathOffset); err != nil {
			return err
		}
	}

	return a.syncProps(ctx, rev, c.PathOffset)
}

// applyCopy stages a repository-level copy in the target so ancestry is
// preserved, then overwrites with the final source content, since the
// copied node may have been modified in the same source revision.
func (a *ChangeApplier) applyCopy(ctx context.Context, rev int64, c ResolvedChange) error {
	copyURL := svn.JoinPath(a.targetURL, c.Copy.SourceOffset)

	if !a.copySourceExists(ctx, copyURL, c.Copy.TargetRev, c.Kind) {
		// the translated target revision lacks the path; fall back to
		// materializing content
		logger.Warn("copy source missing in target, degrading to content add",
			"rev", rev, "path", c.PathOffset, "copy-url", copyURL, "target-rev", c.Copy.TargetRev)
		if c.Kind == svn.KindDir {
			return a.materializeDir(ctx, rev, c)
		}
		if err := a.materializeFile(ctx, rev, c.PathOffset); err != nil {
			return err
		}

		return a.target.Add(ctx, a.wc, c.PathOffset)
	}

	if err := a.target.Copy(ctx, a.wc, copyURL, c.Copy.TargetRev, c.PathOffset); err != nil {
		return err
	}

	if c.Kind == svn.KindDir {
		return a.exportDir(ctx, rev, c.PathOffset)
	}

	return a.materializeFile(ctx, rev, c.PathOffset)
}

func (a *ChangeApplier) copySourceExists(ctx context.Context, url string, rev int64, kind svn.NodeKind) bool {
	if kind == svn.KindDir {
		_, err := a.target.List(ctx, url, rev, false)

		return err == nil
	}
	_, err := a.target.Cat(ctx, url, rev)

	return err == nil
}

func (a *ChangeApplier) applyModify(ctx context.Context, rev int64, c ResolvedChange) error {
	if c.Kind != svn.KindDir {
		if err := a.materializeFile(ctx, rev, c.PathOffset); err != nil {
			return err
		}
	}

	return a.syncProps(ctx, rev, c.PathOffset)
}

func (a *ChangeApplier) applyDelete(ctx context.Context, rev int64, c ResolvedChange) error {
	tracked, err := a.target.Tracked(ctx, a.wc, c.PathOffset)
	if err != nil {
		return err
	}
	if !tracked {
		return &ApplyConflictError{Rev: rev, Path: c.PathOffset, Action: "delete", Reason: "path is not in working copy"}
	}

	if c.Kind == svn.KindDir {
		// child contents may be at a higher revision than the directory
		// itself; the final commit would fail without the update
		if err := a.target.Update(ctx, a.wc, c.PathOffset); err != nil {
			return err
		}
	}

	return a.target.Delete(ctx, a.wc, c.PathOffset)
}

// materializeFile writes the file's content as of rev from the source.
func (a *ChangeApplier) materializeFile(ctx context.Context, rev int64, pathOffset string) error {
	content, err := a.source.Cat(ctx, svn.JoinPath(a.sourceBaseURL, pathOffset), rev)
	if err != nil {
		return &SourceReadError{Rev: rev, Err: err}
	}

	return a.target.WriteFile(ctx, a.wc, pathOffset, content)
}

// materializeDir stages a directory add. A plain add gets only the stub
// directory - its children are listed explicitly in the change set. A
// full-content add (degraded copy) exports the whole subtree, since its
// children never appear in the changed-path list.
func (a *ChangeApplier) materializeDir(ctx context.Context, rev int64, c ResolvedChange) error {
	if err := a.target.Mkdir(ctx, a.wc, c.PathOffset); err != nil {
		return err
	}
	if err := a.target.Add(ctx, a.wc, c.PathOffset); err != nil {
		return err
	}

	if !c.Materialize {
		return nil
	}

	return a.exportDir(ctx, rev, c.PathOffset)
}

// ImportAll stages the complete source subtree as of rev, used for the
// first replayed revision, whose changed-path list describes the
// creation of the subtree rather than a delta against it.
func (a *ChangeApplier) ImportAll(ctx context.Context, rev int64) error {
	return a.exportDir(ctx, rev, "")
}

// exportDir writes the final source state of every file under
// pathOffset into the working copy, adding unversioned ones. An empty
// pathOffset exports the whole source subtree.
func (a *ChangeApplier) exportDir(ctx context.Context, rev int64, pathOffset string) error {
	entries, err := a.source.List(ctx, svn.JoinPath(a.sourceBaseURL, pathOffset), rev, true)
	if err != nil {
		return &SourceReadError{Rev: rev, Err: err}
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		child := entry.Path
		if pathOffset != "" {
			child = pathOffset + "/" + entry.Path
		}
		if entry.Kind == svn.KindDir {
			if err := a.target.Mkdir(ctx, a.wc, child); err != nil {
				return err
			}
		} else if err := a.materializeFile(ctx, rev, child); err != nil {
			return err
		}

		tracked, err := a.target.Tracked(ctx, a.wc, child)
		if err != nil {
			return err
		}
		if !tracked {
			if err := a.target.Add(ctx, a.wc, child); err != nil {
				return err
			}
		}
		if err := a.syncProps(ctx, rev, child); err != nil {
			return err
		}
	}

	return nil
}

// syncProps carries the source's versioned properties onto the staged
// path, minus svn:mergeinfo, which never transfers meaningfully into the
// target repository.
func (a *ChangeApplier) syncProps(ctx context.Context, rev int64, pathOffset string) error {
	if !a.keepProps {
		return nil
	}

	props, err := a.source.PropGet(ctx, svn.JoinPath(a.sourceBaseURL, pathOffset), rev)
	if err != nil {
		return &SourceReadError{Rev: rev, Err: err}
	}
	delete(props, "svn:mergeinfo")

	return a.target.SetProps(ctx, a.wc, pathOffset, props)
}
