package svn2svn

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tonyduckles/svn2svn/svn"
)

// Config is a fully resolved replay configuration.
type Config struct {
	SourceURL string
	TargetURL string

	// StartRev and EndRev bound the source range; 0 means unbounded on
	// that side. Resume narrows the range further: already replayed
	// revisions are never revisited.
	StartRev int64
	EndRev   int64

	// KeepAuthor and KeepDate patch svn:author/svn:date revision
	// properties on each replayed commit. LogAuthor and LogDate embed the
	// same metadata as message trailers instead.
	KeepAuthor bool
	KeepDate   bool
	LogAuthor  bool
	LogDate    bool

	// KeepProps carries versioned properties (minus svn:mergeinfo) onto
	// replayed paths.
	KeepProps bool

	// ContinueFromBreak resumes from the target's replayed history
	// instead of requiring an empty target.
	ContinueFromBreak bool

	// Force skips the empty-target check on a fresh replay.
	Force bool

	// DryRun walks and resolves but applies and commits nothing.
	DryRun bool

	// Limit caps committed revisions for this run, 0 is unlimited.
	Limit int

	// Hook is consulted before every commit, may be nil.
	Hook Hook

	// WorkingCopyDir is where the target working copy lives; "" uses a
	// throwaway temporary directory.
	WorkingCopyDir string

	// Cache optionally persists the revision map between runs, may be
	// nil.
	Cache *MapCache
}

// Result summarizes one replay run.
type Result struct {
	// Commits is the number of target commits made.
	Commits int
	// Pending is the number of revisions a dry run would have committed.
	Pending int
	// Vetoed is the number of revisions dropped by the pre-commit hook.
	Vetoed int

	LastSourceRev int64
	LastTargetRev int64

	// Renames are the multi-commit renames recognized along the way,
	// advisory only.
	Renames []RenameLink

	// Map is the complete revision mapping after the run.
	Map *RevMap
}

// Replayer replays source subtree history onto a target repository,
// revision by revision, in original order.
type Replayer struct {
	source svn.Client
	target svn.Client
	cfg    Config
}

// NewReplayer creates a replayer. The clients may point at the same
// repository server as long as the offsets differ.
func NewReplayer(source, target svn.Client, cfg Config) (*Replayer, error) {
	if source == nil || target == nil {
		return nil, ErrNilClient
	}
	if cfg.SourceURL == "" {
		return nil, ErrEmptySourceURL
	}
	if cfg.TargetURL == "" {
		return nil, ErrEmptyTargetURL
	}

	return &Replayer{source: source, target: target, cfg: cfg}, nil
}

// Run executes the replay and returns its summary. Run is restartable:
// interrupt it at any point and a later run with ContinueFromBreak picks
// up after the last fully committed revision.
func (r *Replayer) Run(ctx context.Context) (*Result, error) {
	sourceInfo, err := r.source.Info(ctx, r.cfg.SourceURL)
	if err != nil {
		return nil, &SourceReadError{Err: err}
	}
	targetInfo, err := r.target.Info(ctx, r.cfg.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("cannot read target info: %w", err)
	}

	offset := Offset{SourceBase: sourceInfo.BasePath(), TargetBase: targetInfo.BasePath()}
	logger.Info("replay",
		"source", fmt.Sprintf("%s%s", sourceInfo.RepoRoot, offset.SourceBase),
		"target", fmt.Sprintf("%s%s", targetInfo.RepoRoot, offset.TargetBase),
		"source-head", sourceInfo.Revision)

	revmap, err := r.loadMap(ctx, targetInfo.Revision)
	if err != nil {
		return nil, err
	}

	if err := r.checkStartState(ctx, revmap, targetInfo.Revision); err != nil {
		return nil, err
	}

	start := r.cfg.StartRev
	if start < 1 {
		start = 1
	}
	if last := revmap.LastSource(); last >= start {
		start = last + 1
	}
	end := r.cfg.EndRev
	if end == 0 || end > sourceInfo.Revision {
		end = sourceInfo.Revision
	}

	walker := NewRevisionWalker(r.source, r.cfg.SourceURL, start, end)
	resolver := NewAncestorResolver(r.source, sourceInfo.RepoRoot, offset, revmap)

	result := &Result{
		LastSourceRev: revmap.LastSource(),
		LastTargetRev: revmap.LastTarget(),
		Map:           revmap,
	}

	if r.cfg.DryRun {
		if err := r.dryRun(ctx, walker, resolver, result); err != nil {
			return nil, err
		}

		return result, nil
	}

	wc, cleanup, err := r.openWorkingCopy(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	applier := NewChangeApplier(r.source, r.target,
		svn.JoinPath(sourceInfo.RepoRoot, offset.SourceBase), r.cfg.TargetURL,
		wc, r.cfg.KeepProps)
	committer := NewCommitEngine(r.target, r.cfg.TargetURL, wc, r.cfg.Hook,
		r.cfg.KeepAuthor, r.cfg.KeepDate, r.cfg.LogAuthor, r.cfg.LogDate)

	initial := revmap.Len() == 0
	for {
		entry, err := walker.Next(ctx)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}

		committed, err := r.replayOne(ctx, entry, resolver, applier, committer, revmap, result, initial)
		if err != nil {
			return nil, err
		}
		if committed {
			initial = false
		}

		if r.cfg.Limit > 0 && result.Commits >= r.cfg.Limit {
			logger.Info("commit limit reached", "limit", r.cfg.Limit)
			break
		}
	}

	if initial {
		// a fresh replay that found nothing in scope produced no history
		return nil, fmt.Errorf("%w: r%d:%d", ErrNoMatchingRevisions, start, end)
	}

	return result, nil
}

// replayOne stages and commits one source revision. It reports whether a
// target commit was made.
func (r *Replayer) replayOne(ctx context.Context, entry *svn.LogEntry, resolver *AncestorResolver, applier *ChangeApplier, committer *CommitEngine, revmap *RevMap, result *Result, initial bool) (bool, error) {
	changes, links, err := resolver.Resolve(ctx, entry)
	if err != nil {
		return false, err
	}
	if len(changes) == 0 {
		return false, nil
	}
	result.Renames = append(result.Renames, links...)

	logger.Info("replaying", "rev", entry.Revision, "changes", len(changes), "author", entry.Author)

	if initial {
		// first in-scope revision: the change list describes the creation
		// of the subtree, so import its full content instead
		err = applier.ImportAll(ctx, entry.Revision)
	} else {
		err = applier.Apply(ctx, entry.Revision, changes)
	}
	if err != nil {
		if revertErr := r.target.Revert(ctx, applier.wc); revertErr != nil {
			logger.Warn("cannot revert working copy after failed staging", "err", revertErr)
		}

		return false, err
	}

	targetRev, vetoed, err := committer.Commit(ctx, entry)
	if err != nil {
		return false, err
	}
	if vetoed {
		result.Vetoed++

		return false, nil
	}
	if targetRev == 0 {
		return false, nil
	}

	if err := revmap.Record(entry.Revision, targetRev); err != nil {
		return false, err
	}
	if r.cfg.Cache != nil {
		if err := r.cfg.Cache.Put(entry.Revision, targetRev); err != nil {
			logger.Warn("cannot update map cache", "err", err)
		}
	}

	result.Commits++
	result.LastSourceRev = entry.Revision
	result.LastTargetRev = targetRev

	return true, nil
}

// dryRun counts the revisions a real run would commit, without touching
// the target. Copy resolution runs for real so warnings about degraded
// copies surface ahead of time.
func (r *Replayer) dryRun(ctx context.Context, walker *RevisionWalker, resolver *AncestorResolver, result *Result) error {
	for {
		entry, err := walker.Next(ctx)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}

		changes, _, err := resolver.Resolve(ctx, entry)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			continue
		}

		logger.Info("pending", "rev", entry.Revision, "changes", len(changes), "author", entry.Author)
		result.Pending++

		if r.cfg.Limit > 0 && result.Pending >= r.cfg.Limit {
			return nil
		}
	}
}

// loadMap produces the authoritative revision map for this run. Target
// history is the source of truth; a cache that disagrees with it is
// rewritten, never trusted.
func (r *Replayer) loadMap(ctx context.Context, targetHead int64) (*RevMap, error) {
	revmap, err := RebuildRevMap(ctx, r.target, r.cfg.TargetURL, targetHead)
	if err != nil {
		return nil, err
	}

	if r.cfg.Cache == nil {
		return revmap, nil
	}

	cached, err := r.cfg.Cache.Load()
	if err != nil {
		return nil, err
	}
	if !samePairs(cached, revmap) {
		logger.Warn("map cache disagrees with target history, resetting",
			"cached", cached.Len(), "rebuilt", revmap.Len())
		if err := r.cfg.Cache.Reset(revmap); err != nil {
			return nil, err
		}
	}

	return revmap, nil
}

func samePairs(a, b *RevMap) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i, pair := range a.Pairs() {
		if b.Pairs()[i] != pair {
			return false
		}
	}

	return true
}

// checkStartState enforces the start-mode contract: a fresh replay wants
// an empty target offset, a resumed replay wants replayed history to
// resume from.
func (r *Replayer) checkStartState(ctx context.Context, revmap *RevMap, targetHead int64) error {
	if r.cfg.ContinueFromBreak {
		if revmap.Len() == 0 {
			return fmt.Errorf("%w: %s", ErrNoReplayedHistory, r.cfg.TargetURL)
		}

		return nil
	}

	if revmap.Len() > 0 {
		return fmt.Errorf("%w: %s already holds replayed history up to r%d",
			ErrTargetNotEmpty, r.cfg.TargetURL, revmap.LastSource())
	}
	if r.cfg.Force {
		return nil
	}

	entries, err := r.target.List(ctx, r.cfg.TargetURL, targetHead, false)
	if err != nil {
		return fmt.Errorf("cannot list target: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrTargetNotEmpty, r.cfg.TargetURL)
	}

	return nil
}

// openWorkingCopy checks out (or refreshes) the target working copy and
// scrubs any leftover local state from an interrupted run.
func (r *Replayer) openWorkingCopy(ctx context.Context) (*svn.WorkingCopy, func(), error) {
	dir := r.cfg.WorkingCopyDir
	cleanup := func() {}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "svn2svn-wc-")
		if err != nil {
			return nil, nil, err
		}
		dir = tmp
		cleanup = func() { os.RemoveAll(tmp) }
	}

	wc, err := r.target.Checkout(ctx, r.cfg.TargetURL, dir)
	if err != nil {
		cleanup()

		return nil, nil, fmt.Errorf("cannot check out target working copy: %w", err)
	}

	if err := r.target.Revert(ctx, wc); err != nil {
		cleanup()

		return nil, nil, fmt.Errorf("cannot clean target working copy: %w", err)
	}

	return wc, cleanup, nil
}

// ReplayAndVerify runs the replay and then verifies the final trees
// match, content only.
func (r *Replayer) ReplayAndVerify(ctx context.Context) (*Result, *VerificationResult, error) {
	result, err := r.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	if result.LastSourceRev == 0 {
		return result, nil, errors.New("nothing replayed, nothing to verify")
	}

	sourceBase, err := r.sourceBaseURL(ctx)
	if err != nil {
		return result, nil, err
	}

	verification, err := Verify(ctx, r.source, r.target,
		sourceBase, result.LastSourceRev, r.cfg.TargetURL, result.LastTargetRev)
	if err != nil {
		return result, nil, err
	}

	return result, verification, nil
}

func (r *Replayer) sourceBaseURL(ctx context.Context) (string, error) {
	info, err := r.source.Info(ctx, r.cfg.SourceURL)
	if err != nil {
		return "", &SourceReadError{Err: err}
	}

	return svn.JoinPath(info.RepoRoot, info.BasePath()), nil
}
