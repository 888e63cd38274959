package svn2svn

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/tonyduckles/svn2svn/svn"
)

// Ancestor is one hop of a path's lineage: path@rev was created by
// copying CopyFromPath@CopyFromRev.
type Ancestor struct {
	Path         string
	Rev          int64
	CopyFromPath string
	CopyFromRev  int64
}

// historyCache lazily fetches and caches the source repository's full
// changed-path history, which ancestor walking consults revision by
// revision. One fetch serves the whole run.
type historyCache struct {
	client  svn.Client
	rootURL string

	entries map[int64]*svn.LogEntry
	upTo    int64
}

func newHistoryCache(client svn.Client, rootURL string) *historyCache {
	return &historyCache{
		client:  client,
		rootURL: rootURL,
		entries: map[int64]*svn.LogEntry{},
	}
}

func (h *historyCache) entry(ctx context.Context, rev int64) (*svn.LogEntry, error) {
	if rev <= h.upTo {
		return h.entries[rev], nil
	}

	fetched, err := h.client.Log(ctx, h.rootURL, h.upTo+1, rev, 0, true)
	if err != nil {
		return nil, &SourceReadError{Rev: rev, Err: err}
	}
	for _, e := range fetched {
		h.entries[e.Revision] = e
	}
	h.upTo = rev

	return h.entries[rev], nil
}

// findAncestors walks the history of path@rev backwards, following
// copy-from links, and collects the copy hops. When stopBase is
// non-empty the walk succeeds only if the chain traces back to a path
// under stopBase; otherwise it returns nil. The eldest hop (the one
// whose copy-from landed under stopBase) is the last element.
func findAncestors(ctx context.Context, hist *historyCache, path string, rev int64, stopBase string) ([]Ancestor, error) {
	curPath, curRev := path, rev

	var ancestors []Ancestor
	for curRev > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		entry, err := hist.entry(ctx, curRev)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			curRev--
			continue
		}

		// changes on curPath or a parent of it, deepest first, so a
		// copied parent directory still yields the right rewrite
		var matched []svn.PathChange
		for _, c := range entry.Changes {
			if svn.IsChildPath(curPath, c.Path) {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			curRev--
			continue
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Path > matched[j].Path })

		step := false
		for _, c := range matched {
			switch c.Action {
			case svn.ActionDelete:
				// lineage ends here
				if stopBase != "" {
					return nil, nil
				}
				return ancestors, nil
			case svn.ActionAdd, svn.ActionReplace:
				if c.CopyFrom == nil {
					// created from scratch, lineage ends
					if stopBase != "" {
						return nil, nil
					}
					return ancestors, nil
				}
				rewritten := c.CopyFrom.Path + curPath[len(c.Path):]
				ancestors = append(ancestors, Ancestor{
					Path:         curPath,
					Rev:          entry.Revision,
					CopyFromPath: rewritten,
					CopyFromRev:  c.CopyFrom.Rev,
				})
				curPath = rewritten
				curRev = c.CopyFrom.Rev
				if stopBase != "" && svn.IsChildPath(curPath, stopBase) {
					return ancestors, nil
				}
				step = true
			case svn.ActionModify:
				// a modification says nothing about lineage
				continue
			}
			if step {
				break
			}
		}
		if !step {
			curRev--
		}
	}

	if stopBase != "" {
		return nil, nil
	}

	return ancestors, nil
}

// ResolvedCopy carries the true origin of an in-scope copy, translated
// into the target repository.
type ResolvedCopy struct {
	// SourceOffset is the origin path relative to the source base.
	SourceOffset string
	// SourceRev is the origin revision in the source repository.
	SourceRev int64
	// TargetRev is the target revision holding equivalent content.
	TargetRev int64
}

// ResolvedChange is one in-scope change with its copy origin resolved.
// Exactly one of three shapes holds: plain (Copy nil, Materialize
// false), a repository-level copy (Copy set), or a full-content add
// (Materialize true, used when the origin lies outside the offset or has
// no target mapping yet).
type ResolvedChange struct {
	svn.PathChange

	// PathOffset is Path relative to the source base.
	PathOffset string

	Copy        *ResolvedCopy
	Materialize bool
}

// RenameLink is the advisory record of a multi-commit rename: a delete
// of FromPath followed by an add of ToPath with matching origin or
// content in a later revision. It never changes what is applied.
type RenameLink struct {
	FromPath string
	FromRev  int64
	ToPath   string
	ToRev    int64
}

// AncestorResolver filters a revision's changes to the configured offset
// and resolves each copy-from reference to its true origin, chasing
// rename and copy chains that span multiple commits.
type AncestorResolver struct {
	source  svn.Client
	rootURL string
	offset  Offset
	revmap  *RevMap
	hist    *historyCache

	deleted []deletedFile
}

type deletedFile struct {
	path string
	rev  int64
	hash [sha256.Size]byte
	ok   bool
}

// NewAncestorResolver creates a resolver. rootURL is the source
// repository root; revmap is consulted live as replay records new pairs.
func NewAncestorResolver(source svn.Client, rootURL string, offset Offset, revmap *RevMap) *AncestorResolver {
	return &AncestorResolver{
		source:  source,
		rootURL: rootURL,
		offset:  offset,
		revmap:  revmap,
		hist:    newHistoryCache(source, rootURL),
	}
}

// Resolve filters entry's changes to the offset and resolves copy
// origins. The returned changes preserve source order. Rename links are
// advisory bookkeeping only.
func (r *AncestorResolver) Resolve(ctx context.Context, entry *svn.LogEntry) ([]ResolvedChange, []RenameLink, error) {
	var resolved []ResolvedChange
	var links []RenameLink

	for _, c := range entry.Changes {
		pathOffset, in := r.offset.InScope(c.Path)
		if !in {
			continue
		}
		if pathOffset == "" && c.Action == svn.ActionModify {
			// property-only change on the base directory itself; there is
			// no node inside the offset to stage it against
			continue
		}

		rc := ResolvedChange{PathChange: c, PathOffset: pathOffset}

		if (c.Action == svn.ActionAdd || c.Action == svn.ActionReplace) && c.CopyFrom != nil {
			if err := r.resolveCopy(ctx, entry.Revision, &rc); err != nil {
				return nil, nil, err
			}
		}

		if link := r.trackRename(ctx, entry, c); link != nil {
			links = append(links, *link)
		}

		resolved = append(resolved, rc)
	}

	return resolved, links, nil
}

func (r *AncestorResolver) resolveCopy(ctx context.Context, rev int64, rc *ResolvedChange) error {
	originPath := rc.CopyFrom.Path
	originRev := rc.CopyFrom.Rev

	if !svn.IsChildPath(originPath, r.offset.SourceBase) {
		// The copy source may still trace back into the offset through
		// one or more renames/copies on another branch.
		ancestors, err := findAncestors(ctx, r.hist, originPath, originRev, r.offset.SourceBase)
		if err != nil {
			return err
		}
		if len(ancestors) == 0 {
			logger.Warn("copy-from outside offset, degrading to content add",
				"rev", rev, "path", rc.Path, "copyfrom", rc.CopyFrom.String())
			rc.Materialize = true

			return nil
		}
		eldest := ancestors[len(ancestors)-1]
		originPath = eldest.CopyFromPath
		originRev = eldest.CopyFromRev
		logger.Debug("copy-from traced into offset",
			"rev", rev, "path", rc.Path, "copyfrom", rc.CopyFrom.String(),
			"origin", fmt.Sprintf("%s@%d", originPath, originRev))
	}

	sourceOffset, in := r.offset.InScope(originPath)
	if !in {
		rc.Materialize = true

		return nil
	}

	targetRev, err := r.revmap.ResolveAtOrBefore(originRev)
	if errors.Is(err, ErrUnmappedRevision) {
		// The origin predates replayed history; content is still
		// correct, ancestry just cannot be linked.
		logger.Warn("copy-from revision has no target mapping, degrading to content add",
			"rev", rev, "path", rc.Path, "origin-rev", originRev)
		rc.Materialize = true

		return nil
	}
	if err != nil {
		return err
	}

	rc.Copy = &ResolvedCopy{
		SourceOffset: sourceOffset,
		SourceRev:    originRev,
		TargetRev:    targetRev,
	}

	return nil
}

// trackRename maintains the advisory delete/add linkage used to
// recognize renames split across commits. Failures to hash content are
// swallowed - this is best-effort continuity tracking.
func (r *AncestorResolver) trackRename(ctx context.Context, entry *svn.LogEntry, c svn.PathChange) *RenameLink {
	switch c.Action {
	case svn.ActionDelete:
		d := deletedFile{path: c.Path, rev: entry.Revision}
		if c.Kind != svn.KindDir {
			if content, err := r.source.Cat(ctx, svn.JoinPath(r.rootURL, c.Path), entry.Revision-1); err == nil {
				d.hash = sha256.Sum256(content)
				d.ok = true
			}
		}
		r.deleted = append(r.deleted, d)

		return nil

	case svn.ActionAdd, svn.ActionReplace:
		if len(r.deleted) == 0 {
			return nil
		}

		// direct copy-from match beats content matching
		if c.CopyFrom != nil {
			for i, d := range r.deleted {
				if d.path == c.CopyFrom.Path && d.rev > c.CopyFrom.Rev {
					return r.takeLink(i, entry.Revision, c.Path)
				}
			}
		}

		if c.Kind == svn.KindDir {
			return nil
		}
		content, err := r.source.Cat(ctx, svn.JoinPath(r.rootURL, c.Path), entry.Revision)
		if err != nil {
			return nil
		}
		hash := sha256.Sum256(content)

		// nearest revision wins, then lexical path order
		best := -1
		for i, d := range r.deleted {
			if !d.ok || d.hash != hash {
				continue
			}
			if best < 0 ||
				d.rev > r.deleted[best].rev ||
				(d.rev == r.deleted[best].rev && d.path < r.deleted[best].path) {
				best = i
			}
		}
		if best < 0 {
			return nil
		}

		return r.takeLink(best, entry.Revision, c.Path)
	}

	return nil
}

func (r *AncestorResolver) takeLink(i int, toRev int64, toPath string) *RenameLink {
	d := r.deleted[i]
	r.deleted = append(r.deleted[:i], r.deleted[i+1:]...)

	link := &RenameLink{FromPath: d.path, FromRev: d.rev, ToPath: toPath, ToRev: toRev}
	logger.Info("linked multi-commit rename",
		"from", fmt.Sprintf("%s@%d", link.FromPath, link.FromRev),
		"to", fmt.Sprintf("%s@%d", link.ToPath, link.ToRev))

	return link
}
