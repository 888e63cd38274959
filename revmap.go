package svn2svn

import (
	"context"
	"fmt"
	"sort"

	"github.com/tonyduckles/svn2svn/svn"
)

// RevPair is one row of the revision mapping.
type RevPair struct {
	Source int64
	Target int64
}

// RevMap is the append-only ordered mapping from source revisions to the
// target revisions that replayed them. Both columns are strictly
// increasing and a source revision appears at most once.
//
// The map is derived state: it is always reconstructible from the target
// history's [trailerRev] annotations via [RebuildRevMap], so it never
// silently diverges from target truth.
type RevMap struct {
	pairs []RevPair
}

// NewRevMap creates an empty mapping.
func NewRevMap() *RevMap {
	return &RevMap{}
}

// Len returns the number of recorded pairs.
func (m *RevMap) Len() int { return len(m.pairs) }

// Pairs returns the recorded pairs in order.
func (m *RevMap) Pairs() []RevPair { return m.pairs }

// LastSource returns the highest mapped source revision, 0 when empty.
func (m *RevMap) LastSource() int64 {
	if len(m.pairs) == 0 {
		return 0
	}

	return m.pairs[len(m.pairs)-1].Source
}

// LastTarget returns the highest mapped target revision, 0 when empty.
func (m *RevMap) LastTarget() int64 {
	if len(m.pairs) == 0 {
		return 0
	}

	return m.pairs[len(m.pairs)-1].Target
}

// Record appends one pair, enforcing the monotonic invariant.
func (m *RevMap) Record(source, target int64) error {
	if len(m.pairs) > 0 {
		last := m.pairs[len(m.pairs)-1]
		if source <= last.Source || target <= last.Target {
			return fmt.Errorf("%w: (r%d -> r%d) after (r%d -> r%d)",
				ErrNonMonotonicMapping, source, target, last.Source, last.Target)
		}
	}

	m.pairs = append(m.pairs, RevPair{Source: source, Target: target})

	return nil
}

// Resolve returns the target revision that replayed exactly source.
func (m *RevMap) Resolve(source int64) (int64, error) {
	i := sort.Search(len(m.pairs), func(i int) bool { return m.pairs[i].Source >= source })
	if i < len(m.pairs) && m.pairs[i].Source == source {
		return m.pairs[i].Target, nil
	}

	return 0, fmt.Errorf("%w: r%d", ErrUnmappedRevision, source)
}

// ResolveAtOrBefore returns the target revision of the highest mapped
// source revision at or below source. A source revision with no in-scope
// changes produces no target commit, so the target content equivalent to
// source@N lives at the mapping of the nearest mapped revision <= N.
func (m *RevMap) ResolveAtOrBefore(source int64) (int64, error) {
	i := sort.Search(len(m.pairs), func(i int) bool { return m.pairs[i].Source > source })
	if i == 0 {
		return 0, fmt.Errorf("%w: no mapping at or before r%d", ErrUnmappedRevision, source)
	}

	return m.pairs[i-1].Target, nil
}

// RebuildRevMap reconstructs the full mapping by scanning target history
// for embedded source-revision trailers, a pure function from target
// history to map. Target commits without a trailer (e.g. the initial
// directory setup of the target) are skipped. An out-of-order trailer
// means the target history was not produced by a replay of this shape and
// is fatal.
func RebuildRevMap(ctx context.Context, target svn.Client, targetURL string, headRev int64) (*RevMap, error) {
	m := NewRevMap()

	entries, err := target.Log(ctx, targetURL, 1, headRev, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cannot read target history: %w", err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sourceRev, ok := ParseSourceRev(entry.Message)
		if !ok {
			continue
		}
		if err := m.Record(sourceRev, entry.Revision); err != nil {
			return nil, fmt.Errorf("target history is not a valid replay at r%d: %w", entry.Revision, err)
		}
	}

	logger.Debug("rebuilt revision map from target history", "pairs", m.Len(), "last-source", m.LastSource())

	return m, nil
}
