package svn2svn

import (
	"context"

	"github.com/tonyduckles/svn2svn/svn"
)

// walkBatchSize is how many log entries are fetched per client call.
const walkBatchSize = 100

// RevisionWalker yields source revisions touching the source offset in
// ascending order, lazily and exactly once. A fetch failure surfaces as
// [SourceReadError] and is fatal for the run.
type RevisionWalker struct {
	client svn.Client
	url    string

	next int64
	end  int64

	batch []*svn.LogEntry
	done  bool
}

// NewRevisionWalker creates a walker over [start, end]. The caller is
// expected to pass max(configured start, last mapped source revision + 1)
// as start.
func NewRevisionWalker(client svn.Client, url string, start, end int64) *RevisionWalker {
	if start < 1 {
		start = 1
	}

	return &RevisionWalker{
		client: client,
		url:    url,
		next:   start,
		end:    end,
		done:   start > end,
	}
}

// Next returns the next revision, or nil when the history is exhausted.
func (w *RevisionWalker) Next(ctx context.Context) (*svn.LogEntry, error) {
	for len(w.batch) == 0 && !w.done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		entries, err := w.client.Log(ctx, w.url, w.next, w.end, walkBatchSize, true)
		if err != nil {
			return nil, &SourceReadError{Rev: w.next, Err: err}
		}

		if len(entries) == 0 {
			w.done = true
			break
		}

		w.batch = entries
		// a batch shorter than the limit means the range is exhausted
		if len(entries) < walkBatchSize {
			w.done = true
		}
		w.next = entries[len(entries)-1].Revision + 1
		if w.next > w.end {
			w.done = true
		}
	}

	if len(w.batch) == 0 {
		return nil, nil
	}

	entry := w.batch[0]
	w.batch = w.batch[1:]

	return entry, nil
}
