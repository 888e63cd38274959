package svn

import "context"

// WorkingCopy identifies a local staging checkout managed by a [Client].
// The engine treats it as an opaque handle plus the directory the pre-commit
// hook is pointed at. Its on-disk state between runs is not trusted - only
// committed history is.
type WorkingCopy struct {
	// Dir is the local directory of the checkout.
	Dir string
	// URL the checkout was made from.
	URL string
}

// Client is the single capability surface the replay engine consumes from
// the underlying version-control system. [Exec] implements it against the
// svn command-line client; [MemRepo] implements it in memory for
// deterministic tests.
//
// Read operations address content by URL and revision. Mutating operations
// stage changes in a [WorkingCopy] and become durable only on Commit.
// Every call is blocking; the engine never overlaps two calls.
type Client interface {
	// Info fetches repository information for a URL.
	Info(ctx context.Context, url string) (*Info, error)

	// Log returns entries touching url within [start, end], ascending,
	// at most limit entries when limit > 0. withPaths controls whether
	// changed-path lists are fetched.
	Log(ctx context.Context, url string, start, end int64, limit int, withPaths bool) ([]*LogEntry, error)

	// Cat returns the content of a file URL at a revision.
	Cat(ctx context.Context, url string, rev int64) ([]byte, error)

	// List lists a directory URL at a revision. Entries are relative to
	// the listed URL and sorted lexically.
	List(ctx context.Context, url string, rev int64, recursive bool) ([]DirEntry, error)

	// PropGet returns the versioned properties of a URL at a revision.
	PropGet(ctx context.Context, url string, rev int64) (map[string]string, error)

	// Checkout creates (or refreshes) a working copy of url in dir.
	Checkout(ctx context.Context, url string, dir string) (*WorkingCopy, error)

	// Update brings path (working-copy relative, "" for the root) to HEAD.
	Update(ctx context.Context, wc *WorkingCopy, path string) error

	// Revert discards every staged change and unversioned file,
	// returning the working copy to its committed state.
	Revert(ctx context.Context, wc *WorkingCopy) error

	// Tracked reports whether path is under version control in the
	// working copy (committed, copied or staged for add; not staged
	// for delete).
	Tracked(ctx context.Context, wc *WorkingCopy, path string) (bool, error)

	// WriteFile materializes content at path inside the working copy.
	// The file stays unversioned until Add is called, unless it is
	// already tracked, in which case this stages a modification.
	WriteFile(ctx context.Context, wc *WorkingCopy, path string, content []byte) error

	// Mkdir creates a directory (and missing parents) in the working copy.
	Mkdir(ctx context.Context, wc *WorkingCopy, path string) error

	// Add stages an unversioned path for addition.
	Add(ctx context.Context, wc *WorkingCopy, path string) error

	// Delete stages a tracked path for deletion, recursively for
	// directories.
	Delete(ctx context.Context, wc *WorkingCopy, path string) error

	// Copy stages a repository-level copy of fromURL@fromRev to path,
	// preserving ancestry in the target repository.
	Copy(ctx context.Context, wc *WorkingCopy, fromURL string, fromRev int64, path string) error

	// SetProps replaces the full versioned property set on path.
	SetProps(ctx context.Context, wc *WorkingCopy, path string, props map[string]string) error

	// Commit commits the staged working copy with the given log message
	// and returns the new revision, or 0 when there was nothing to
	// commit.
	Commit(ctx context.Context, wc *WorkingCopy, message string) (int64, error)

	// SetRevProp sets an out-of-band revision property on an already
	// committed revision. Subject to the repository's revprop-change
	// policy, which can refuse it.
	SetRevProp(ctx context.Context, url string, rev int64, name, value string) error
}
