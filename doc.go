// svn2svn replays the revision history of a subtree from one Subversion
// repository into another. Each replayed commit is physically new - new
// revision number, new timestamp - but preserves the logical evolution of
// the tree: adds, edits, deletes, renames, copies and replaces, including
// copies whose origin traces across multiple renames or outside the
// replayed subtree.
//
// See [Replayer] for the replay run itself, [RevMap] for the durable
// source-to-target revision mapping, and [Verify] for the content-only
// tree comparison run after a replay.
//
// The underlying version-control client is abstracted behind [svn.Client];
// [svn.Exec] drives the real svn binary and [svn.MemRepo] provides a
// deterministic in-memory implementation for tests.
package svn2svn
