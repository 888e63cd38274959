package svn

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnknownURL         = errors.New("url is not inside this repository")
	ErrNoSuchRevision     = errors.New("no such revision")
	ErrNoSuchPath         = errors.New("no such path")
	ErrNoSuchWorkingCopy  = errors.New("no such working copy")
	ErrPathExists         = errors.New("path already exists")
	ErrPathNotTracked     = errors.New("path is not under version control")
	ErrPathAlreadyTracked = errors.New("path is already under version control")
	ErrRevPropRefused     = errors.New("revision property change refused by policy")
)

// MemRepo is an in-memory repository implementing [Client] for
// deterministic tests of the replay engine. It keeps a full tree
// snapshot per revision and supports working copies with ordered
// staged operations, so commit ordering (including delete-then-add
// replaces) behaves like the real client.
//
// MemRepo is not safe for concurrent use; the engine is single-threaded
// by design.
type MemRepo struct {
	root   string
	uuid   string
	author string
	clock  time.Time

	revs []*memRevision
	wcs  map[string]*memWC

	// RevPropPolicy, when non-nil, is consulted before a revision
	// property change; an error refuses the change, standing in for the
	// repository's pre-revprop-change hook.
	RevPropPolicy func(rev int64, name string) error
}

var _ Client = (*MemRepo)(nil)

type memNode struct {
	kind    NodeKind
	content []byte
	props   map[string]string
}

func (n *memNode) clone() *memNode {
	c := &memNode{kind: n.kind}
	if n.content != nil {
		c.content = append([]byte(nil), n.content...)
	}
	if n.props != nil {
		c.props = make(map[string]string, len(n.props))
		for k, v := range n.props {
			c.props[k] = v
		}
	}

	return c
}

type memRevision struct {
	entry *LogEntry
	// tree maps repository-absolute paths ("/trunk/a.txt") to nodes,
	// directories included.
	tree map[string]*memNode
}

// NewMemRepo creates an empty repository rooted at rootURL
// (e.g. "mem://source"). Revision 0 is the empty tree.
func NewMemRepo(rootURL string) *MemRepo {
	h := fnv.New64a()
	h.Write([]byte(rootURL))

	return &MemRepo{
		root:   strings.TrimRight(rootURL, "/"),
		uuid:   fmt.Sprintf("mem-%016x", h.Sum64()),
		author: "replay",
		clock:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		revs: []*memRevision{{
			entry: &LogEntry{Revision: 0},
			tree:  map[string]*memNode{},
		}},
		wcs: map[string]*memWC{},
	}
}

// RootURL returns the repository root URL.
func (m *MemRepo) RootURL() string { return m.root }

// Head returns the current head revision number.
func (m *MemRepo) Head() int64 { return int64(len(m.revs) - 1) }

// SetAuthor sets the author recorded on working-copy commits.
func (m *MemRepo) SetAuthor(author string) { m.author = author }

func (m *MemRepo) basePath(url string) (string, error) {
	url = strings.TrimRight(url, "/")
	if url == m.root {
		return "", nil
	}
	if !strings.HasPrefix(url, m.root+"/") {
		return "", fmt.Errorf("%w: %s", ErrUnknownURL, url)
	}

	return url[len(m.root):], nil
}

func (m *MemRepo) revision(rev int64) (*memRevision, error) {
	if rev < 0 || rev >= int64(len(m.revs)) {
		return nil, fmt.Errorf("%w: r%d", ErrNoSuchRevision, rev)
	}

	return m.revs[rev], nil
}

func (m *MemRepo) nextDate() time.Time {
	m.clock = m.clock.Add(time.Minute)

	return m.clock
}

// CommitChanges applies an ordered change list directly as a new
// revision, for building test fixtures. contents carries file content
// for added/modified files, keyed by repository-absolute path. Missing
// parent directories are created silently.
func (m *MemRepo) CommitChanges(author, message string, changes []PathChange, contents map[string][]byte) (int64, error) {
	tree := cloneTree(m.revs[len(m.revs)-1].tree)

	for i, c := range changes {
		switch c.Action {
		case ActionReplace:
			removeSubtree(tree, c.Path)
			fallthrough
		case ActionAdd:
			if _, exists := tree[c.Path]; exists && c.Action == ActionAdd {
				return 0, fmt.Errorf("%w: %s", ErrPathExists, c.Path)
			}
			if c.CopyFrom != nil {
				src, err := m.revision(c.CopyFrom.Rev)
				if err != nil {
					return 0, err
				}
				if err := copySubtree(src.tree, c.CopyFrom.Path, tree, c.Path); err != nil {
					return 0, err
				}
				if content, ok := contents[c.Path]; ok {
					tree[c.Path] = &memNode{kind: KindFile, content: append([]byte(nil), content...)}
				}
			} else if c.Kind == KindDir {
				tree[c.Path] = &memNode{kind: KindDir}
			} else {
				tree[c.Path] = &memNode{kind: KindFile, content: append([]byte(nil), contents[c.Path]...)}
			}
			ensureParents(tree, c.Path)
		case ActionModify:
			node, exists := tree[c.Path]
			if !exists {
				return 0, fmt.Errorf("change %d: %w: %s", i, ErrNoSuchPath, c.Path)
			}
			if content, ok := contents[c.Path]; ok {
				node.content = append([]byte(nil), content...)
			}
		case ActionDelete:
			if _, exists := tree[c.Path]; !exists {
				return 0, fmt.Errorf("change %d: %w: %s", i, ErrNoSuchPath, c.Path)
			}
			removeSubtree(tree, c.Path)
		default:
			return 0, fmt.Errorf("change %d: invalid action %q", i, c.Action)
		}
	}

	rev := int64(len(m.revs))
	m.revs = append(m.revs, &memRevision{
		entry: &LogEntry{
			Revision: rev,
			Author:   author,
			Date:     m.nextDate(),
			Message:  message,
			Changes:  changes,
		},
		tree: tree,
	})

	return rev, nil
}

func cloneTree(tree map[string]*memNode) map[string]*memNode {
	c := make(map[string]*memNode, len(tree))
	for p, n := range tree {
		c[p] = n.clone()
	}

	return c
}

func removeSubtree(tree map[string]*memNode, path string) {
	for p := range tree {
		if IsChildPath(p, path) {
			delete(tree, p)
		}
	}
}

func copySubtree(src map[string]*memNode, from string, dst map[string]*memNode, to string) error {
	root, exists := src[from]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSuchPath, from)
	}

	dst[to] = root.clone()
	for p, n := range src {
		if p == from || !IsChildPath(p, from) {
			continue
		}
		dst[to+p[len(from):]] = n.clone()
	}

	return nil
}

func ensureParents(tree map[string]*memNode, path string) {
	for {
		i := strings.LastIndex(path, "/")
		if i <= 0 {
			return
		}
		path = path[:i]
		if _, exists := tree[path]; exists {
			return
		}
		tree[path] = &memNode{kind: KindDir}
	}
}

func (m *MemRepo) Info(ctx context.Context, url string) (*Info, error) {
	if _, err := m.basePath(url); err != nil {
		return nil, err
	}

	return &Info{
		URL:      strings.TrimRight(url, "/"),
		RepoRoot: m.root,
		UUID:     m.uuid,
		Revision: m.Head(),
	}, nil
}

func (m *MemRepo) Log(ctx context.Context, url string, start, end int64, limit int, withPaths bool) ([]*LogEntry, error) {
	base, err := m.basePath(url)
	if err != nil {
		return nil, err
	}
	if end > m.Head() {
		return nil, fmt.Errorf("%w: r%d", ErrNoSuchRevision, end)
	}
	if start < 1 {
		start = 1
	}

	var entries []*LogEntry
	for rev := start; rev <= end; rev++ {
		entry := m.revs[rev].entry
		if !touches(entry, base) {
			continue
		}
		out := &LogEntry{
			Revision: entry.Revision,
			Author:   entry.Author,
			Date:     entry.Date,
			Message:  entry.Message,
		}
		if withPaths {
			out.Changes = entry.Changes
		}
		entries = append(entries, out)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}

	return entries, nil
}

// touches reports whether an entry changed base's subtree, or an
// ancestor of base (a copy of a parent directory affects base too).
func touches(entry *LogEntry, base string) bool {
	if base == "" {
		return len(entry.Changes) > 0
	}
	for _, c := range entry.Changes {
		if IsChildPath(c.Path, base) || IsChildPath(base, c.Path) {
			return true
		}
	}

	return false
}

func (m *MemRepo) node(url string, rev int64) (*memNode, string, error) {
	base, err := m.basePath(url)
	if err != nil {
		return nil, "", err
	}
	r, err := m.revision(rev)
	if err != nil {
		return nil, "", err
	}
	if base == "" {
		return &memNode{kind: KindDir}, base, nil
	}
	node, exists := r.tree[base]
	if !exists {
		return nil, "", fmt.Errorf("%w: %s@%d", ErrNoSuchPath, base, rev)
	}

	return node, base, nil
}

func (m *MemRepo) Cat(ctx context.Context, url string, rev int64) ([]byte, error) {
	node, _, err := m.node(url, rev)
	if err != nil {
		return nil, err
	}
	if node.kind != KindFile {
		return nil, fmt.Errorf("not a file: %s", url)
	}

	return append([]byte(nil), node.content...), nil
}

func (m *MemRepo) List(ctx context.Context, url string, rev int64, recursive bool) ([]DirEntry, error) {
	base, err := m.basePath(url)
	if err != nil {
		return nil, err
	}
	r, err := m.revision(rev)
	if err != nil {
		return nil, err
	}
	if base != "" {
		if _, exists := r.tree[base]; !exists {
			return nil, fmt.Errorf("%w: %s@%d", ErrNoSuchPath, base, rev)
		}
	}

	var entries []DirEntry
	for p, n := range r.tree {
		rel, under := PathOffset(p, base)
		if !under || rel == "" {
			continue
		}
		if !recursive && strings.Contains(rel, "/") {
			continue
		}
		entries = append(entries, DirEntry{Path: rel, Kind: n.kind})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

func (m *MemRepo) PropGet(ctx context.Context, url string, rev int64) (map[string]string, error) {
	node, _, err := m.node(url, rev)
	if err != nil {
		return nil, err
	}

	props := make(map[string]string, len(node.props))
	for k, v := range node.props {
		props[k] = v
	}

	return props, nil
}

type memWC struct {
	repo   *MemRepo
	base   string
	files  map[string]*wcNode
	staged []stagedOp
}

type wcNode struct {
	kind    NodeKind
	content []byte
	props   map[string]string
	tracked bool
}

type stagedOp struct {
	action   Action
	path     string
	kind     NodeKind
	copyFrom *CopyFrom
}

func (m *MemRepo) wc(wc *WorkingCopy) (*memWC, error) {
	w, exists := m.wcs[wc.Dir]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchWorkingCopy, wc.Dir)
	}

	return w, nil
}

func (m *MemRepo) checkoutFiles(base string) map[string]*wcNode {
	files := map[string]*wcNode{}
	head := m.revs[len(m.revs)-1].tree
	for p, n := range head {
		rel, under := PathOffset(p, base)
		if !under || rel == "" {
			continue
		}
		files[rel] = &wcNode{
			kind:    n.kind,
			content: append([]byte(nil), n.content...),
			props:   clonedProps(n.props),
			tracked: true,
		}
	}

	return files
}

func clonedProps(props map[string]string) map[string]string {
	if props == nil {
		return nil
	}
	c := make(map[string]string, len(props))
	for k, v := range props {
		c[k] = v
	}

	return c
}

func (m *MemRepo) Checkout(ctx context.Context, url string, dir string) (*WorkingCopy, error) {
	base, err := m.basePath(url)
	if err != nil {
		return nil, err
	}

	m.wcs[dir] = &memWC{
		repo:  m,
		base:  base,
		files: m.checkoutFiles(base),
	}

	return &WorkingCopy{Dir: dir, URL: strings.TrimRight(url, "/")}, nil
}

func (m *MemRepo) Update(ctx context.Context, wc *WorkingCopy, path string) error {
	if _, err := m.wc(wc); err != nil {
		return err
	}

	// The in-memory working copy is always at HEAD.
	return nil
}

func (m *MemRepo) Revert(ctx context.Context, wc *WorkingCopy) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}

	w.files = m.checkoutFiles(w.base)
	w.staged = nil

	return nil
}

func (m *MemRepo) Tracked(ctx context.Context, wc *WorkingCopy, path string) (bool, error) {
	w, err := m.wc(wc)
	if err != nil {
		return false, err
	}
	node, exists := w.files[path]

	return exists && node.tracked, nil
}

func (m *MemRepo) WriteFile(ctx context.Context, wc *WorkingCopy, path string, content []byte) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}

	if node, exists := w.files[path]; exists && node.tracked {
		node.content = append([]byte(nil), content...)
		node.kind = KindFile
		w.staged = append(w.staged, stagedOp{action: ActionModify, path: path, kind: KindFile})

		return nil
	}

	w.files[path] = &wcNode{kind: KindFile, content: append([]byte(nil), content...)}

	return nil
}

func (m *MemRepo) Mkdir(ctx context.Context, wc *WorkingCopy, path string) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}
	if _, exists := w.files[path]; exists {
		return nil
	}

	w.files[path] = &wcNode{kind: KindDir}
	for parent := parentOf(path); parent != ""; parent = parentOf(parent) {
		if _, exists := w.files[parent]; exists {
			break
		}
		w.files[parent] = &wcNode{kind: KindDir}
	}

	return nil
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}

	return path[:i]
}

func (m *MemRepo) Add(ctx context.Context, wc *WorkingCopy, path string) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}
	node, exists := w.files[path]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSuchPath, path)
	}
	if node.tracked {
		return fmt.Errorf("%w: %s", ErrPathAlreadyTracked, path)
	}

	// svn add --parents semantics: untracked parents are added too.
	for parent := parentOf(path); parent != ""; parent = parentOf(parent) {
		pnode, pexists := w.files[parent]
		if !pexists || pnode.tracked {
			break
		}
		pnode.tracked = true
		w.staged = append(w.staged, stagedOp{action: ActionAdd, path: parent, kind: KindDir})
	}

	node.tracked = true
	w.staged = append(w.staged, stagedOp{action: ActionAdd, path: path, kind: node.kind})

	return nil
}

func (m *MemRepo) Delete(ctx context.Context, wc *WorkingCopy, path string) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}
	node, exists := w.files[path]
	if !exists || !node.tracked {
		return fmt.Errorf("%w: %s", ErrPathNotTracked, path)
	}

	for p := range w.files {
		if p == path || IsChildPath("/"+p, "/"+path) {
			delete(w.files, p)
		}
	}
	w.staged = append(w.staged, stagedOp{action: ActionDelete, path: path, kind: node.kind})

	return nil
}

func (m *MemRepo) Copy(ctx context.Context, wc *WorkingCopy, fromURL string, fromRev int64, path string) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}
	fromPath, err := m.basePath(fromURL)
	if err != nil {
		return err
	}
	src, err := m.revision(fromRev)
	if err != nil {
		return err
	}
	if _, exists := w.files[path]; exists {
		return fmt.Errorf("%w: %s", ErrPathExists, path)
	}
	root, exists := src.tree[fromPath]
	if !exists {
		return fmt.Errorf("%w: %s@%d", ErrNoSuchPath, fromPath, fromRev)
	}

	insert := func(rel string, n *memNode) {
		w.files[rel] = &wcNode{
			kind:    n.kind,
			content: append([]byte(nil), n.content...),
			props:   clonedProps(n.props),
			tracked: true,
		}
	}
	insert(path, root)
	for p, n := range src.tree {
		if p == fromPath || !IsChildPath(p, fromPath) {
			continue
		}
		insert(path+p[len(fromPath):], n)
	}

	w.staged = append(w.staged, stagedOp{
		action:   ActionAdd,
		path:     path,
		kind:     root.kind,
		copyFrom: &CopyFrom{Path: fromPath, Rev: fromRev},
	})

	return nil
}

func (m *MemRepo) SetProps(ctx context.Context, wc *WorkingCopy, path string, props map[string]string) error {
	w, err := m.wc(wc)
	if err != nil {
		return err
	}
	node, exists := w.files[path]
	if !exists || !node.tracked {
		return fmt.Errorf("%w: %s", ErrPathNotTracked, path)
	}

	changed := len(node.props) != len(props)
	if !changed {
		for k, v := range props {
			if node.props[k] != v {
				changed = true
				break
			}
		}
	}
	node.props = clonedProps(props)
	if changed {
		w.staged = append(w.staged, stagedOp{action: ActionModify, path: path, kind: node.kind})
	}

	return nil
}

func (m *MemRepo) Commit(ctx context.Context, wc *WorkingCopy, message string) (int64, error) {
	w, err := m.wc(wc)
	if err != nil {
		return 0, err
	}
	if len(w.staged) == 0 {
		return 0, nil
	}

	tree := cloneTree(m.revs[len(m.revs)-1].tree)
	abs := func(rel string) string {
		if w.base == "" {
			return "/" + rel
		}

		return w.base + "/" + rel
	}

	var changes []PathChange
	deleted := map[string]int{} // path -> index of its D entry, for replace coalescing
	seen := map[string]bool{}   // paths already carrying an A or M entry

	for _, op := range w.staged {
		path := abs(op.path)
		switch op.action {
		case ActionDelete:
			removeSubtree(tree, path)
			deleted[path] = len(changes)
			changes = append(changes, PathChange{Path: path, Action: ActionDelete, Kind: op.kind})
		case ActionAdd:
			node := w.files[op.path]
			if node == nil {
				return 0, fmt.Errorf("%w: %s", ErrNoSuchPath, op.path)
			}
			var cf *CopyFrom
			if op.copyFrom != nil {
				cf = &CopyFrom{Path: op.copyFrom.Path, Rev: op.copyFrom.Rev}
				src := m.revs[op.copyFrom.Rev].tree
				if err := copySubtree(src, op.copyFrom.Path, tree, path); err != nil {
					return 0, err
				}
			}
			tree[path] = &memNode{kind: node.kind, content: append([]byte(nil), node.content...), props: clonedProps(node.props)}
			action := ActionAdd
			if i, wasDeleted := deleted[path]; wasDeleted {
				// delete-then-add in one commit is a replace
				changes[i] = PathChange{Path: path, Action: ActionReplace, Kind: node.kind, CopyFrom: cf}
				delete(deleted, path)
				seen[path] = true
				continue
			}
			changes = append(changes, PathChange{Path: path, Action: action, Kind: node.kind, CopyFrom: cf})
			seen[path] = true
		case ActionModify:
			node := w.files[op.path]
			if node == nil {
				return 0, fmt.Errorf("%w: %s", ErrNoSuchPath, op.path)
			}
			tree[path] = &memNode{kind: node.kind, content: append([]byte(nil), node.content...), props: clonedProps(node.props)}
			if seen[path] {
				continue
			}
			changes = append(changes, PathChange{Path: path, Action: ActionModify, Kind: node.kind})
			seen[path] = true
		}
	}

	rev := int64(len(m.revs))
	m.revs = append(m.revs, &memRevision{
		entry: &LogEntry{
			Revision: rev,
			Author:   m.author,
			Date:     m.nextDate(),
			Message:  message,
			Changes:  changes,
		},
		tree: tree,
	})

	w.files = m.checkoutFiles(w.base)
	w.staged = nil

	return rev, nil
}

func (m *MemRepo) SetRevProp(ctx context.Context, url string, rev int64, name, value string) error {
	if _, err := m.basePath(url); err != nil {
		return err
	}
	r, err := m.revision(rev)
	if err != nil {
		return err
	}
	if m.RevPropPolicy != nil {
		if err := m.RevPropPolicy(rev, name); err != nil {
			return fmt.Errorf("%w: %s on r%d: %w", ErrRevPropRefused, name, rev, err)
		}
	}

	switch name {
	case "svn:author":
		r.entry.Author = value
	case "svn:date":
		t, err := parseSvnTime(value)
		if err != nil {
			return err
		}
		r.entry.Date = t
	case "svn:log":
		r.entry.Message = value
	default:
		// other revprops are accepted and dropped; the engine only
		// patches author and date
	}

	return nil
}
