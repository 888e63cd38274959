package svn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoCommitRevision is returned when svn commit output carries no
// "Committed revision" line even though svn exited successfully.
var ErrNoCommitRevision = errors.New("no committed revision in svn output")

// Exec is a [Client] that shells out to the svn command-line binary.
// One Exec value can address any number of repositories, since every
// read operation is URL-driven.
type Exec struct {
	// Bin is the svn binary to run, "svn" by default.
	Bin string
	// Username/Password are passed through when non-empty.
	Username string
	Password string
}

var _ Client = (*Exec)(nil)

// NewExec creates an [Exec] using the svn binary from PATH.
func NewExec() *Exec {
	return &Exec{Bin: "svn"}
}

func (e *Exec) run(ctx context.Context, args ...string) ([]byte, error) {
	full := []string{"--non-interactive"}
	if e.Username != "" {
		full = append(full, "--username", e.Username)
	}
	if e.Password != "" {
		full = append(full, "--password", e.Password)
	}
	full = append(full, args...)

	bin := e.Bin
	if bin == "" {
		bin = "svn"
	}

	slog.Debug("run svn", "args", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("svn %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

func (e *Exec) runIn(ctx context.Context, dir string, args ...string) ([]byte, error) {
	full := []string{"--non-interactive"}
	full = append(full, args...)

	bin := e.Bin
	if bin == "" {
		bin = "svn"
	}

	slog.Debug("run svn", "dir", dir, "args", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("svn %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// atRev pins a URL to a peg revision so renamed paths resolve.
func atRev(url string, rev int64) string {
	return fmt.Sprintf("%s@%d", url, rev)
}

func (e *Exec) Info(ctx context.Context, url string) (*Info, error) {
	out, err := e.run(ctx, "info", "--xml", url)
	if err != nil {
		return nil, err
	}

	return parseInfoXML(out)
}

func (e *Exec) Log(ctx context.Context, url string, start, end int64, limit int, withPaths bool) ([]*LogEntry, error) {
	args := []string{"log", "--xml", "-r", fmt.Sprintf("%d:%d", start, end)}
	if withPaths {
		args = append(args, "-v")
	}
	if limit > 0 {
		args = append(args, "--limit", strconv.Itoa(limit))
	}
	args = append(args, url)

	out, err := e.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	return parseLogXML(out)
}

func (e *Exec) Cat(ctx context.Context, url string, rev int64) ([]byte, error) {
	return e.run(ctx, "cat", "-r", strconv.FormatInt(rev, 10), atRev(url, rev))
}

func (e *Exec) List(ctx context.Context, url string, rev int64, recursive bool) ([]DirEntry, error) {
	args := []string{"list", "--xml", "-r", strconv.FormatInt(rev, 10)}
	if recursive {
		args = append(args, "--depth", "infinity")
	}
	args = append(args, atRev(url, rev))

	out, err := e.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	return parseListXML(out)
}

func (e *Exec) PropGet(ctx context.Context, url string, rev int64) (map[string]string, error) {
	out, err := e.run(ctx, "proplist", "--xml", "-v", "-r", strconv.FormatInt(rev, 10), atRev(url, rev))
	if err != nil {
		return nil, err
	}

	return parsePropListXML(out)
}

func (e *Exec) Checkout(ctx context.Context, url string, dir string) (*WorkingCopy, error) {
	if _, err := e.run(ctx, "checkout", url, dir); err != nil {
		return nil, err
	}

	return &WorkingCopy{Dir: dir, URL: url}, nil
}

func (e *Exec) Update(ctx context.Context, wc *WorkingCopy, path string) error {
	target := "."
	if path != "" {
		target = path
	}
	_, err := e.runIn(ctx, wc.Dir, "update", target)

	return err
}

// Revert reverts all local modifications and removes every unversioned
// file, so the working copy matches its committed state again.
func (e *Exec) Revert(ctx context.Context, wc *WorkingCopy) error {
	if _, err := e.runIn(ctx, wc.Dir, "cleanup"); err != nil {
		return err
	}
	if _, err := e.runIn(ctx, wc.Dir, "revert", "--recursive", "."); err != nil {
		return err
	}

	out, err := e.runIn(ctx, wc.Dir, "status", "--xml")
	if err != nil {
		return err
	}
	entries, err := parseStatusXML(out)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.item != "unversioned" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(wc.Dir, filepath.FromSlash(entry.path))); err != nil {
			return fmt.Errorf("cannot remove unversioned %s: %w", entry.path, err)
		}
	}

	return nil
}

func (e *Exec) Tracked(ctx context.Context, wc *WorkingCopy, path string) (bool, error) {
	target := "."
	if path != "" {
		target = path
	}
	out, err := e.runIn(ctx, wc.Dir, "status", "--xml", "--depth", "empty", "-v", target)
	if err != nil {
		return false, err
	}
	entries, err := parseStatusXML(out)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	switch entries[0].item {
	case "deleted", "unversioned", "missing":
		return false, nil
	default:
		return true, nil
	}
}

func (e *Exec) WriteFile(ctx context.Context, wc *WorkingCopy, path string, content []byte) error {
	full := filepath.Join(wc.Dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	return os.WriteFile(full, content, 0o644)
}

func (e *Exec) Mkdir(ctx context.Context, wc *WorkingCopy, path string) error {
	full := filepath.Join(wc.Dir, filepath.FromSlash(path))
	if _, err := os.Stat(full); err == nil {
		return nil
	}

	return os.MkdirAll(full, 0o755)
}

func (e *Exec) Add(ctx context.Context, wc *WorkingCopy, path string) error {
	_, err := e.runIn(ctx, wc.Dir, "add", "--parents", path)

	return err
}

func (e *Exec) Delete(ctx context.Context, wc *WorkingCopy, path string) error {
	_, err := e.runIn(ctx, wc.Dir, "rm", "--force", path)

	return err
}

func (e *Exec) Copy(ctx context.Context, wc *WorkingCopy, fromURL string, fromRev int64, path string) error {
	_, err := e.runIn(ctx, wc.Dir, "copy", "-r", strconv.FormatInt(fromRev, 10), atRev(fromURL, fromRev), path)

	return err
}

func (e *Exec) SetProps(ctx context.Context, wc *WorkingCopy, path string, props map[string]string) error {
	target := "."
	if path != "" {
		target = path
	}

	out, err := e.runIn(ctx, wc.Dir, "proplist", "--xml", "-v", target)
	if err != nil {
		return err
	}
	current, err := parsePropListXML(out)
	if err != nil {
		return err
	}

	for name := range current {
		if _, keep := props[name]; keep {
			continue
		}
		if _, err := e.runIn(ctx, wc.Dir, "propdel", name, target); err != nil {
			return err
		}
	}
	for name, value := range props {
		if old, have := current[name]; have && old == value {
			continue
		}
		if _, err := e.runIn(ctx, wc.Dir, "propset", name, value, target); err != nil {
			return err
		}
	}

	return nil
}

var committedRevRe = regexp.MustCompile(`(?m)^Committed revision (\d+)\.`)

func (e *Exec) Commit(ctx context.Context, wc *WorkingCopy, message string) (int64, error) {
	out, err := e.runIn(ctx, wc.Dir, "commit", "--force-log", "-m", message, ".")
	if err != nil {
		return 0, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		// Nothing to commit.
		return 0, nil
	}

	m := committedRevRe.FindSubmatch(out)
	if m == nil {
		return 0, ErrNoCommitRevision
	}

	return strconv.ParseInt(string(m[1]), 10, 64)
}

func (e *Exec) SetRevProp(ctx context.Context, url string, rev int64, name, value string) error {
	_, err := e.run(ctx, "propset", "--revprop", "-r", strconv.FormatInt(rev, 10), name, value, url)

	return err
}
