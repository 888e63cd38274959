package svn2svn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Hook inspects (and may mutate) the staged working copy before each
// commit. logMessage is the full message the commit would carry,
// trailers included. Returning [ErrHookVeto] drops the staged revision
// cleanly and replay continues; any other error aborts the run.
type Hook interface {
	Check(ctx context.Context, wcDir string, sourceRev int64, logMessage string) error
}

// ErrHookVeto signals a deliberate rejection of the staged revision.
var ErrHookVeto = errors.New("pre-commit hook vetoed revision")

// HookFunc adapts a plain function to [Hook].
type HookFunc func(ctx context.Context, wcDir string, sourceRev int64, logMessage string) error

func (f HookFunc) Check(ctx context.Context, wcDir string, sourceRev int64, logMessage string) error {
	return f(ctx, wcDir, sourceRev, logMessage)
}

// ExecHook runs an external command as the pre-commit hook, invoked as
//
//	CMD <working-copy-dir> <source-rev>
//
// with the pending log message in SVNREPLAY_LOG_MESSAGE. A zero exit
// accepts the staged revision, a non-zero exit vetoes it, and a failure
// to run the command at all is fatal.
type ExecHook struct {
	Cmd string
}

func (h *ExecHook) Check(ctx context.Context, wcDir string, sourceRev int64, logMessage string) error {
	cmd := exec.CommandContext(ctx, h.Cmd, wcDir, strconv.FormatInt(sourceRev, 10))
	cmd.Dir = wcDir
	cmd.Env = append(os.Environ(), "SVNREPLAY_LOG_MESSAGE="+logMessage)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Info("pre-commit hook vetoed revision",
			"rev", sourceRev, "exit-code", exitErr.ExitCode(), "output", string(out))

		return fmt.Errorf("%w: r%d (exit code %d)", ErrHookVeto, sourceRev, exitErr.ExitCode())
	}

	return fmt.Errorf("cannot run pre-commit hook %s: %w", h.Cmd, err)
}
