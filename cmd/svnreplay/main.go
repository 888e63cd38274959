package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonyduckles/svn2svn"
	"github.com/tonyduckles/svn2svn/cmd"
	"github.com/tonyduckles/svn2svn/svn"
)

func main() {
	newRootCmd().Execute()
}

type rootCmd struct {
	*cobra.Command

	keepAuthor        bool
	keepDate          bool
	logAuthor         bool
	logDate           bool
	keepProps         bool
	continueFromBreak bool
	force             bool
	dryRun            bool
	verifyAfter       bool
	verbose           bool

	revRange      string
	limit         int
	preCommitHook string
	wcDir         string
	mapCachePath  string
	configPath    string
	username      string
	password      string
}

func newRootCmd() *rootCmd {
	c := &rootCmd{
		Command: &cobra.Command{
			Use:   "svnreplay SOURCE_URL TARGET_URL",
			Short: "replay svn subtree history onto another svn location",
			Long: `svnreplay walks the history of a subtree in a source svn repository and
re-commits it, revision by revision in original order, onto a subtree of a
target repository. Runs are restartable: interrupt at any point and rerun
with --continue-from-break to pick up after the last replayed revision.`,
			Args: cobra.ExactArgs(2),
		},
	}

	c.Flags().BoolVarP(&c.keepAuthor, "keep-author", "a", c.keepAuthor, "patch svn:author on replayed commits (needs pre-revprop-change hook)")
	c.Flags().BoolVar(&c.keepDate, "keep-date", c.keepDate, "patch svn:date on replayed commits (needs pre-revprop-change hook)")
	c.Flags().BoolVar(&c.logAuthor, "log-author", c.logAuthor, "record the original author in the commit message instead")
	c.Flags().BoolVar(&c.logDate, "log-date", c.logDate, "record the original date in the commit message instead")
	c.Flags().BoolVar(&c.keepProps, "keep-props", c.keepProps, "carry versioned properties onto replayed paths")
	c.Flags().BoolVarP(&c.continueFromBreak, "continue-from-break", "c", c.continueFromBreak, "resume after the last replayed revision")
	c.Flags().BoolVar(&c.force, "force", c.force, "replay into a non-empty target offset")
	c.Flags().BoolVar(&c.dryRun, "dry-run", c.dryRun, "walk and resolve but commit nothing")
	c.Flags().BoolVar(&c.verifyAfter, "verify", c.verifyAfter, "verify the final trees after replaying")
	c.Flags().BoolVarP(&c.verbose, "verbose", "v", c.verbose, "debug logging")
	c.Flags().StringVarP(&c.revRange, "svn-rev", "r", c.revRange, "source revision or range START:END to replay")
	c.Flags().IntVar(&c.limit, "limit", c.limit, "stop after this many commits (0 is unlimited)")
	c.Flags().StringVar(&c.preCommitHook, "pre-commit", c.preCommitHook, "pre-commit hook command, run as CMD <wc-dir> <source-rev>")
	c.Flags().StringVar(&c.wcDir, "wc", c.wcDir, "target working copy directory (default: temporary)")
	c.Flags().StringVar(&c.mapCachePath, "map-cache", c.mapCachePath, "path to the revision map cache file")
	c.Flags().StringVar(&c.configPath, "config", c.configPath, "path to a yaml configuration")
	c.Flags().StringVar(&c.username, "username", c.username, "svn username")
	c.Flags().StringVar(&c.password, "password", c.password, "svn password")

	c.Run = func(_ *cobra.Command, args []string) {
		c.run(args[0], args[1])
	}

	c.AddCommand(newVerifyCmd().Command)

	return c
}

func (c *rootCmd) run(sourceURL, targetURL string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	setupLogging(c.verbose)

	cfg := c.buildConfig(sourceURL, targetURL)
	if cfg.Cache != nil {
		defer cfg.Cache.Close()
	}

	client := newClient(c.username, c.password)
	replayer := cmd.GetOrPanic(svn2svn.NewReplayer(client, client, cfg))

	var result *svn2svn.Result
	var verification *svn2svn.VerificationResult
	if c.verifyAfter && !cfg.DryRun {
		result, verification = cmd.GetOrPanic2(replayer.ReplayAndVerify(ctx))
	} else {
		result = cmd.GetOrPanic(replayer.Run(ctx))
	}

	if cfg.DryRun {
		fmt.Printf("%d revision(s) pending\n", result.Pending)

		return
	}

	fmt.Printf("%d commit(s), %d vetoed, source r%d replayed as target r%d\n",
		result.Commits, result.Vetoed, result.LastSourceRev, result.LastTargetRev)
	for _, link := range result.Renames {
		fmt.Printf("rename: %s@%d -> %s@%d\n", link.FromPath, link.FromRev, link.ToPath, link.ToRev)
	}

	if verification != nil && !printVerification(verification) {
		os.Exit(1)
	}
}

// buildConfig merges the optional config file with command line flags;
// explicitly set flags win.
func (c *rootCmd) buildConfig(sourceURL, targetURL string) svn2svn.Config {
	fileCfg := &svn2svn.FileConfig{}
	if c.configPath != "" {
		fileCfg = cmd.GetOrPanic(svn2svn.LoadConfigFile(c.configPath))
	}

	cfg := svn2svn.Config{
		SourceURL:         sourceURL,
		TargetURL:         targetURL,
		StartRev:          fileCfg.StartRev,
		EndRev:            fileCfg.EndRev,
		KeepAuthor:        c.keepAuthor || fileCfg.KeepAuthor,
		KeepDate:          c.keepDate || fileCfg.KeepDate,
		LogAuthor:         c.logAuthor || fileCfg.LogAuthor,
		LogDate:           c.logDate || fileCfg.LogDate,
		KeepProps:         c.keepProps || fileCfg.KeepProps,
		ContinueFromBreak: c.continueFromBreak || fileCfg.ContinueFromBreak,
		Force:             c.force || fileCfg.Force,
		DryRun:            c.dryRun || fileCfg.DryRun,
		Limit:             c.limit,
		WorkingCopyDir:    c.wcDir,
	}
	if cfg.Limit == 0 {
		cfg.Limit = fileCfg.Limit
	}
	if cfg.WorkingCopyDir == "" {
		cfg.WorkingCopyDir = fileCfg.WorkingCopy
	}

	if c.revRange != "" {
		cfg.StartRev, cfg.EndRev = cmd.GetOrPanic2(parseRevRange(c.revRange))
	}

	hookCmd := c.preCommitHook
	if hookCmd == "" {
		hookCmd = fileCfg.PreCommitHook
	}
	if hookCmd != "" {
		cfg.Hook = &svn2svn.ExecHook{Cmd: hookCmd}
	}

	cachePath := c.mapCachePath
	if cachePath == "" {
		cachePath = fileCfg.MapCache
	}
	if cachePath != "" {
		cfg.Cache = cmd.GetOrPanic(svn2svn.OpenMapCache(cachePath))
	}

	return cfg
}

// parseRevRange parses "N" or "START:END" ("HEAD" allowed as END).
func parseRevRange(s string) (int64, int64, error) {
	start, end, found := strings.Cut(s, ":")

	startRev, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid revision range %q: %w", s, err)
	}
	if !found {
		return startRev, startRev, nil
	}
	if strings.EqualFold(end, "HEAD") {
		return startRev, 0, nil
	}

	endRev, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid revision range %q: %w", s, err)
	}
	if endRev < startRev {
		return 0, 0, fmt.Errorf("invalid revision range %q: end before start", s)
	}

	return startRev, endRev, nil
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	svn2svn.SetLogger(logger)
}

func newClient(username, password string) *svn.Exec {
	client := svn.NewExec()
	client.Username = username
	client.Password = password

	return client
}
