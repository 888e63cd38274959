package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tonyduckles/svn2svn"
	"github.com/tonyduckles/svn2svn/cmd"
	"github.com/tonyduckles/svn2svn/svn"
)

type verifyCmd struct {
	*cobra.Command

	verbose  bool
	username string
	password string
}

func newVerifyCmd() *verifyCmd {
	c := &verifyCmd{
		Command: &cobra.Command{
			Use:   "verify SOURCE_URL TARGET_URL",
			Short: "compare replayed trees content-wise",
			Long: `verify rebuilds the revision map from the target's history, takes its last
replayed pair and compares the source tree at that source revision against
the target tree at that target revision, content only.`,
			Args: cobra.ExactArgs(2),
		},
	}

	c.Flags().BoolVarP(&c.verbose, "verbose", "v", c.verbose, "debug logging")
	c.Flags().StringVar(&c.username, "username", c.username, "svn username")
	c.Flags().StringVar(&c.password, "password", c.password, "svn password")

	c.Run = func(_ *cobra.Command, args []string) {
		c.run(args[0], args[1])
	}

	return c
}

func (c *verifyCmd) run(sourceURL, targetURL string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	setupLogging(c.verbose)

	client := newClient(c.username, c.password)

	targetInfo := cmd.GetOrPanic(client.Info(ctx, targetURL))
	revmap := cmd.GetOrPanic(svn2svn.RebuildRevMap(ctx, client, targetURL, targetInfo.Revision))
	if revmap.Len() == 0 {
		fmt.Fprintf(os.Stderr, "%s: %s\n", color.RedString("error"), svn2svn.ErrNoReplayedHistory)
		os.Exit(1)
	}

	sourceInfo := cmd.GetOrPanic(client.Info(ctx, sourceURL))
	sourceBase := svn.JoinPath(sourceInfo.RepoRoot, sourceInfo.BasePath())

	result := cmd.GetOrPanic(svn2svn.Verify(ctx, client, client,
		sourceBase, revmap.LastSource(), targetURL, revmap.LastTarget()))

	if !printVerification(result) {
		os.Exit(1)
	}
}

// printVerification reports the verdict and per-path mismatches; it
// returns whether the trees matched.
func printVerification(result *svn2svn.VerificationResult) bool {
	if result.Passed() {
		fmt.Printf("%s: %d file(s) match at source r%d / target r%d\n",
			color.GreenString("ok"), result.Files, result.SourceRev, result.TargetRev)

		return true
	}

	for _, m := range result.Mismatches {
		fmt.Printf("%s: %s\n", color.RedString("mismatch"), m)
	}
	fmt.Printf("%s: %d path(s) diverge across %d file(s)\n",
		color.RedString("failed"), len(result.Mismatches), result.Files)

	return false
}
