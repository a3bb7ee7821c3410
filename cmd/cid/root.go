package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions carries values shared by every subcommand, in the style of
// the teacher's buildOptions.global field.
type globalOptions struct {
	ctx context.Context

	verbosity int
	quiet     bool
}

func newRootCommand(ctx context.Context) *cobra.Command {
	global := &globalOptions{ctx: ctx}

	cmd := &cobra.Command{
		Use:          "cid",
		Short:        "Download the newest cloud-image files from configured sites",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(global)
		},
	}

	cmd.PersistentFlags().CountVarP(&global.verbosity, "verbose", "v", "increase logging verbosity (-v for info, -vv for debug)")
	cmd.PersistentFlags().BoolVarP(&global.quiet, "quiet", "q", false, "suppress all logging below error level")

	cmd.AddCommand(newRunCommand(global))

	return cmd
}

// configureLogging installs a slog text handler on stderr whose level
// follows -v/-vv/-q. The handler writes plain text without color codes, so
// its output is the same whether or not NO_COLOR is set.
func configureLogging(global *globalOptions) {
	level := slog.LevelWarn

	switch {
	case global.quiet:
		level = slog.LevelError
	case global.verbosity >= 2:
		level = slog.LevelDebug
	case global.verbosity == 1:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
