package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dupgit/cid/internal/config"
	"github.com/dupgit/cid/internal/directory"
	"github.com/dupgit/cid/internal/download"
	"github.com/dupgit/cid/internal/historystore"
	"github.com/dupgit/cid/internal/image"
	"github.com/dupgit/cid/internal/orchestrator"
	"github.com/dupgit/cid/internal/site"
	"github.com/dupgit/cid/internal/verify"
)

// runOptions binds the run subcommand's flags, mirroring the teacher's
// buildOptions: a *globalOptions pointer plus the command's own fields.
type runOptions struct {
	global *globalOptions

	configPath          string
	concurrentDownloads int
	verifySkipped       bool
}

func newRunCommand(global *globalOptions) *cobra.Command {
	o := &runOptions{global: global}

	cmd := &cobra.Command{
		Use:   "run [DB_PATH]",
		Short: "Resolve, download, and verify the newest image from every configured site",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.Run,
	}

	cmd.Flags().StringVar(&o.configPath, "config", config.DefaultConfigPath, "path to the TOML configuration file")
	cmd.Flags().IntVar(&o.concurrentDownloads, "concurrent-downloads", 0, "maximum number of simultaneous downloads (0 defers to config/default)")
	cmd.Flags().BoolVar(&o.verifySkipped, "verify-skipped", false, "also verify checksums of files that were skipped because they already exist on disk")

	return cmd
}

func (o *runOptions) Run(_ *cobra.Command, args []string) error {
	overrides := config.Overrides{
		ConfigPath:          o.configPath,
		ConcurrentDownloads: o.concurrentDownloads,
		VerifySkipped:       o.verifySkipped,
	}

	if len(args) == 1 {
		overrides.DBPath = args[0]
	}

	settings, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	sites, err := settings.Sites()
	if err != nil {
		return fmt.Errorf("compiling site configuration: %w", err)
	}

	store, err := historystore.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("opening history store %q: %w", settings.DBPath, err)
	}
	defer store.Close()

	dirClient := directory.NewHTTPClient(nil)
	resolver := site.NewResolver(dirClient)
	selector := image.NewSelector(dirClient, dirClient, store)

	silent := o.global.quiet
	downloader := download.NewHTTPDownloader(settings.ConcurrentDownloads, silent)
	orch := download.NewOrchestrator(downloader)
	verifier := verify.NewVerifier(store, settings.ConcurrentDownloads)

	pipeline := orchestrator.NewPipeline(resolver, selector, orch, verifier, settings.ConcurrentDownloads)

	report := pipeline.Run(o.global.ctx, sites, settings.VerifySkipped)

	verifiedTrue, verifiedFalse := 0, 0

	for _, result := range report.VerifyResults {
		switch result.Outcome {
		case verify.VerifiedTrue:
			verifiedTrue++
		case verify.VerifiedFalse:
			verifiedFalse++
		}
	}

	slog.Info("run complete",
		"leaf_urls", report.LeafURLs,
		"candidates", report.Candidates,
		"downloads", len(report.Summaries),
		"verified_true", verifiedTrue,
		"verified_false", verifiedFalse,
	)

	if verifiedFalse > 0 {
		slog.Warn("one or more downloads failed checksum verification", "count", verifiedFalse)
	}

	return nil
}
