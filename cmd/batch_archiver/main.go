package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("fatal error", "err", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	var opts overrides

	cmd := &cobra.Command{
		Use:   "batch_archiver",
		Short: "Stage remote resources locally and archive them to S3",
		Long: `batch_archiver downloads every URL of a resource list into a local staging
directory and uploads the staged files to an S3-compatible bucket. A staged
file is deleted only once the bucket has accepted it, so a failed run can
simply be started again.

Without a subcommand both phases run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), opts, phaseDownload|phaseUpload)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.resourceList, "list", "", "resource list file (overrides RESOURCE_LIST)")
	cmd.PersistentFlags().StringVar(&opts.downloadDir, "dir", "", "staging directory (overrides DOWNLOAD_DIR)")

	cmd.AddCommand(
		newRunCmd(&opts),
		newDownloadCmd(&opts),
		newUploadCmd(&opts),
		newPruneCmd(&opts),
		newLedgerCmd(),
	)

	return cmd
}
