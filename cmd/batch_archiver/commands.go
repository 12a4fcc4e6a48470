package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/italolelis/batch_archiver/internal/cleanup"
	"github.com/italolelis/batch_archiver/internal/config"
	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/staging"
	"github.com/italolelis/batch_archiver/internal/storage/sqlite"
)

type phase int

const (
	phaseDownload phase = 1 << iota
	phaseUpload
)

// overrides are flag values that take precedence over the environment for a
// single invocation.
type overrides struct {
	resourceList string
	downloadDir  string
}

func (o overrides) apply(cfg *config.Config) {
	if o.resourceList != "" {
		cfg.ResourceList = o.resourceList
	}

	if o.downloadDir != "" {
		cfg.DownloadDir = o.downloadDir
	}
}

func newRunCmd(opts *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Download the resource list, then upload everything staged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), *opts, phaseDownload|phaseUpload)
		},
	}
}

func newDownloadCmd(opts *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Only stage the resource list locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), *opts, phaseDownload)
		},
	}
}

func newUploadCmd(opts *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Only upload what is already staged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), *opts, phaseUpload)
		},
	}
}

func newPruneCmd(opts *overrides) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove partial downloads left behind by interrupted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			opts.apply(cfg)

			if cmd.Flags().Changed("older-than") {
				cfg.StaleTempAfter = olderThan
			}

			ctx := logctx.WithLogger(cmd.Context(), newLogger(cfg))

			store, err := staging.Open(cfg.DownloadDir)
			if err != nil {
				return err
			}

			removed, err := cleanup.DeleteStaleTempFiles(ctx, store, cfg.StaleTempAfter)
			if err != nil {
				return fmt.Errorf("failed to prune staging directory: %w", err)
			}

			logctx.LoggerFromContext(ctx).Info("prune finished", "removed", removed, "dir", cfg.DownloadDir)

			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum age of removed files (overrides STALE_TEMP_AFTER)")

	return cmd
}

func newLedgerCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ledger [run-id]",
		Short: "Show recorded runs, or the uploads of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cfg.LedgerPath == "" {
				return errors.New("LEDGER_PATH is not set")
			}

			db, err := sqlite.InitDB(cfg.LedgerPath)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := sqlite.NewInstrumentedUploadRepository(db, nil)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			defer w.Flush()

			if len(args) == 0 {
				runs, err := repo.GetRuns(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to read runs: %w", err)
				}

				fmt.Fprintln(w, "RUN\tSTARTED\tUPLOADED\tFAILED\tSIZE")

				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
						r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Uploaded, r.Failed, humanize.IBytes(uint64(r.Bytes)))
				}

				return nil
			}

			uploads, err := repo.GetUploads(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read uploads: %w", err)
			}

			fmt.Fprintln(w, "FILE\tKEY\tSTATUS\tSIZE\tERROR")

			for _, u := range uploads {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					u.Filename, u.Key, u.Status, humanize.IBytes(uint64(u.Size)), strings.ReplaceAll(u.Error, "\n", " "))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")

	return cmd
}
