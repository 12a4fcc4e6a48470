package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/italolelis/batch_archiver/internal/archiver"
	"github.com/italolelis/batch_archiver/internal/cleanup"
	"github.com/italolelis/batch_archiver/internal/config"
	"github.com/italolelis/batch_archiver/internal/dc/web"
	"github.com/italolelis/batch_archiver/internal/downloader"
	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/notifier"
	"github.com/italolelis/batch_archiver/internal/objectstore/s3"
	"github.com/italolelis/batch_archiver/internal/staging"
	"github.com/italolelis/batch_archiver/internal/storage/sqlite"
	"github.com/italolelis/batch_archiver/internal/telemetry"
	"github.com/italolelis/batch_archiver/internal/transfer"
	"github.com/italolelis/batch_archiver/internal/uploader"
)

const shutdownTimeout = 5 * time.Second

func newLogger(cfg *config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})

	return slog.New(logctx.NewTraceHandler(handler))
}

func runArchive(ctx context.Context, opts overrides, phases phase) error {
	// Configuration is checked before anything touches the disk or the network.
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	opts.apply(cfg)

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	runID := uuid.NewString()
	ctx = logctx.WithRunID(logctx.WithLogger(ctx, logger), runID)

	logger.InfoContext(ctx, "batch archiver starting...",
		"version", version,
		"log_level", cfg.LogLevel,
		"bucket", cfg.S3BucketName,
		"prefix", cfg.S3UploadPrefix,
		"download_dir", cfg.DownloadDir,
	)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    "batch_archiver",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Staging Store
	store, err := staging.Open(cfg.DownloadDir)
	if err != nil {
		return err
	}

	if removed, err := cleanup.DeleteStaleTempFiles(ctx, store, cfg.StaleTempAfter); err != nil {
		logger.Warn("failed to prune stale temp files", "err", err)
	} else if removed > 0 {
		logger.Info("pruned stale temp files", "removed", removed)
	}

	// =========================================================================
	// Start Ledger
	db, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}

	if db != nil {
		defer db.Close()
	}

	// =========================================================================
	// Start Clients
	fetcher := transfer.NewInstrumentedFetcher(
		web.NewClient(cfg.HTTPTimeout, "batch_archiver/"+version), tel, "web",
	)

	s3Client, err := s3.NewClient(ctx, s3.Options{
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.S3Endpoint,
		UsePathStyle:    cfg.UsePathStyle(),
	})
	if err != nil {
		return fmt.Errorf("failed to build s3 client: %w", err)
	}

	objects := transfer.NewInstrumentedObjectStore(s3Client, tel, "s3")

	// =========================================================================
	// Start Archiver
	up := uploader.NewUploader(store, objects, uploader.Options{
		Bucket:          cfg.S3BucketName,
		Prefix:          cfg.S3UploadPrefix,
		ContentType:     cfg.UploadContentType,
		BufferThreshold: int64(cfg.UploadBufferThreshold),
	}, tel)

	if db != nil {
		up.WithLedger(sqlite.NewInstrumentedUploadRepository(db, tel), runID)
	}

	arch := archiver.New(store, downloader.NewDownloader(store, fetcher, tel), up, archiver.Options{
		Concurrency:   cfg.UploadConcurrency,
		DispatchDelay: cfg.UploadDispatchDelay,
	})

	// =========================================================================
	// Start Metrics Server
	stopServer := startMetricsServer(ctx, cfg, tel, arch)
	defer stopServer()

	// =========================================================================
	// Run
	summary, err := runPhases(ctx, cfg, arch, phases)

	logger.InfoContext(ctx, "archive run finished", "summary", summary)

	notify(ctx, cfg, summary)

	return err
}

func runPhases(ctx context.Context, cfg *config.Config, arch *archiver.Archiver, phases phase) (archiver.Summary, error) {
	summary := archiver.Summary{RunID: logctx.RunIDFromContext(ctx)}

	var urls []string

	if phases&phaseDownload != 0 {
		list, err := transfer.LoadList(cfg.ResourceList)
		if err != nil {
			return summary, fmt.Errorf("failed to load resource list: %w", err)
		}

		urls = list
	}

	switch phases {
	case phaseDownload:
		return arch.RunDownload(ctx, urls)
	case phaseUpload:
		return arch.RunUpload(ctx)
	default:
		return arch.Run(ctx, urls)
	}
}

func openLedger(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.LedgerPath == "" {
		return nil, nil
	}

	db, err := sqlite.InitDB(cfg.LedgerPath)
	if err != nil {
		return nil, err
	}

	logctx.LoggerFromContext(ctx).Debug("ledger enabled", "path", cfg.LedgerPath)

	return db, nil
}

// startMetricsServer serves metrics and progress while the run lasts. The
// returned func shuts it down.
func startMetricsServer(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, arch *archiver.Archiver) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}

	logger := logctx.LoggerFromContext(ctx)
	server := telemetry.NewMetricsServer(ctx, cfg.MetricsAddr, tel, arch.Progress)

	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the metrics server", "err", err)

			_ = server.Close()
		}
	}
}

func notify(ctx context.Context, cfg *config.Config, summary archiver.Summary) {
	if cfg.DiscordWebhookURL == "" {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var notif notifier.Notifier = notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)

	if err := notif.Notify(notifyCtx, summary.Message()); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "err", err)
	}
}
