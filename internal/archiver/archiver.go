// Package archiver runs the two phases of an archive run: stage every source
// resource locally, then upload the staging directory.
package archiver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/italolelis/batch_archiver/internal/downloader"
	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/staging"
	"github.com/italolelis/batch_archiver/internal/uploader"
)

const (
	PhaseIdle     = "idle"
	PhaseDownload = "download"
	PhaseUpload   = "upload"
	PhaseDone     = "done"
)

type Options struct {
	Concurrency   int
	DispatchDelay time.Duration
}

// Summary is the outcome of a run.
type Summary struct {
	RunID         string
	Download      downloader.Stats
	Upload        uploader.Stats
	BytesUploaded int64
	Duration      time.Duration
}

// Progress is what the /progress endpoint reports.
type Progress struct {
	Phase  string             `json:"phase"`
	Upload *uploader.Snapshot `json:"upload,omitempty"`
}

type Archiver struct {
	store      *staging.Store
	downloader *downloader.Downloader
	uploader   *uploader.Uploader
	opts       Options

	phase     atomic.Value
	mu        sync.Mutex
	scheduler *uploader.Scheduler
}

func New(store *staging.Store, dl *downloader.Downloader, up *uploader.Uploader, opts Options) *Archiver {
	a := &Archiver{
		store:      store,
		downloader: dl,
		uploader:   up,
		opts:       opts,
	}

	a.phase.Store(PhaseIdle)

	return a
}

// Run downloads urls and then uploads everything staged, including files left
// over from earlier runs. Per-file failures are reflected in the summary only;
// the returned error is non-nil when ctx was cancelled.
func (a *Archiver) Run(ctx context.Context, urls []string) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: logctx.RunIDFromContext(ctx)}

	dlStats, err := a.Download(ctx, urls)
	summary.Download = dlStats

	if err != nil {
		summary.Duration = time.Since(start)

		return summary, err
	}

	upStats, err := a.Upload(ctx)
	summary.Upload = upStats
	summary.BytesUploaded = a.uploader.BytesUploaded()
	summary.Duration = time.Since(start)

	return summary, err
}

// RunDownload runs only the download phase and summarises it.
func (a *Archiver) RunDownload(ctx context.Context, urls []string) (Summary, error) {
	start := time.Now()

	stats, err := a.Download(ctx, urls)

	return Summary{
		RunID:    logctx.RunIDFromContext(ctx),
		Download: stats,
		Duration: time.Since(start),
	}, err
}

// RunUpload runs only the upload phase over what is already staged and
// summarises it.
func (a *Archiver) RunUpload(ctx context.Context) (Summary, error) {
	start := time.Now()

	stats, err := a.Upload(ctx)

	return Summary{
		RunID:         logctx.RunIDFromContext(ctx),
		Upload:        stats,
		BytesUploaded: a.uploader.BytesUploaded(),
		Duration:      time.Since(start),
	}, err
}

// Download runs the download phase.
func (a *Archiver) Download(ctx context.Context, urls []string) (downloader.Stats, error) {
	logger := logctx.LoggerFromContext(ctx)

	a.phase.Store(PhaseDownload)

	logger.Info("download phase started", "urls", len(urls))

	stats, err := a.downloader.DownloadAll(ctx, urls)

	logger.Info("download phase finished",
		"downloaded", stats.Downloaded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"invalid", stats.Invalid,
		"size", humanize.IBytes(uint64(stats.Bytes)),
	)

	if err != nil {
		return stats, fmt.Errorf("download phase interrupted: %w", err)
	}

	return stats, nil
}

// Upload runs the upload phase over the current content of the staging
// directory.
func (a *Archiver) Upload(ctx context.Context) (uploader.Stats, error) {
	logger := logctx.LoggerFromContext(ctx)

	a.phase.Store(PhaseUpload)
	defer a.phase.Store(PhaseDone)

	files, err := a.store.List()
	if err != nil {
		return uploader.Stats{}, fmt.Errorf("failed to list staged files: %w", err)
	}

	if len(files) == 0 {
		logger.Info("nothing staged, skipping upload phase")

		return uploader.Stats{}, nil
	}

	scheduler := uploader.NewScheduler(a.opts.Concurrency, a.opts.DispatchDelay, a.uploader.Tasks(files))

	a.mu.Lock()
	a.scheduler = scheduler
	a.mu.Unlock()

	stats := scheduler.Run(ctx)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("upload phase interrupted: %w", err)
	}

	return stats, nil
}

// Progress is safe to call while a run is in flight.
func (a *Archiver) Progress() any {
	p := Progress{Phase: a.phase.Load().(string)}

	a.mu.Lock()
	scheduler := a.scheduler
	a.mu.Unlock()

	if scheduler != nil {
		snap := scheduler.Snapshot()
		p.Upload = &snap
	}

	return p
}
