package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/italolelis/batch_archiver/internal/downloader/progress"
	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/staging"
	"github.com/italolelis/batch_archiver/internal/telemetry"
	"github.com/italolelis/batch_archiver/internal/transfer"
)

const progressInterval = 5 * 1024 * 1024 // 5MB

// Stats summarises one download phase.
type Stats struct {
	Downloaded int
	Skipped    int
	Failed     int
	Invalid    int
	Bytes      int64
}

// Total is the number of URLs the phase looked at.
func (s Stats) Total() int {
	return s.Downloaded + s.Skipped + s.Failed + s.Invalid
}

type Downloader struct {
	store   *staging.Store
	fetcher transfer.Fetcher
	tel     *telemetry.Telemetry
}

func NewDownloader(store *staging.Store, fetcher transfer.Fetcher, tel *telemetry.Telemetry) *Downloader {
	return &Downloader{
		store:   store,
		fetcher: fetcher,
		tel:     tel,
	}
}

// DownloadAll stages every URL in order, one at a time. Failures of a single
// URL are logged and counted and never stop the batch. The only error
// returned is the context's, when the run is cancelled midway.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string) (Stats, error) {
	logger := logctx.LoggerFromContext(ctx)

	var stats Stats

	for _, rawURL := range urls {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		res, err := transfer.ParseResource(rawURL)
		if err != nil {
			logger.Warn("skipping invalid resource", "url", rawURL, "err", err)
			d.tel.RecordDownload(ctx, "invalid", 0, 0)

			stats.Invalid++

			continue
		}

		staged, err := d.store.Exists(res.Filename)
		if err != nil {
			logger.Error("failed to check staging directory", "filename", res.Filename, "err", err)
			d.tel.RecordDownload(ctx, "failed", 0, 0)

			stats.Failed++

			continue
		}

		if staged {
			logger.Info("skipping, already staged", "filename", res.Filename)
			d.tel.RecordDownload(ctx, "skipped", 0, 0)

			stats.Skipped++

			continue
		}

		start := time.Now()

		n, err := d.Download(ctx, res)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return stats, ctx.Err()
			}

			logger.Error("failed to download resource", "filename", res.Filename, "url", res.URL, "err", err)
			d.tel.RecordDownload(ctx, "failed", n, time.Since(start))

			stats.Failed++

			continue
		}

		d.tel.RecordDownload(ctx, "downloaded", n, time.Since(start))

		stats.Downloaded++
		stats.Bytes += n
	}

	return stats, nil
}

// Download fetches a single resource into the staging directory. Nothing is
// left under the resource's filename when it fails.
func (d *Downloader) Download(ctx context.Context, res transfer.Resource) (int64, error) {
	logger := logctx.LoggerFromContext(ctx).With("filename", res.Filename)

	body, size, err := d.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch resource: %w", err)
	}
	defer body.Close()

	if size > 0 {
		logger.Debug("downloading file", "file_size", humanize.IBytes(uint64(size)))
	}

	pr := progress.NewReader(body, size, progressInterval, func(read, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"downloaded", humanize.IBytes(uint64(read)),
				"total", humanize.IBytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(read)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "downloaded", humanize.IBytes(uint64(read)))
		}
	})

	n, err := d.store.Write(res.Filename, pr)
	if err != nil {
		return n, fmt.Errorf("failed to stage file: %w", err)
	}

	logger.Info("downloaded and staged file", "size", humanize.IBytes(uint64(n)))

	return n, nil
}
