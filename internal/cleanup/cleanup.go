package cleanup

import (
	"context"
	"time"

	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/staging"
)

// DeleteStaleTempFiles removes in-flight staging files older than maxAge. They
// are left behind when a previous run was interrupted mid-download and are
// never uploaded. Returns the number of files removed.
func DeleteStaleTempFiles(ctx context.Context, store *staging.Store, maxAge time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	cutoff := time.Now().Add(-maxAge)

	temps, err := store.TempFiles()
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, f := range temps {
		if f.ModTime.After(cutoff) {
			continue
		}

		if err := store.Remove(f.Name); err != nil {
			logger.Error("failed to delete stale temp file", "file", f.Path, "err", err)

			continue
		}

		removed++

		logger.Info("deleted stale temp file", "file", f.Path, "age", time.Since(f.ModTime).Round(time.Second).String())
	}

	return removed, nil
}
