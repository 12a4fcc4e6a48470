package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/italolelis/batch_archiver/internal/storage"
)

type UploadReadRepository struct {
	db *sql.DB
}

func NewUploadReadRepository(dbConn *sql.DB) *UploadReadRepository {
	return &UploadReadRepository{db: dbConn}
}

// GetUploads returns the records of one run in the order they were written.
func (r *UploadReadRepository) GetUploads(ctx context.Context, runID string) ([]storage.UploadRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, filename, object_key, size, status, error, recorded_at
		FROM uploads
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []storage.UploadRecord

	for rows.Next() {
		var (
			record     storage.UploadRecord
			errText    sql.NullString
			recordedAt string
		)

		if err := rows.Scan(&record.RunID, &record.Filename, &record.Key, &record.Size, &record.Status, &errText, &recordedAt); err != nil {
			return nil, err
		}

		record.Error = errText.String

		if record.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}

		uploads = append(uploads, record)
	}

	return uploads, rows.Err()
}

// GetRuns returns the most recent runs first, up to limit.
func (r *UploadReadRepository) GetRuns(ctx context.Context, limit int) ([]storage.RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			run_id,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN size ELSE 0 END),
			MIN(recorded_at)
		FROM uploads
		GROUP BY run_id
		ORDER BY MIN(recorded_at) DESC
		LIMIT ?`,
		storage.StatusUploaded, storage.StatusFailed, storage.StatusUploaded, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []storage.RunSummary

	for rows.Next() {
		var (
			run       storage.RunSummary
			startedAt string
		)

		if err := rows.Scan(&run.RunID, &run.Uploaded, &run.Failed, &run.Bytes, &startedAt); err != nil {
			return nil, err
		}

		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
