package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/batch_archiver/internal/storage"
)

// UploadWriteRepository implements storage.UploadWriteRepository
// and stores upload records in SQLite.
type UploadWriteRepository struct {
	db *sql.DB
}

func NewUploadWriteRepository(db *sql.DB) *UploadWriteRepository {
	return &UploadWriteRepository{db: db}
}

func (r *UploadWriteRepository) RecordUpload(ctx context.Context, record storage.UploadRecord) error {
	recordedAt := record.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	var errText sql.NullString
	if record.Error != "" {
		errText = sql.NullString{String: record.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO uploads (run_id, filename, object_key, size, status, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.RunID, record.Filename, record.Key, record.Size, record.Status, errText, recordedAt.UTC().Format(timeLayout),
	)

	return err
}
