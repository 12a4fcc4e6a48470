package sqlite

import (
	"context"
	"database/sql"

	"github.com/italolelis/batch_archiver/internal/storage"
	"github.com/italolelis/batch_archiver/internal/telemetry"
)

// InstrumentedUploadRepository wraps the upload repositories with telemetry.
type InstrumentedUploadRepository struct {
	read      *UploadReadRepository
	write     *UploadWriteRepository
	telemetry *telemetry.Telemetry
}

var (
	_ storage.UploadReadRepository  = (*InstrumentedUploadRepository)(nil)
	_ storage.UploadWriteRepository = (*InstrumentedUploadRepository)(nil)
)

// NewInstrumentedUploadRepository creates a new instrumented upload repository.
func NewInstrumentedUploadRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedUploadRepository {
	return &InstrumentedUploadRepository{
		read:      NewUploadReadRepository(dbConn),
		write:     NewUploadWriteRepository(dbConn),
		telemetry: tel,
	}
}

// RecordUpload writes an upload record with telemetry.
func (r *InstrumentedUploadRepository) RecordUpload(ctx context.Context, record storage.UploadRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_upload", func(ctx context.Context) error {
		return r.write.RecordUpload(ctx, record)
	})
}

// GetUploads retrieves the uploads of a run with telemetry.
func (r *InstrumentedUploadRepository) GetUploads(ctx context.Context, runID string) ([]storage.UploadRecord, error) {
	var result []storage.UploadRecord

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_uploads", func(ctx context.Context) error {
		result, err = r.read.GetUploads(ctx, runID)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// GetRuns retrieves recent run summaries with telemetry.
func (r *InstrumentedUploadRepository) GetRuns(ctx context.Context, limit int) ([]storage.RunSummary, error) {
	var result []storage.RunSummary

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_runs", func(ctx context.Context) error {
		result, err = r.read.GetRuns(ctx, limit)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
