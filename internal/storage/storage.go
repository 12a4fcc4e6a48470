package storage

import (
	"context"
	"time"
)

const (
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
)

// UploadRecord is one upload attempt as written to the ledger.
type UploadRecord struct {
	RunID      string
	Filename   string
	Key        string
	Size       int64
	Status     string
	Error      string
	RecordedAt time.Time
}

// UploadReadRepository reads the ledger. Nothing in an archive run reads it:
// the staging directory alone decides what gets uploaded.
type UploadReadRepository interface {
	GetUploads(ctx context.Context, runID string) ([]UploadRecord, error)
	GetRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

type UploadWriteRepository interface {
	RecordUpload(ctx context.Context, record UploadRecord) error
}

// RunSummary aggregates the ledger rows of one run.
type RunSummary struct {
	RunID     string
	Uploaded  int
	Failed    int
	Bytes     int64
	StartedAt time.Time
}
