package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/staging"
	"github.com/italolelis/batch_archiver/internal/storage"
	"github.com/italolelis/batch_archiver/internal/telemetry"
	"github.com/italolelis/batch_archiver/internal/transfer"
)

const (
	// ContentTypeAuto sniffs each file's content type instead of using a fixed one.
	ContentTypeAuto = "auto"

	DefaultContentType     = "image/png"
	DefaultBufferThreshold = 5 * 1024 * 1024
)

// Options configures where and how files are uploaded.
type Options struct {
	Bucket string
	// Prefix is prepended verbatim to the filename to build the object key.
	Prefix      string
	ContentType string
	// Files smaller than BufferThreshold are read into memory before the put;
	// larger ones are streamed from disk.
	BufferThreshold int64
}

type Uploader struct {
	store   *staging.Store
	objects transfer.ObjectStore
	opts    Options
	tel     *telemetry.Telemetry
	ledger  storage.UploadWriteRepository
	runID   string

	bytesUploaded atomic.Int64
}

func NewUploader(store *staging.Store, objects transfer.ObjectStore, opts Options, tel *telemetry.Telemetry) *Uploader {
	if opts.ContentType == "" {
		opts.ContentType = DefaultContentType
	}

	if opts.BufferThreshold <= 0 {
		opts.BufferThreshold = DefaultBufferThreshold
	}

	return &Uploader{
		store:   store,
		objects: objects,
		opts:    opts,
		tel:     tel,
	}
}

// WithLedger makes the uploader journal every outcome under runID.
func (u *Uploader) WithLedger(ledger storage.UploadWriteRepository, runID string) *Uploader {
	u.ledger = ledger
	u.runID = runID

	return u
}

// Key is the object key a staged file is uploaded under.
func (u *Uploader) Key(name string) string {
	return u.opts.Prefix + name
}

// BytesUploaded is the total size of the files uploaded so far.
func (u *Uploader) BytesUploaded() int64 {
	return u.bytesUploaded.Load()
}

// Tasks turns staged files into scheduler tasks, one per file.
func (u *Uploader) Tasks(files []staging.StagedFile) []Task {
	tasks := make([]Task, 0, len(files))

	for _, f := range files {
		tasks = append(tasks, Task{
			Name: f.Name,
			Run: func(ctx context.Context) error {
				return u.Upload(ctx, f)
			},
		})
	}

	return tasks
}

// Upload puts one staged file into the bucket and removes the local copy once
// the store has accepted it. On any failure the staged file is left in place.
func (u *Uploader) Upload(ctx context.Context, file staging.StagedFile) error {
	key := u.Key(file.Name)
	logger := logctx.LoggerFromContext(ctx).With("filename", file.Name, "key", key)

	current, err := u.store.Stat(file.Name)
	if err != nil {
		logger.Error("failed to upload file", "err", err)
		u.record(ctx, file.Name, key, file.Size, err)

		return fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}

	size := current.Size

	// An upload only succeeds once the staged copy is gone.
	var removeErr error

	err = u.tel.InstrumentUpload(ctx, size, func(ctx context.Context) error {
		if err := u.put(ctx, file.Name, key, size); err != nil {
			return err
		}

		removeErr = u.store.Remove(file.Name)

		return removeErr
	})
	if err != nil {
		u.record(ctx, file.Name, key, size, err)

		if removeErr != nil {
			logger.Error("uploaded file but failed to remove staged copy", "err", err)

			return fmt.Errorf("failed to clean up %s: %w", file.Name, err)
		}

		logger.Error("failed to upload file", "err", err)

		return fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}

	u.bytesUploaded.Add(size)
	u.record(ctx, file.Name, key, size, nil)

	logger.Info("uploaded file", "size", humanize.IBytes(uint64(size)), "bucket", u.opts.Bucket)

	return nil
}

func (u *Uploader) put(ctx context.Context, name, key string, size int64) error {
	req := &transfer.PutRequest{
		Bucket:        u.opts.Bucket,
		Key:           key,
		ContentLength: size,
		ContentType:   u.opts.ContentType,
	}

	if size < u.opts.BufferThreshold {
		data, err := u.store.ReadAll(name)
		if err != nil {
			return err
		}

		req.Body = bytes.NewReader(data)
		req.ContentLength = int64(len(data))

		if req.ContentType == ContentTypeAuto {
			req.ContentType = mimetype.Detect(data).String()
		}

		return u.objects.Put(ctx, req)
	}

	f, err := u.store.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if req.ContentType == ContentTypeAuto {
		mtype, err := mimetype.DetectReader(f)
		if err != nil {
			return fmt.Errorf("failed to detect content type of %s: %w", name, err)
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind %s: %w", name, err)
		}

		req.ContentType = mtype.String()
	}

	req.Body = f

	return u.objects.Put(ctx, req)
}

func (u *Uploader) record(ctx context.Context, name, key string, size int64, uploadErr error) {
	if u.ledger == nil {
		return
	}

	record := storage.UploadRecord{
		RunID:      u.runID,
		Filename:   name,
		Key:        key,
		Size:       size,
		Status:     storage.StatusUploaded,
		RecordedAt: time.Now(),
	}

	if uploadErr != nil {
		record.Status = storage.StatusFailed
		record.Error = uploadErr.Error()
	}

	if err := u.ledger.RecordUpload(ctx, record); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to write ledger entry", "filename", name, "err", err)
	}
}
