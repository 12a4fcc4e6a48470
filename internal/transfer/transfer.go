package transfer

import (
	"context"
	"io"
)

// Fetcher retrieves the body of a remote resource. Callers must close the body.
// size is -1 when the remote end did not announce a length.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body io.ReadCloser, size int64, err error)
}

// ObjectStore is the black-box transport to long-term object storage.
type ObjectStore interface {
	Put(ctx context.Context, req *PutRequest) error
}

// PutRequest describes a single object upload.
type PutRequest struct {
	Bucket        string
	Key           string
	Body          io.Reader
	ContentLength int64
	ContentType   string
}
