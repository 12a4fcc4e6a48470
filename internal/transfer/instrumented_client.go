package transfer

import (
	"context"
	"io"

	"github.com/italolelis/batch_archiver/internal/telemetry"
)

// InstrumentedFetcher wraps Fetcher with telemetry.
type InstrumentedFetcher struct {
	fetcher    Fetcher
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedFetcher creates a new instrumented fetcher.
func NewInstrumentedFetcher(fetcher Fetcher, tel *telemetry.Telemetry, clientType string) *InstrumentedFetcher {
	return &InstrumentedFetcher{
		fetcher:    fetcher,
		telemetry:  tel,
		clientType: clientType,
	}
}

// Fetch fetches a resource with telemetry.
func (c *InstrumentedFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	var (
		body io.ReadCloser
		size int64
		err  error
	)

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "fetch", func(ctx context.Context) error {
		body, size, err = c.fetcher.Fetch(ctx, url)

		return err
	})

	if instrumentedErr != nil {
		return nil, 0, instrumentedErr
	}

	return body, size, nil
}

// InstrumentedObjectStore wraps ObjectStore with telemetry.
type InstrumentedObjectStore struct {
	store      ObjectStore
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedObjectStore creates a new instrumented object store.
func NewInstrumentedObjectStore(store ObjectStore, tel *telemetry.Telemetry, clientType string) *InstrumentedObjectStore {
	return &InstrumentedObjectStore{
		store:      store,
		telemetry:  tel,
		clientType: clientType,
	}
}

// Put uploads an object with telemetry.
func (c *InstrumentedObjectStore) Put(ctx context.Context, req *PutRequest) error {
	return c.telemetry.InstrumentClientOperation(ctx, c.clientType, "put_object", func(ctx context.Context) error {
		return c.store.Put(ctx, req)
	})
}
