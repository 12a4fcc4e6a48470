// Package web fetches source resources over plain HTTP(S).
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/italolelis/batch_archiver/internal/logctx"
	"github.com/italolelis/batch_archiver/internal/transfer"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Ensure Client implements Fetcher
var _ transfer.Fetcher = (*Client)(nil)

// NewClient returns a fetcher with an instrumented transport. A zero timeout
// means requests are bounded only by the caller's context.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: userAgent,
	}
}

// NewClientWithHTTPClient uses the given client as is.
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Fetch issues a GET for url and hands the body to the caller. Any response
// outside the 2xx range is a *transfer.NetworkError and no body is returned.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &transfer.NetworkError{
			Operation:  "fetch",
			APIMessage: err.Error(),
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Debug("fetch rejected", "status", resp.StatusCode, "body", string(msg))

		return nil, 0, &transfer.NetworkError{
			Operation:  "fetch",
			StatusCode: resp.StatusCode,
			APIMessage: resp.Status,
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}

		return nil, 0, transfer.ErrNoBody
	}

	return resp.Body, resp.ContentLength, nil
}
