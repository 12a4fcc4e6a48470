package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italolelis/batch_archiver/internal/transfer"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "batch_archiver-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("fake png bytes"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, "batch_archiver-test")

	body, size, err := client.Fetch(context.Background(), server.URL+"/img?id=1&name=a.png")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)

	assert.Equal(t, "fake png bytes", string(data))
	assert.EqualValues(t, len("fake png bytes"), size)
}

func TestClient_FetchStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "not modified", status: http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			body, _, err := NewClient(0, "").Fetch(context.Background(), server.URL)
			require.Error(t, err)
			assert.Nil(t, body)

			var netErr *transfer.NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, tt.status, netErr.StatusCode)
			assert.Equal(t, "fetch", netErr.Operation)
		})
	}
}

func TestClient_FetchTransportError(t *testing.T) {
	cause := errors.New("connection refused")

	client := NewClientWithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, cause
		}),
	})

	_, _, err := client.Fetch(context.Background(), "http://example.invalid/x&name=a.png")
	require.Error(t, err)

	var netErr *transfer.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
	assert.ErrorIs(t, err, cause)
}

func TestClient_FetchNoBody(t *testing.T) {
	client := NewClientWithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     http.Header{},
				Body:       http.NoBody,
				Request:    req,
			}, nil
		}),
	})

	body, _, err := client.Fetch(context.Background(), "http://example.invalid/x&name=a.png")
	require.ErrorIs(t, err, transfer.ErrNoBody)
	assert.Nil(t, body)
}

func TestClient_FetchHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := NewClient(0, "").Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "context deadline exceeded"))
}
