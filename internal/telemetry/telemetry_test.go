package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetry_IsNoop(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	called := 0
	fn := func(context.Context) error { called++; return nil }

	require.NoError(t, tel.InstrumentOperation(ctx, "op", "test", fn))
	require.NoError(t, tel.InstrumentClientOperation(ctx, "s3", "put_object", fn))
	require.NoError(t, tel.InstrumentDBOperation(ctx, "record_upload", fn))
	require.NoError(t, tel.InstrumentUpload(ctx, 10, fn))
	assert.Equal(t, 4, called)

	tel.RecordDownload(ctx, "downloaded", 10, time.Second)
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestNilTelemetry_IsNoop(t *testing.T) {
	var tel *Telemetry

	wantErr := errors.New("boom")
	err := tel.InstrumentClientOperation(context.Background(), "web", "fetch", func(context.Context) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Nil(t, tel.Registry())
}

func TestEnabledTelemetry_ExposesMetrics(t *testing.T) {
	ctx := context.Background()

	tel, err := New(ctx, Config{Enabled: true, ServiceName: "batch_archiver-test"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	require.NoError(t, tel.InstrumentUpload(ctx, 2048, func(context.Context) error { return nil }))
	_ = tel.InstrumentUpload(ctx, 10, func(context.Context) error { return errors.New("denied") })
	tel.RecordDownload(ctx, "skipped", 0, 0)

	families, err := tel.Registry().Gather()
	require.NoError(t, err)

	var uploads, downloads bool

	for _, f := range families {
		name := f.GetName()
		uploads = uploads || strings.HasPrefix(name, "uploads_")
		downloads = downloads || strings.HasPrefix(name, "downloads_")
	}

	assert.True(t, uploads, "uploads_total should be exported")
	assert.True(t, downloads, "downloads_total should be exported")
}

func TestMetricsServer_Routes(t *testing.T) {
	srv := NewMetricsServer(context.Background(), ":0", &Telemetry{}, func() any {
		return map[string]int{"success": 2, "failed": 0}
	})

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	resp, err = http.Get(ts.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	var progress map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	assert.Equal(t, 2, progress["success"])

	// disabled telemetry has no registry
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID_ReusesUpstream(t *testing.T) {
	var seen string

	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", strings.NewReader(""))
	req.Header.Set(RequestIDHeader, "upstream-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-1", seen)
	assert.Equal(t, "upstream-1", rec.Header().Get(RequestIDHeader))
}

func TestRequestID_ReplacesUnusableUpstream(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
	}{
		{name: "missing", upstream: ""},
		{name: "whitespace", upstream: "a b"},
		{name: "too long", upstream: strings.Repeat("x", maxRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string

			h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.upstream != "" {
				req.Header.Set(RequestIDHeader, tt.upstream)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.NotEmpty(t, seen)
			assert.NotEqual(t, tt.upstream, seen)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		})
	}
}
