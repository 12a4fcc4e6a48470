package telemetry

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ProgressFunc returns a JSON-serialisable snapshot of the running job.
type ProgressFunc func() any

// NewMetricsServer builds the HTTP server exposing /metrics, /healthz and
// /progress while the batch job runs.
func NewMetricsServer(ctx context.Context, addr string, tel *Telemetry, progress ProgressFunc) *http.Server {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(HTTPLogging)

	r.Method(http.MethodGet, "/metrics", tel.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		var snapshot any = struct{}{}
		if progress != nil {
			snapshot = progress()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
