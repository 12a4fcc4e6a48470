package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	meter          metric.Meter
	registry       *promclient.Registry

	// Business Metrics
	downloadsTotal        metric.Int64Counter
	downloadDuration      metric.Float64Histogram
	downloadBytesTotal    metric.Int64Counter
	uploadsTotal          metric.Int64Counter
	uploadsActive         metric.Int64UpDownCounter
	uploadDuration        metric.Float64Histogram
	uploadBytesTotal      metric.Int64Counter
	clientOperationsTotal metric.Int64Counter
	clientErrors          metric.Int64Counter
	dbOperationsTotal     metric.Int64Counter
	dbOperationDuration   metric.Float64Histogram
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint, when set, pushes metrics over OTLP/gRPC in addition to the
	// Prometheus registry. Accepts "host:port" (insecure) or a full URL.
	OTLPEndpoint string
	// PushInterval is the OTLP export interval. Defaults to 15s.
	PushInterval time.Duration
}

// New creates a new telemetry instance. A disabled instance is valid and every
// method on it is a no-op.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	registry := promclient.NewRegistry()

	// Create Prometheus exporter
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	readers := []sdkmetric.Option{sdkmetric.WithReader(exporter)}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := newOTLPExporter(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}

		interval := cfg.PushInterval
		if interval <= 0 {
			interval = 15 * time.Second
		}

		readers = append(readers, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(interval)),
		))
	}

	meterProvider := sdkmetric.NewMeterProvider(readers...)
	tracerProvider := sdktrace.NewTracerProvider()

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	t := &Telemetry{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:          meterProvider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
		registry:       registry,
	}

	// Initialize all metrics
	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Go runtime metrics (memory, goroutines, GC)
	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	return t, nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (*otlpmetricgrpc.Exporter, error) {
	if strings.Contains(endpoint, "://") {
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpoint))
	}

	return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
}

// RecordDownload records the outcome of one resource in the download phase.
// status is one of "downloaded", "skipped", "failed", "invalid".
func (t *Telemetry) RecordDownload(ctx context.Context, status string, bytes int64, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	if t.downloadsTotal != nil {
		t.downloadsTotal.Add(ctx, 1, attrs)
	}

	if t.downloadDuration != nil && duration > 0 {
		t.downloadDuration.Record(ctx, duration.Seconds(), attrs)
	}

	if t.downloadBytesTotal != nil && bytes > 0 {
		t.downloadBytesTotal.Add(ctx, bytes)
	}
}

// RecordUpload records upload metrics.
func (t *Telemetry) RecordUpload(ctx context.Context, status string, bytes int64, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	if t.uploadsTotal != nil {
		t.uploadsTotal.Add(ctx, 1, attrs)
	}

	if t.uploadDuration != nil {
		t.uploadDuration.Record(ctx, duration.Seconds(), attrs)
	}

	if status == "success" && t.uploadBytesTotal != nil {
		t.uploadBytesTotal.Add(ctx, bytes)
	}
}

// IncrementActiveUploads increments active uploads counter.
func (t *Telemetry) IncrementActiveUploads(ctx context.Context) {
	if t != nil && t.uploadsActive != nil {
		t.uploadsActive.Add(ctx, 1)
	}
}

// DecrementActiveUploads decrements active uploads counter.
func (t *Telemetry) DecrementActiveUploads(ctx context.Context) {
	if t != nil && t.uploadsActive != nil {
		t.uploadsActive.Add(ctx, -1)
	}
}

// RecordClientOperation records source and object store client operation metrics.
func (t *Telemetry) RecordClientOperation(ctx context.Context, client, operation, status string) {
	if t == nil {
		return
	}

	if t.clientOperationsTotal != nil {
		t.clientOperationsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("client", client),
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}

	if status == "error" && t.clientErrors != nil {
		t.clientErrors.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("client", client),
				attribute.String("operation", operation),
			),
		)
	}
}

// RecordDBOperation records database operation metrics.
func (t *Telemetry) RecordDBOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	if t.dbOperationsTotal != nil {
		t.dbOperationsTotal.Add(ctx, 1, attrs)
	}

	if t.dbOperationDuration != nil {
		t.dbOperationDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// Handler returns the HTTP handler for metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.registry == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Registry exposes the Prometheus registry backing the metrics endpoint.
func (t *Telemetry) Registry() *promclient.Registry {
	if t == nil {
		return nil
	}

	return t.registry
}

// Shutdown flushes pending exports and releases the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}

	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// initializeMetrics creates all metric instruments.
func (t *Telemetry) initializeMetrics() error {
	if err := t.initializeTransferMetrics(); err != nil {
		return err
	}

	return t.initializeClientMetrics()
}

func (t *Telemetry) initializeTransferMetrics() error {
	var err error

	t.downloadsTotal, err = t.meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total number of resources processed by the download phase"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	t.downloadDuration, err = t.meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Download duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create download_duration histogram: %w", err)
	}

	t.downloadBytesTotal, err = t.meter.Int64Counter(
		"download_bytes_total",
		metric.WithDescription("Total number of bytes staged"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create download_bytes_total counter: %w", err)
	}

	t.uploadsTotal, err = t.meter.Int64Counter(
		"uploads_total",
		metric.WithDescription("Total number of completed upload tasks"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create uploads_total counter: %w", err)
	}

	t.uploadsActive, err = t.meter.Int64UpDownCounter(
		"uploads_active",
		metric.WithDescription("Number of uploads currently in flight"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create uploads_active counter: %w", err)
	}

	t.uploadDuration, err = t.meter.Float64Histogram(
		"upload_duration_seconds",
		metric.WithDescription("Upload duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upload_duration histogram: %w", err)
	}

	t.uploadBytesTotal, err = t.meter.Int64Counter(
		"upload_bytes_total",
		metric.WithDescription("Total number of bytes uploaded to the object store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upload_bytes_total counter: %w", err)
	}

	return nil
}

func (t *Telemetry) initializeClientMetrics() error {
	var err error

	t.clientOperationsTotal, err = t.meter.Int64Counter(
		"client_operations_total",
		metric.WithDescription("Total number of source and object store client operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_operations_total counter: %w", err)
	}

	t.clientErrors, err = t.meter.Int64Counter(
		"client_errors_total",
		metric.WithDescription("Total number of client errors"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_errors counter: %w", err)
	}

	t.dbOperationsTotal, err = t.meter.Int64Counter(
		"db_operations_total",
		metric.WithDescription("Total number of ledger database operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operations_total counter: %w", err)
	}

	t.dbOperationDuration, err = t.meter.Float64Histogram(
		"db_operation_duration_seconds",
		metric.WithDescription("Ledger database operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operation_duration histogram: %w", err)
	}

	return nil
}
