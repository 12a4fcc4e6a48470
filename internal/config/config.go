package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3BucketName      string `envconfig:"S3_BUCKET_NAME"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3UploadPrefix    string `envconfig:"S3_UPLOAD_PREFIX"`
	AWSRegion         string `envconfig:"AWS_REGION" default:"us-east-1"`

	DownloadDir    string        `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	ResourceList   string        `envconfig:"RESOURCE_LIST" default:"resources.txt"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"0s"`
	StaleTempAfter time.Duration `envconfig:"STALE_TEMP_AFTER" default:"24h"`

	UploadConcurrency     int           `envconfig:"UPLOAD_CONCURRENCY" default:"3"`
	UploadDispatchDelay   time.Duration `envconfig:"UPLOAD_DISPATCH_DELAY" default:"300ms"`
	UploadBufferThreshold ByteSize      `envconfig:"UPLOAD_BUFFER_THRESHOLD" default:"5MiB"`
	UploadContentType     string        `envconfig:"UPLOAD_CONTENT_TYPE" default:"image/png"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	LedgerPath        string `envconfig:"LEDGER_PATH"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	TelemetryEnabled bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`
	MetricsAddr      string `envconfig:"METRICS_ADDR"`
	OTLPEndpoint     string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// ByteSize is a size in bytes that decodes human readable values such as "5MiB".
type ByteSize int64

// Decode implements envconfig.Decoder.
func (b *ByteSize) Decode(value string) error {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", value, err)
	}

	*b = ByteSize(n)

	return nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// ValidationError lists every problem found by Validate, so an operator can
// fix the whole environment in one pass.
type ValidationError struct {
	Missing []string // required variables that are unset or blank
	Invalid []string // variables whose value is out of range
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required environment variables: "+strings.Join(e.Missing, ", "))
	}

	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid environment variables: "+strings.Join(e.Invalid, ", "))
	}

	return strings.Join(parts, "; ")
}

// LoadConfig reads environment variables, populates the Config struct and validates it.
func LoadConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads environment variables without validating them. Maintenance
// commands that never talk to the object store use it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration before any I/O happens.
func (c *Config) Validate() error {
	var verr ValidationError

	required := []struct {
		name  string
		value string
	}{
		{"S3_ACCESS_KEY_ID", c.S3AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", c.S3SecretAccessKey},
		{"S3_BUCKET_NAME", c.S3BucketName},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.Missing = append(verr.Missing, r.name)
		}
	}

	if c.UploadConcurrency < 1 {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("UPLOAD_CONCURRENCY=%d (must be at least 1)", c.UploadConcurrency))
	}

	if c.UploadDispatchDelay < 0 {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("UPLOAD_DISPATCH_DELAY=%s (must not be negative)", c.UploadDispatchDelay))
	}

	if strings.TrimSpace(c.DownloadDir) == "" {
		verr.Invalid = append(verr.Invalid, "DOWNLOAD_DIR (must not be empty)")
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return &verr
	}

	return nil
}

// UsePathStyle reports whether path-style addressing is required, which is the
// case for any custom, usually S3-compatible, endpoint.
func (c *Config) UsePathStyle() bool {
	return c.S3Endpoint != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
