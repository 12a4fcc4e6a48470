package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("S3_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_BUCKET_NAME", "archive")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "", cfg.S3UploadPrefix)
	assert.Equal(t, "downloads", cfg.DownloadDir)
	assert.Equal(t, 3, cfg.UploadConcurrency)
	assert.Equal(t, 300*time.Millisecond, cfg.UploadDispatchDelay)
	assert.Equal(t, ByteSize(5*1024*1024), cfg.UploadBufferThreshold)
	assert.Equal(t, "image/png", cfg.UploadContentType)
	assert.False(t, cfg.UsePathStyle())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_UPLOAD_PREFIX", "images/")
	t.Setenv("AWS_REGION", "eu-central-1")
	t.Setenv("UPLOAD_CONCURRENCY", "8")
	t.Setenv("UPLOAD_BUFFER_THRESHOLD", "1MB")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.UsePathStyle())
	assert.Equal(t, "images/", cfg.S3UploadPrefix)
	assert.Equal(t, "eu-central-1", cfg.AWSRegion)
	assert.Equal(t, 8, cfg.UploadConcurrency)
	assert.Equal(t, ByteSize(1000*1000), cfg.UploadBufferThreshold)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY_ID", "")
	t.Setenv("S3_SECRET_ACCESS_KEY", "")
	t.Setenv("S3_BUCKET_NAME", "archive")

	_, err := LoadConfig()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY"}, verr.Missing)
	assert.Contains(t, err.Error(), "S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			S3AccessKeyID:     "id",
			S3SecretAccessKey: "secret",
			S3BucketName:      "bucket",
			DownloadDir:       "downloads",
			UploadConcurrency: 3,
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantMissing []string
		wantInvalid int
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:        "all credentials missing",
			mutate:      func(c *Config) { c.S3AccessKeyID, c.S3SecretAccessKey, c.S3BucketName = "", " ", "" },
			wantMissing: []string{"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_BUCKET_NAME"},
		},
		{
			name:        "zero concurrency",
			mutate:      func(c *Config) { c.UploadConcurrency = 0 },
			wantInvalid: 1,
		},
		{
			name:        "negative delay and empty dir",
			mutate:      func(c *Config) { c.UploadDispatchDelay = -time.Second; c.DownloadDir = "" },
			wantInvalid: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantMissing == nil && tt.wantInvalid == 0 {
				assert.NoError(t, err)

				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantMissing, verr.Missing)
			assert.Len(t, verr.Invalid, tt.wantInvalid)
		})
	}
}

func TestByteSize_Decode(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.Decode("5MiB"))
	assert.Equal(t, ByteSize(5*1024*1024), b)
	assert.Equal(t, "5.0 MiB", b.String())

	assert.Error(t, b.Decode("lots"))
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARN"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "verbose"}).SlogLevel())
}

func TestLoad_SkipsValidation(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY_ID", "")
	t.Setenv("S3_SECRET_ACCESS_KEY", "")
	t.Setenv("S3_BUCKET_NAME", "")
	t.Setenv("STALE_TEMP_AFTER", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.StaleTempAfter)

	var verr *ValidationError
	require.ErrorAs(t, cfg.Validate(), &verr)
	assert.Len(t, verr.Missing, 3)
}
