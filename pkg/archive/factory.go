package archive

import (
	"context"
	"fmt"
	"os"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendNone Backend = "none"
	BackendFS   Backend = "fs"
	BackendS3   Backend = "s3"
	BackendGCS  Backend = "gcs"
)

// Config selects and configures the archive backend.
type Config struct {
	Backend Backend
	Dir     string
	S3      S3Config
	GCS     GCSSettings
}

// GCSSettings is kept outside the gcp build so configuration parses in
// every build.
type GCSSettings struct {
	Bucket string
	Prefix string
}

// ConfigFromEnv reads:
//   - ARCHIVE_STORAGE_TYPE: "fs" (default), "s3", "gcs" or "none"
//   - ARCHIVE_DIR: directory for fs (default "data/reports")
//   - ARCHIVE_S3_BUCKET, ARCHIVE_S3_REGION (or AWS_REGION), ARCHIVE_S3_ENDPOINT, ARCHIVE_S3_PREFIX
//   - ARCHIVE_GCS_BUCKET, ARCHIVE_GCS_PREFIX
func ConfigFromEnv() Config {
	region := os.Getenv("ARCHIVE_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	cfg := Config{
		Backend: Backend(os.Getenv("ARCHIVE_STORAGE_TYPE")),
		Dir:     os.Getenv("ARCHIVE_DIR"),
		S3: S3Config{
			Bucket:   os.Getenv("ARCHIVE_S3_BUCKET"),
			Region:   region,
			Endpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
			Prefix:   os.Getenv("ARCHIVE_S3_PREFIX"),
		},
		GCS: GCSSettings{
			Bucket: os.Getenv("ARCHIVE_GCS_BUCKET"),
			Prefix: os.Getenv("ARCHIVE_GCS_PREFIX"),
		},
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendFS
	}
	if cfg.Dir == "" {
		cfg.Dir = "data/reports"
	}
	return cfg
}

// NewStore builds the configured backend. BackendNone yields a nil Store.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendFS, "":
		return NewFileStore(cfg.Dir)
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	case BackendGCS:
		return newGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("archive: unsupported storage type %q", cfg.Backend)
	}
}

// NewStoreFromEnv is NewStore(ctx, ConfigFromEnv()).
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	return NewStore(ctx, ConfigFromEnv())
}
