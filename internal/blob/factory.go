package blob

import (
	"context"
	"fmt"
	"strings"

	"siosearch/internal/infra/blob/fs"
	"siosearch/internal/infra/blob/memory"
	"siosearch/internal/infra/blob/minio"
	"siosearch/internal/infra/blob/s3"
)

// Config selects and parameterises a driver. The bucket-style fields are
// shared by the s3 and minio drivers.
type Config struct {
	Driver    Driver
	FSRoot    string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
	Secure    bool
}

// Enabled reports whether a driver was configured.
func (c Config) Enabled() bool { return strings.TrimSpace(string(c.Driver)) != "" }

// Open constructs the configured Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver)))) {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			PathStyle:       cfg.PathStyle,
		})
	case DriverMinio:
		return minio.New(ctx, minio.Config{
			Endpoint:     cfg.Endpoint,
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Secure:       cfg.Secure,
			CreateBucket: true,
		})
	case "":
		return nil, fmt.Errorf("blob driver not configured")
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// NewFilesystem returns a Store rooted at dir.
func NewFilesystem(dir string) (Store, error) { return fs.New(dir) }
