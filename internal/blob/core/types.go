// Package core defines the object storage contract shared by the report
// publisher and the product cache.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores objects under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 talks to AWS S3 (or any endpoint speaking its API) via aws-sdk-go-v2.
	DriverS3 Driver = "s3"
	// DriverMinio talks to a MinIO deployment via minio-go.
	DriverMinio Driver = "minio"
	// DriverMemory keeps objects in process memory (tests).
	DriverMemory Driver = "memory"
)

// Drivers lists every supported driver in display order.
func Drivers() []Driver {
	return []Driver{DriverFilesystem, DriverS3, DriverMinio, DriverMemory}
}

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// Replace overwrites an existing object instead of failing with ErrExists.
	Replace bool
}

// SignedURLOptions holds options for generating a shareable URL.
type SignedURLOptions struct {
	Expiry time.Duration // default 15m
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the S3-like subset used for report artifacts and cached products.
type Store interface {
	// Put writes key. Without PutOptions.Replace an existing key yields ErrExists.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get returns ErrNotFound (wrapped) when key is missing.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns ErrNotFound (wrapped) when key is missing.
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned when an optional capability is not available.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrNotFound marks a missing key.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists marks a create-only Put against an existing key.
	ErrExists = errors.New("blob: already exists")
)

// DefaultExpiry applies when SignedURLOptions.Expiry is unset.
const DefaultExpiry = 15 * time.Minute

// CloneMetadata copies user metadata so callers cannot alias stored maps.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
