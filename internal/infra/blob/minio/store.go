// Package minio implements the blob Store on a MinIO deployment using minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"siosearch/internal/blob/core"
)

// Config describes how to reach the MinIO bucket.
type Config struct {
	Endpoint  string // host:port, no scheme
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
	// CreateBucket makes the bucket on first use when it does not exist.
	CreateBucket bool
}

// Store implements core.Store for MinIO.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New dials the endpoint and optionally ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if cfg.CreateBucket {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("make bucket %s: %w", cfg.Bucket, err)
			}
		}
	}
	return NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

// NewStore wraps an existing client. rootPrefix is prepended to every key.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(rootPrefix, "/")}
}

func (s *Store) Driver() core.Driver { return core.DriverMinio }

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *Store) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

type lener interface{ Len() int }

func (s *Store) Put(ctx context.Context, name string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if !opts.Replace {
		_, err := s.Head(ctx, name)
		if err == nil {
			return core.Info{}, fmt.Errorf("put %s: %w", name, core.ErrExists)
		}
		if !errors.Is(err, core.ErrNotFound) {
			return core.Info{}, err
		}
	}
	size := int64(-1)
	if l, ok := r.(lener); ok {
		size = int64(l.Len())
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: core.CloneMetadata(opts.Metadata),
	})
	if err != nil {
		return core.Info{}, fmt.Errorf("put %s: %w", name, err)
	}
	return s.Head(ctx, name)
}

func (s *Store) Get(ctx context.Context, name string) (core.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, name)
	if err != nil {
		return core.Info{}, nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return core.Info{}, nil, mapError(name, err)
	}
	return info, obj, nil
}

func (s *Store) Head(ctx context.Context, name string) (core.Info, error) {
	st, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err != nil {
		return core.Info{}, mapError(name, err)
	}
	return s.info(name, st), nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	if _, err := s.Head(ctx, name); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}); err != nil {
		return false, mapError(name, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	fullPrefix := prefix
	if s.prefix != "" {
		fullPrefix = s.prefix + "/" + prefix
	}
	var out []core.Info
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: fullPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if n := s.name(obj.Key); n != "" {
			out = append(out, s.info(n, obj))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) PresignURL(ctx context.Context, name string, opts core.SignedURLOptions) (string, error) {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = core.DefaultExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, s.key(name), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	return u.String(), nil
}

func (s *Store) info(name string, obj minio.ObjectInfo) core.Info {
	var md map[string]string
	if len(obj.UserMetadata) > 0 {
		md = make(map[string]string, len(obj.UserMetadata))
		for k, v := range obj.UserMetadata {
			md[strings.ToLower(k)] = v
		}
	}
	return core.Info{
		Key:          name,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		ETag:         strings.Trim(obj.ETag, `"`),
		Metadata:     md,
		LastModified: obj.LastModified.UTC(),
	}
}

func mapError(name string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%s: %w", name, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", name, err)
}
