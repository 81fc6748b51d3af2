package minio

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siosearch/internal/blob/core"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "b"})
	require.Error(t, err)
	_, err = New(context.Background(), Config{Endpoint: "localhost:9000"})
	require.Error(t, err)
}

func TestKeyMapping(t *testing.T) {
	s := NewStore(nil, "bucket", "/maps/")
	assert.Equal(t, "maps/runs/r1/a.csv", s.key("runs/r1/a.csv"))
	assert.Equal(t, "runs/r1/a.csv", s.name("maps/runs/r1/a.csv"))
	assert.Equal(t, core.DriverMinio, s.Driver())

	bare := NewStore(nil, "bucket", "")
	assert.Equal(t, "a", bare.key("a"))
	assert.Equal(t, "a", bare.name("a"))
}

func TestMapErrorRecognisesMissingKeys(t *testing.T) {
	err := mapError("k", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	require.ErrorIs(t, err, core.ErrNotFound)
	err = mapError("k", errors.New("boom"))
	require.NotErrorIs(t, err, core.ErrNotFound)
}

// TestStoreIntegration runs against a live MinIO when SIOSEARCH_TEST_MINIO_ENDPOINT is set.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("SIOSEARCH_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("SIOSEARCH_TEST_MINIO_ENDPOINT not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := New(ctx, Config{
		Endpoint:     endpoint,
		Bucket:       "siosearch-test",
		Prefix:       "it-" + time.Now().UTC().Format("20060102150405"),
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		CreateBucket: true,
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	info, err := store.Put(ctx, "runs/r1/sio_spw_matches.csv", strings.NewReader("Source\n"), core.PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	_, err = store.Put(ctx, "runs/r1/sio_spw_matches.csv", strings.NewReader("x"), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	_, rc, err := store.Get(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Source\n", string(body))

	list, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "runs/r1/sio_spw_matches.csv", list[0].Key)

	ok, err := store.Delete(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = store.Head(ctx, "runs/r1/sio_spw_matches.csv")
	require.ErrorIs(t, err, core.ErrNotFound)
}
