package memory

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siosearch/internal/blob/core"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Put(ctx, "runs/a/sio_mous_summary.csv", strings.NewReader("MOUS_ID\n"), core.PutOptions{Metadata: map[string]string{"a": "1"}})
	require.NoError(t, err)
	_, err = s.Put(ctx, "runs/a/sio_mous_summary.csv", strings.NewReader("other"), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	info, rc, err := s.Get(ctx, "runs/a/sio_mous_summary.csv")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "MOUS_ID\n", string(b))
	assert.Equal(t, int64(8), info.Size)

	// Returned metadata must not alias the stored map.
	info.Metadata["a"] = "mutated"
	head, err := s.Head(ctx, "runs/a/sio_mous_summary.csv")
	require.NoError(t, err)
	assert.Equal(t, "1", head.Metadata["a"])

	_, err = s.Put(ctx, "runs/a/sio_mous_summary.csv", strings.NewReader("v2"), core.PutOptions{Replace: true})
	require.NoError(t, err)
	head, err = s.Head(ctx, "runs/a/sio_mous_summary.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), head.Size)

	ok, err := s.Delete(ctx, "runs/a/sio_mous_summary.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.Head(ctx, "runs/a/sio_mous_summary.csv")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.PresignURL(ctx, "x", core.SignedURLOptions{})
	require.ErrorIs(t, err, core.ErrUnsupported)
}

func TestMemoryListOrderedByKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"p/c", "p/a", "q/z", "p/b"} {
		_, err := s.Put(ctx, k, strings.NewReader(k), core.PutOptions{})
		require.NoError(t, err)
	}
	list, err := s.List(ctx, "p/")
	require.NoError(t, err)
	keys := make([]string, 0, len(list))
	for _, inf := range list {
		keys = append(keys, inf.Key)
	}
	assert.Equal(t, []string{"p/a", "p/b", "p/c"}, keys)
}

func TestMemoryConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Put(ctx, "shared", strings.NewReader("x"), core.PutOptions{})
		}(i)
	}
	wg.Wait()
	list, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryRejectsEmptyKey(t *testing.T) {
	_, err := New().Put(context.Background(), " ", strings.NewReader(""), core.PutOptions{})
	require.Error(t, err)
}
