package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siosearch/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)

	info, err := store.Put(ctx, "runs/r1/sio_spw_matches.csv", strings.NewReader("Source\nAS 209\n"),
		core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"run": "r1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(14), info.Size)
	assert.Equal(t, "text/csv", info.ContentType)
	assert.True(t, strings.HasPrefix(info.URL, "file://"))

	_, err = store.Put(ctx, "runs/r1/sio_spw_matches.csv", strings.NewReader("x"), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	head, err := store.Head(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	got, rc, err := store.Get(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Source\nAS 209\n", string(body))
	assert.Equal(t, head.ETag, got.ETag)
	assert.Equal(t, map[string]string{"run": "r1"}, got.Metadata)

	_, err = store.Put(ctx, "products/uid___A001_X1/a.tar", bytes.NewReader([]byte("tar")), core.PutOptions{})
	require.NoError(t, err)
	list, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "runs/r1/sio_spw_matches.csv", list[0].Key)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	existed, err := store.Delete(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = store.Delete(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = store.Head(ctx, "runs/r1/sio_spw_matches.csv")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "runs/r1/sio_spw_matches.csv")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreReplaceOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	first, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{})
	require.NoError(t, err)
	second, err := store.Put(ctx, "k", strings.NewReader("three"), core.PutOptions{Replace: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, second.ETag)
	assert.Equal(t, int64(5), second.Size)
}

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../b", "x.meta"} {
		_, err := sanitizeKey(key)
		assert.Error(t, err, key)
	}
	clean, err := sanitizeKey("a//b/./c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", clean)
}

func TestListFailsOnCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	_, err := store.Put(ctx, "a", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "a"+metaSuffix), []byte("{"), 0o644))
	_, err = store.List(ctx, "")
	require.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newTempStore(t)
	_, err := store.Put(ctx, "a", strings.NewReader("x"), core.PutOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPresignURLIsFileURL(t *testing.T) {
	store := newTempStore(t)
	u, err := store.PresignURL(context.Background(), "runs/x.csv", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))
	assert.True(t, strings.HasSuffix(u, "/runs/x.csv"))
	assert.Equal(t, core.DriverFilesystem, store.Driver())
}
