package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siosearch/internal/blob/core"
)

// fakeS3 serves the handful of path-style S3 calls the Store issues.
type fakeS3 struct {
	mu    sync.Mutex
	state map[string]fakeObject
	// pageSize forces ListObjectsV2 pagination when > 0.
	pageSize int
}

type fakeObject struct {
	body        []byte
	contentType string
	meta        http.Header
}

func newFakeS3() *fakeS3 { return &fakeS3{state: make(map[string]fakeObject)} }

func respond(status int, body string, h http.Header) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: h, ContentLength: int64(len(body))}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	q := req.URL.Query()
	if req.Method == http.MethodGet && q.Get("list-type") == "2" {
		return f.list(q.Get("prefix"), q.Get("continuation-token")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := f.state[key]
		if !ok {
			return respond(http.StatusNotFound, "", nil), nil
		}
		h := obj.meta.Clone()
		h.Set("Content-Length", strconv.Itoa(len(obj.body)))
		h.Set("Content-Type", obj.contentType)
		h.Set("ETag", `"etag-`+strconv.Itoa(len(obj.body))+`"`)
		h.Set("Last-Modified", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: h}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		meta := http.Header{}
		for k, v := range req.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") {
				meta[k] = v
			}
		}
		f.state[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), meta: meta}
		return respond(http.StatusOK, "", http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodGet:
		obj, ok := f.state[key]
		if !ok {
			return respond(http.StatusNotFound, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`,
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		h := http.Header{"Content-Type": {obj.contentType}, "Etag": {`"etag"`}}
		return respond(http.StatusOK, string(obj.body), h), nil
	case http.MethodDelete:
		delete(f.state, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

func (f *fakeS3) list(prefix, token string) *http.Response {
	var keys []string
	for k := range f.state {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if token != "" {
		start, _ = strconv.Atoi(token)
	}
	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult>`)
	if end < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%d</NextContinuationToken>", end)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys[start:end] {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2025-01-01T00:00:00Z</LastModified></Contents>", k, len(f.state[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}})
}

// decodeChunked strips a single-chunk aws-chunked frame if present.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 || parts[2] != "0" {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeStore(t *testing.T, fake *fakeS3, prefix string) *Store {
	t.Helper()
	store, err := New(context.Background(), Config{
		Bucket:          "maps-sio",
		Prefix:          prefix,
		Region:          "us-east-1",
		Endpoint:        "https://s3.fake.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return store
}

func TestStoreBasicFlow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newFakeStore(t, fake, "")

	info, err := store.Put(ctx, "runs/r1/sio_spw_matches.csv", strings.NewReader("hello"),
		core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"run": "r1"}})
	require.NoError(t, err)
	assert.Equal(t, "runs/r1/sio_spw_matches.csv", info.Key)
	assert.Equal(t, "text/csv", info.ContentType)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "r1", info.Metadata["run"])

	_, err = store.Put(ctx, "runs/r1/sio_spw_matches.csv", strings.NewReader("again"), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	_, rc, err := store.Get(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	u, err := store.PresignURL(ctx, "runs/r1/sio_spw_matches.csv", core.SignedURLOptions{Expiry: 30 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, u, "maps-sio/runs/r1/sio_spw_matches.csv")
	assert.Contains(t, u, "X-Amz-Expires=30")

	ok, err := store.Delete(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, "runs/r1/sio_spw_matches.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreMissingKeysMapToNotFound(t *testing.T) {
	store := newFakeStore(t, newFakeS3(), "")
	ctx := context.Background()
	_, err := store.Head(ctx, "nope")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "nope")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreListPaginatesAndStripsPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.pageSize = 1
	store := newFakeStore(t, fake, "/archive/")
	for _, k := range []string{"products/b/x.tar", "products/a/y.tar", "runs/r/z.csv"} {
		_, err := store.Put(ctx, k, strings.NewReader(k), core.PutOptions{})
		require.NoError(t, err)
	}
	_, stored := fake.state["archive/products/a/y.tar"]
	assert.True(t, stored)

	list, err := store.List(ctx, "products/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "products/a/y.tar", list[0].Key)
	assert.Equal(t, "products/b/x.tar", list[1].Key)
}

func TestStoreReplaceSkipsExistenceCheck(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newFakeStore(t, fake, "")
	_, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{})
	require.NoError(t, err)
	info, err := store.Put(ctx, "k", strings.NewReader("three"), core.PutOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	store := newFakeStore(t, newFakeS3(), "")
	assert.Equal(t, core.DriverS3, store.Driver())
}
