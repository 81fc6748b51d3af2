package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"siosearch/internal/blob"
)

const votableHeader = `<?xml version="1.0" encoding="UTF-8"?>
<VOTABLE version="1.3" xmlns="http://www.ivoa.net/xml/VOTable/v1.3">
<RESOURCE type="results">
<TABLE>
<FIELD name="ID" datatype="char" arraysize="*"/>
<FIELD name="access_url" datatype="char" arraysize="*"/>
<FIELD name="service_def" datatype="char" arraysize="*"/>
<FIELD name="error_message" datatype="char" arraysize="*"/>
<FIELD name="semantics" datatype="char" arraysize="*"/>
<FIELD name="description" datatype="char" arraysize="*"/>
<FIELD name="content_type" datatype="char" arraysize="*"/>
<FIELD name="content_length" datatype="long"/>
<DATA><TABLEDATA>
`

const votableFooter = `</TABLEDATA></DATA>
</TABLE>
</RESOURCE>
</VOTABLE>`

func row(cells ...string) string {
	var b strings.Builder
	b.WriteString("<TR>")
	for _, c := range cells {
		fmt.Fprintf(&b, "<TD>%s</TD>", c)
	}
	b.WriteString("</TR>\n")
	return b.String()
}

type fakeDatalink struct {
	srv   *httptest.Server
	gets  atomic.Int32
	files map[string]string
}

func newFakeDatalink(t *testing.T) *fakeDatalink {
	t.Helper()
	f := &fakeDatalink{files: map[string]string{
		"/files/member.uid___A001_X1_X2.auxiliary.tar": "aux",
		"/files/member.uid___A001_X1_X2.cal.tar":       "calibrated",
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/datalink/sync", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("ID")
		base := "http://" + r.Host
		switch id {
		case "uid://A001/X1/X2":
			_, _ = io.WriteString(w, votableHeader+
				row("uid://A001/X1/X2", base+"/files/member.uid___A001_X1_X2.auxiliary.tar", "", "", "#progenitor", "aux", "application/x-tar", "3")+
				row("uid://A001/X1/X2", base+"/datalink/sync?ID=nested", "", "", "#datalink", "more", "application/x-votable+xml;content=datalink", "")+
				row("uid://A001/X1/X2", "", "", "NotAuthorized", "#this", "", "", "")+
				row("uid://A001/X1/X2", "", "cutout-svc", "", "#cutout", "", "", "")+
				votableFooter)
		case "nested":
			_, _ = io.WriteString(w, votableHeader+
				row("cal", base+"/files/member.uid___A001_X1_X2.cal.tar", "", "", "#this", "cal", "application/x-tar", "10")+
				votableFooter)
		case "uid://A001/X9/X9":
			_, _ = io.WriteString(w, votableHeader+votableFooter)
		default:
			http.Error(w, "unknown", http.StatusNotFound)
		}
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		f.gets.Add(1)
		body, ok := f.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-tar")
		_, _ = io.WriteString(w, body)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newRetriever(t *testing.T, f *fakeDatalink, store blob.Store) *Retriever {
	t.Helper()
	r, err := New(Options{DatalinkURL: f.srv.URL + "/datalink/sync", Store: store, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return r
}

func readBlob(t *testing.T, s blob.Store, key string) string {
	t.Helper()
	_, rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestRetrieveFollowsNestedDatalinkAndStoresFiles(t *testing.T) {
	f := newFakeDatalink(t)
	store := blob.NewMemory()
	r := newRetriever(t, f, store)

	require.NoError(t, r.Retrieve(context.Background(), "uid://A001/X1/X2", false))
	assert.Equal(t, "aux", readBlob(t, store, "products/uid___A001_X1_X2/member.uid___A001_X1_X2.auxiliary.tar"))
	assert.Equal(t, "calibrated", readBlob(t, store, "products/uid___A001_X1_X2/member.uid___A001_X1_X2.cal.tar"))
	assert.Equal(t, int32(2), f.gets.Load())

	info, err := store.Head(context.Background(), "products/uid___A001_X1_X2/member.uid___A001_X1_X2.cal.tar")
	require.NoError(t, err)
	assert.Equal(t, "uid://A001/X1/X2", info.Metadata["mous_id"])
}

func TestRetrieveUsesCache(t *testing.T) {
	f := newFakeDatalink(t)
	store := blob.NewMemory()
	r := newRetriever(t, f, store)
	ctx := context.Background()

	require.NoError(t, r.Retrieve(ctx, "uid://A001/X1/X2", true))
	require.NoError(t, r.Retrieve(ctx, "uid://A001/X1/X2", true))
	assert.Equal(t, int32(2), f.gets.Load(), "second cached run must not refetch")

	require.NoError(t, r.Retrieve(ctx, "uid://A001/X1/X2", false))
	assert.Equal(t, int32(4), f.gets.Load(), "uncached run refetches and overwrites")
}

func TestRetrieveFailures(t *testing.T) {
	f := newFakeDatalink(t)
	r := newRetriever(t, f, blob.NewMemory())
	ctx := context.Background()

	err := r.Retrieve(ctx, "uid://A001/X9/X9", false)
	require.ErrorContains(t, err, "no downloadable products")

	err = r.Retrieve(ctx, "uid://missing", false)
	require.ErrorContains(t, err, "HTTP 404")

	delete(f.files, "/files/member.uid___A001_X1_X2.cal.tar")
	err = r.Retrieve(ctx, "uid://A001/X1/X2", false)
	require.Error(t, err)
	assert.Equal(t, int32(2), f.gets.Load(), "remaining files are still attempted")
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Store: blob.NewMemory()})
	require.Error(t, err)
	_, err = New(Options{DatalinkURL: "http://x"})
	require.Error(t, err)
}

func TestParseLinksErrorStatus(t *testing.T) {
	body := `<VOTABLE><RESOURCE type="results"><INFO name="QUERY_STATUS" value="ERROR">bad id</INFO></RESOURCE></VOTABLE>`
	_, err := ParseLinks(strings.NewReader(body))
	require.ErrorContains(t, err, "bad id")
	_, err = ParseLinks(strings.NewReader("not xml"))
	require.Error(t, err)
}

func TestParseLinksColumns(t *testing.T) {
	links, err := ParseLinks(strings.NewReader(votableHeader +
		row("a", "http://h/x.tar", "", "", "#this", "d", "application/x-tar", "42") + votableFooter))
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, Link{ID: "a", AccessURL: "http://h/x.tar", Semantics: "#this", Description: "d", ContentType: "application/x-tar", ContentLength: 42}, links[0])
	assert.True(t, links[0].Downloadable())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "uid___A001_X133d_X1", UIDKey("uid://A001/X133d/X1"))
	assert.Equal(t, "products/uid___A001_X133d_X1/a.tar", ProductKey("uid://A001/X133d/X1", "a.tar"))
	assert.Equal(t, "uid___x", fileName(Link{ID: "uid://x"}))
}
