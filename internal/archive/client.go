package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"siosearch/internal/core"
	"siosearch/pkg/obscore"
)

const userAgent = "siosearch/1 (ALMA archive SiO survey)"

// HTTPError reports a non-200 answer from an archive service.
type HTTPError struct {
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.URL, e.Status, e.Body)
}

func newHTTPError(u string, resp *http.Response) *HTTPError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HTTPError{URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// ErrTAPQuery marks an error status reported inside a TAP VOTable response.
var ErrTAPQuery = errors.New("tap query failed")

// Options configures a Client.
type Options struct {
	// BaseURL overrides the mirror's TAP root.
	BaseURL           string
	ResolverURL       string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRecords        int
	SplitSPW          bool
	HTTPClient        *http.Client
	Resolver          Resolver
	Logger            *zap.Logger
}

// Client implements core.Querier against an ALMA TAP service.
type Client struct {
	http     *http.Client
	baseURL  string
	resolver Resolver
	limiter  *rate.Limiter
	maxRec   int
	splitSPW bool
	log      *zap.Logger
}

var _ core.Querier = (*Client)(nil)

// New builds a Client. A zero RequestsPerSecond disables pacing and a zero
// Timeout leaves requests bounded only by the context.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:     hc,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		limiter:  NewLimiter(opts.RequestsPerSecond),
		maxRec:   opts.MaxRecords,
		splitSPW: opts.SplitSPW,
		log:      log,
	}
	c.resolver = opts.Resolver
	if c.resolver == nil {
		c.resolver = &SesameResolver{BaseURL: opts.ResolverURL, HTTP: hc, Before: c.limiter.Wait}
	}
	return c
}

// NewLimiter returns a limiter allowing rps requests per second; rps <= 0 is unlimited.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (c *Client) tapURL(mirror string) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	m, err := ParseMirror(mirror)
	if err != nil {
		return "", err
	}
	return m.TAPURL(), nil
}

// Query resolves the target, runs the cone search and returns the rows with
// derived report columns added.
func (c *Client) Query(ctx context.Context, req core.QueryRequest) (obscore.Table, error) {
	base, err := c.tapURL(req.Mirror)
	if err != nil {
		return obscore.Table{}, err
	}
	coord, err := c.resolver.Resolve(ctx, req.Target)
	if err != nil {
		return obscore.Table{}, err
	}
	adql := BuildADQL(coord, req)
	c.log.Debug("tap query", zap.String("target", req.Target), zap.Stringer("coord", coord), zap.String("adql", adql))

	raw, err := c.sync(ctx, base, adql)
	if err != nil {
		return obscore.Table{}, err
	}
	table := DeriveColumns(raw)
	if c.splitSPW {
		var skipped int
		before := table.Len()
		table, skipped = SplitSpectralWindows(table)
		c.log.Debug("split spectral windows", zap.String("target", req.Target),
			zap.Int("rows_in", before), zap.Int("rows_out", table.Len()), zap.Int("unsplit", skipped))
	}
	return table, nil
}

func (c *Client) sync(ctx context.Context, base, adql string) (obscore.Table, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return obscore.Table{}, err
	}
	form := url.Values{
		"REQUEST": {"doQuery"},
		"LANG":    {"ADQL"},
		"FORMAT":  {"csv"},
		"QUERY":   {adql},
	}
	if c.maxRec > 0 {
		form.Set("MAXREC", strconv.Itoa(c.maxRec))
	}
	endpoint := base + "/sync"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return obscore.Table{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return obscore.Table{}, fmt.Errorf("tap sync: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return obscore.Table{}, newHTTPError(endpoint, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return obscore.Table{}, fmt.Errorf("read tap response: %w", err)
	}
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return obscore.Table{}, votableError(trimmed)
	}
	return ParseCSV(bytes.NewReader(trimmed))
}

// ParseCSV reads a TAP CSV result. The first record is the header.
func ParseCSV(r io.Reader) (obscore.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return obscore.Table{}, nil
	}
	if err != nil {
		return obscore.Table{}, fmt.Errorf("parse tap csv header: %w", err)
	}
	t := obscore.Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return obscore.Table{}, fmt.Errorf("parse tap csv: %w", err)
		}
		row := make(obscore.Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

type votable struct {
	Resources []struct {
		Infos []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value,attr"`
			Text  string `xml:",chardata"`
		} `xml:"INFO"`
	} `xml:"RESOURCE"`
}

// votableError extracts the QUERY_STATUS message from an XML answer.
func votableError(b []byte) error {
	var vt votable
	if err := xml.Unmarshal(b, &vt); err != nil {
		return fmt.Errorf("%w: unexpected xml response", ErrTAPQuery)
	}
	for _, res := range vt.Resources {
		for _, info := range res.Infos {
			if info.Name == "QUERY_STATUS" && info.Value == "ERROR" {
				return fmt.Errorf("%w: %s", ErrTAPQuery, strings.TrimSpace(info.Text))
			}
		}
	}
	return fmt.Errorf("%w: xml response without error status", ErrTAPQuery)
}
