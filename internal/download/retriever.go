package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"siosearch/internal/blob"
	"siosearch/internal/core"
)

// Options configures a Retriever.
type Options struct {
	// DatalinkURL is the synchronous datalink endpoint, e.g.
	// https://almascience.eso.org/datalink/sync.
	DatalinkURL string
	Store       blob.Store
	HTTPClient  *http.Client
	Timeout     time.Duration
	Limiter     *rate.Limiter
	Logger      *zap.Logger
}

// Retriever implements core.Retriever: it lists a MOUS's products through
// datalink and stores each file under products/<uid-key>/<file>.
type Retriever struct {
	datalink string
	store    blob.Store
	http     *http.Client
	limiter  *rate.Limiter
	log      *zap.Logger
}

var _ core.Retriever = (*Retriever)(nil)

// New validates opts and returns a Retriever.
func New(opts Options) (*Retriever, error) {
	if strings.TrimSpace(opts.DatalinkURL) == "" {
		return nil, errors.New("datalink url required")
	}
	if opts.Store == nil {
		return nil, errors.New("product store required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	lim := opts.Limiter
	if lim == nil {
		lim = rate.NewLimiter(rate.Inf, 0)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{datalink: opts.DatalinkURL, store: opts.Store, http: hc, limiter: lim, log: log}, nil
}

// UIDKey turns "uid://A001/X133d/X1" into the archive's file-safe
// "uid___A001_X133d_X1".
func UIDKey(uid string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(strings.TrimSpace(uid))
}

// ProductKey is the blob key for one product file of a MOUS.
func ProductKey(mousID, file string) string {
	return path.Join("products", UIDKey(mousID), file)
}

// Retrieve fetches every downloadable product of mousID. With useCache set,
// files already present in the store are skipped. All files are attempted;
// the returned error joins the individual failures.
func (r *Retriever) Retrieve(ctx context.Context, mousID string, useCache bool) error {
	links, err := r.links(ctx, r.datalink+"?ID="+url.QueryEscape(mousID))
	if err != nil {
		return err
	}
	var nested []Link
	var files []Link
	for _, l := range links {
		switch {
		case l.IsNested() && l.AccessURL != "":
			nested = append(nested, l)
		case l.Downloadable():
			files = append(files, l)
		}
	}
	for _, n := range nested {
		inner, err := r.links(ctx, n.AccessURL)
		if err != nil {
			return fmt.Errorf("nested datalink %s: %w", n.ID, err)
		}
		for _, l := range inner {
			if l.Downloadable() {
				files = append(files, l)
			}
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no downloadable products for %s", mousID)
	}
	r.log.Info("retrieving products", zap.String("mous_id", mousID), zap.Int("files", len(files)))

	var errs []error
	for _, f := range files {
		if err := r.fetch(ctx, mousID, f, useCache); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Retriever) links(ctx context.Context, u string) ([]Link, error) {
	resp, err := r.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return ParseLinks(resp.Body)
}

func (r *Retriever) fetch(ctx context.Context, mousID string, l Link, useCache bool) error {
	key := ProductKey(mousID, fileName(l))
	if useCache {
		if info, err := r.store.Head(ctx, key); err == nil {
			r.log.Debug("product cached", zap.String("key", key), zap.Int64("bytes", info.Size))
			return nil
		} else if !errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("check cache %s: %w", key, err)
		}
	}
	resp, err := r.get(ctx, l.AccessURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	info, err := r.store.Put(ctx, key, resp.Body, blob.PutOptions{
		ContentType: resp.Header.Get("Content-Type"),
		Metadata:    map[string]string{"mous_id": mousID, "source_url": l.AccessURL},
		Replace:     true,
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	r.log.Info("product stored", zap.String("key", key), zap.Int64("bytes", info.Size))
	return nil
}

func (r *Retriever) get(ctx context.Context, u string) (*http.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: HTTP %d", u, resp.StatusCode)
	}
	return resp, nil
}

// fileName picks the last path element of the access URL, falling back to the link ID.
func fileName(l Link) string {
	if u, err := url.Parse(l.AccessURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return UIDKey(l.ID)
}
