package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"siosearch/pkg/obscore"
)

// PublishedFilter restricts results by publication status.
type PublishedFilter string

const (
	PublishedAny         PublishedFilter = ""
	PublishedOnly        PublishedFilter = "published"
	PublishedUnpublished PublishedFilter = "unpublished"
)

// QueryRequest is one archive cone search around a named target.
type QueryRequest struct {
	Target       string
	RadiusArcmin float64
	Mirror       string
	PublicOnly   bool
	Published    PublishedFilter
}

// Querier returns archive rows for a request. Implementations make a single
// attempt; an empty table is a valid answer.
type Querier interface {
	Query(ctx context.Context, req QueryRequest) (obscore.Table, error)
}

// QueryOptions holds the request parameters shared by every target.
type QueryOptions struct {
	RadiusArcmin float64
	Mirror       string
	PublicOnly   bool
	Published    PublishedFilter
}

// TargetQueries is the outcome of querying every target.
type TargetQueries struct {
	Table obscore.Table
	// Failed holds the targets whose query returned an error.
	Failed []*QueryError
	// Empty holds the targets that answered with no rows.
	Empty []string
}

// Skipped lists the targets that contributed no rows, in query order.
func (t TargetQueries) Skipped(targets []string) []string {
	skip := make(map[string]bool, len(t.Failed)+len(t.Empty))
	for _, f := range t.Failed {
		skip[f.Target] = true
	}
	for _, e := range t.Empty {
		skip[e] = true
	}
	var out []string
	for _, target := range targets {
		if skip[target] {
			out = append(out, target)
		}
	}
	return out
}

// QueryTargets queries each target in turn, tags its rows with the target
// name and concatenates the results. A failed or empty query is logged and
// skipped. ErrNoObservations is returned when every target came back empty.
func QueryTargets(ctx context.Context, q Querier, targets []string, opts QueryOptions, log *zap.Logger) (TargetQueries, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var out TargetQueries
	var parts []obscore.Table
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		req := QueryRequest{
			Target:       target,
			RadiusArcmin: opts.RadiusArcmin,
			Mirror:       opts.Mirror,
			PublicOnly:   opts.PublicOnly,
			Published:    opts.Published,
		}
		log.Info("querying archive", zap.Stringer("request", req))
		table, err := q.Query(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			qerr := NewQueryError(target, err)
			out.Failed = append(out.Failed, qerr)
			log.Warn("query failed", zap.String("target", target), zap.Error(qerr))
			continue
		}
		if table.Len() == 0 {
			out.Empty = append(out.Empty, target)
			log.Warn("no ObsCore rows returned", zap.String("target", target))
			continue
		}
		log.Info("query complete", zap.String("target", target), zap.Int("rows", table.Len()))
		parts = append(parts, table.WithColumn(obscore.ColSource, target))
	}
	if len(parts) == 0 {
		return out, ErrNoObservations
	}
	out.Table = obscore.Concat(parts...)
	for _, vc := range out.Table.ValueCounts(obscore.ColSource) {
		log.Info("rows per source", zap.String("source", vc.Value), zap.Int("rows", vc.Count))
	}
	log.Info("total ObsCore rows retrieved", zap.Int("rows", out.Table.Len()))
	return out, nil
}

// String renders the request for diagnostics.
func (r QueryRequest) String() string {
	return fmt.Sprintf("%s (r=%.3f', mirror=%s, public=%t, published=%q)", r.Target, r.RadiusArcmin, r.Mirror, r.PublicOnly, r.Published)
}
