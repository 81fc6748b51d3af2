package core

import (
	"context"

	"go.uber.org/zap"
)

// Retriever fetches the data products of one MOUS. With useCache set,
// products already held locally are not fetched again.
type Retriever interface {
	Retrieve(ctx context.Context, mousID string, useCache bool) error
}

// DownloadFailure records one MOUS that could not be retrieved.
type DownloadFailure struct {
	MousID string `json:"mous_id"`
	Error  string `json:"error"`
}

// DownloadSummary reports the outcome of a bulk download.
type DownloadSummary struct {
	Requested int               `json:"requested"`
	Retrieved int               `json:"retrieved"`
	Failures  []DownloadFailure `json:"failures,omitempty"`
}

// DownloadAll retrieves every distinct MOUS in the table in order. A failure
// is logged and recorded and the loop moves on to the next identifier.
func DownloadAll(ctx context.Context, r Retriever, mous MousTable, useCache bool, log *zap.Logger) DownloadSummary {
	if log == nil {
		log = zap.NewNop()
	}
	ids := mous.MousIDs()
	summary := DownloadSummary{Requested: len(ids)}
	log.Info("downloading public MOUS datasets", zap.Int("count", len(ids)), zap.Bool("use_cache", useCache))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.Failures = append(summary.Failures, DownloadFailure{MousID: id, Error: err.Error()})
			continue
		}
		log.Info("retrieving", zap.String("mous_id", id))
		if err := r.Retrieve(ctx, id, useCache); err != nil {
			log.Warn("download failed", zap.String("mous_id", id), zap.Error(err))
			summary.Failures = append(summary.Failures, DownloadFailure{MousID: id, Error: err.Error()})
			continue
		}
		summary.Retrieved++
	}
	return summary
}
