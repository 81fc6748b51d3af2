package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"siosearch/internal/core"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// EncodeRun serialises a run as zstd-compressed JSON.
func EncodeRun(rec core.RunRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeRun reverses EncodeRun.
func DecodeRun(payload []byte) (core.RunRecord, error) {
	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return core.RunRecord{}, fmt.Errorf("decompress run payload: %w", err)
	}
	var rec core.RunRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode run payload: %w", err)
	}
	return rec, nil
}
