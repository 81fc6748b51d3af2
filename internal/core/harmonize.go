package core

import (
	"math"
	"strconv"

	"siosearch/pkg/obscore"
)

// Harmonize maps archive column variants onto the canonical record layout.
// It renames and defaults only; values are parsed from their archive text
// and never rescaled.
func Harmonize(t obscore.Table) (Observations, error) {
	resCol := firstPresent(t, obscore.ColAngResArcsec, obscore.ColBestAngRes)
	bandCol := firstPresent(t, obscore.ColBandList, obscore.ColBand)

	for _, col := range []string{obscore.ColMinFreqGHz, obscore.ColMaxFreqGHz} {
		if !t.Has(col) {
			return Observations{}, &SchemaError{Column: col}
		}
	}
	mousCol := firstPresent(t, obscore.ColMemberOUSUID, obscore.ColMemberOUSID)
	if mousCol == "" {
		return Observations{}, &SchemaError{Column: obscore.ColMemberOUSUID, Alternates: []string{obscore.ColMemberOUSID}}
	}

	schema := Schema{
		HasProject: t.Has(obscore.ColProjectCode),
		HasBand:    bandCol != "",
	}
	records := make([]ObservationRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := ObservationRecord{
			Source:       text(row, obscore.ColSource),
			MinFreqGHz:   number(row, obscore.ColMinFreqGHz),
			MaxFreqGHz:   number(row, obscore.ColMaxFreqGHz),
			AngResArcsec: math.NaN(),
			MousID:       text(row, mousCol),
		}
		if resCol != "" {
			rec.AngResArcsec = number(row, resCol)
		}
		if schema.HasProject {
			rec.Project = text(row, obscore.ColProjectCode)
		}
		if schema.HasBand {
			rec.Band = text(row, bandCol)
		}
		records = append(records, rec)
	}
	return Observations{Schema: schema, Records: records}, nil
}

func firstPresent(t obscore.Table, names ...string) string {
	for _, n := range names {
		if t.Has(n) {
			return n
		}
	}
	return ""
}

func text(row obscore.Row, col string) string {
	v, _ := row.Get(col)
	return v
}

func number(row obscore.Row, col string) float64 {
	v, ok := row.Get(col)
	if !ok {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
