package core

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"siosearch/pkg/obscore"
)

// missingText is how an unknown text value reads once joined into a
// summary cell.
const missingText = "nan"

const joinSep = ", "

// BuildSpwTable orders matches by source, project, band and transition
// frequency. Keys for columns absent from the schema are skipped and unknown
// values sort last. The sort is stable so equal keys keep match order.
func BuildSpwTable(m Matches) SpwTable {
	records := append([]MatchRecord(nil), m.Records...)
	schema := m.Schema
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := compareText(a.Source, b.Source); c != 0 {
			return c < 0
		}
		if schema.HasProject {
			if c := compareText(a.Project, b.Project); c != 0 {
				return c < 0
			}
		}
		if schema.HasBand {
			if c := compareText(a.Band, b.Band); c != 0 {
				return c < 0
			}
		}
		return compareFloat(a.Transition.FreqGHz, b.Transition.FreqGHz) < 0
	})
	return SpwTable{Schema: schema, Records: records}
}

// BuildMousTable collapses matches into one row per MOUS identifier. Groups
// are formed in identifier order, then stably sorted by the joined source
// and project strings. Sorting on the joined strings means a multi-source
// group sorts by its first-listed name only; that ordering is kept as is.
// Records without an identifier are not grouped.
func BuildMousTable(m Matches) MousTable {
	groups := make(map[string][]MatchRecord)
	for _, r := range m.Records {
		if r.MousID == "" {
			continue
		}
		groups[r.MousID] = append(groups[r.MousID], r)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]MousSummary, 0, len(ids))
	for _, id := range ids {
		recs := groups[id]
		row := MousSummary{
			MousID:       id,
			Sources:      joinUnique(recs, func(r MatchRecord) string { return r.Source }),
			Transitions:  joinUnique(recs, func(r MatchRecord) string { return r.Transition.Label }),
			Frequencies:  joinUnique(recs, func(r MatchRecord) string { return FormatFloat(r.Transition.FreqGHz) }),
			MinFreqGHz:   math.NaN(),
			MaxFreqGHz:   math.NaN(),
			AngResArcsec: math.NaN(),
		}
		if m.Schema.HasProject {
			row.Projects = joinUnique(recs, func(r MatchRecord) string { return r.Project })
		}
		if m.Schema.HasBand {
			row.Bands = joinUnique(recs, func(r MatchRecord) string { return r.Band })
		}
		for _, r := range recs {
			row.MinFreqGHz = nanMin(row.MinFreqGHz, r.MinFreqGHz)
			row.MaxFreqGHz = nanMax(row.MaxFreqGHz, r.MaxFreqGHz)
			row.AngResArcsec = nanMin(row.AngResArcsec, r.AngResArcsec)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Sources != rows[j].Sources {
			return rows[i].Sources < rows[j].Sources
		}
		if m.Schema.HasProject {
			return rows[i].Projects < rows[j].Projects
		}
		return false
	})
	return MousTable{Schema: m.Schema, Rows: rows}
}

func joinUnique(recs []MatchRecord, field func(MatchRecord) string) string {
	seen := make(map[string]struct{}, len(recs))
	values := make([]string, 0, len(recs))
	for _, r := range recs {
		v := field(r)
		if v == "" {
			v = missingText
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, joinSep)
}

// compareText orders strings ascending with empty (unknown) values last.
func compareText(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}

// compareFloat orders numbers ascending with NaN last.
func compareFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FormatFloat renders v in shortest round-trip decimal form. Integral values
// keep a trailing ".0"; very small or very large magnitudes use exponent
// notation; NaN renders as "nan".
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// SpwColumns lists the per-SPW report columns for schema.
func SpwColumns(s Schema) []obscore.Column {
	cols := []obscore.Column{{Name: obscore.ColSource, Kind: obscore.KindText}}
	if s.HasProject {
		cols = append(cols, obscore.Column{Name: obscore.ColProject, Kind: obscore.KindText})
	}
	if s.HasBand {
		cols = append(cols, obscore.Column{Name: obscore.ColALMABand, Kind: obscore.KindText})
	}
	return append(cols,
		obscore.Column{Name: obscore.ColMinFreqGHz, Kind: obscore.KindFloat, Unit: "GHz"},
		obscore.Column{Name: obscore.ColMaxFreqGHz, Kind: obscore.KindFloat, Unit: "GHz"},
		obscore.Column{Name: obscore.ColTransition, Kind: obscore.KindText},
		obscore.Column{Name: obscore.ColTransitionFreq, Kind: obscore.KindFloat, Unit: "GHz"},
		obscore.Column{Name: obscore.ColAngResArcsec, Kind: obscore.KindFloat, Unit: "arcsec"},
		obscore.Column{Name: obscore.ColMousID, Kind: obscore.KindText},
	)
}

// MousColumns lists the per-MOUS report columns for schema.
func MousColumns(s Schema) []obscore.Column {
	cols := []obscore.Column{
		{Name: obscore.ColMousID, Kind: obscore.KindText},
		{Name: obscore.ColSource, Kind: obscore.KindText},
	}
	if s.HasProject {
		cols = append(cols, obscore.Column{Name: obscore.ColProject, Kind: obscore.KindText})
	}
	if s.HasBand {
		cols = append(cols, obscore.Column{Name: obscore.ColALMABand, Kind: obscore.KindText})
	}
	return append(cols,
		obscore.Column{Name: obscore.ColTransitions, Kind: obscore.KindText},
		obscore.Column{Name: obscore.ColTransitionFreqs, Kind: obscore.KindText},
		obscore.Column{Name: obscore.ColMinFreqGHz, Kind: obscore.KindFloat, Unit: "GHz"},
		obscore.Column{Name: obscore.ColMaxFreqGHz, Kind: obscore.KindFloat, Unit: "GHz"},
		obscore.Column{Name: obscore.ColAngResArcsec, Kind: obscore.KindFloat, Unit: "arcsec"},
	)
}

// Dataset renders the table for writers.
func (t SpwTable) Dataset() obscore.Dataset {
	rows := make([]map[string]any, len(t.Records))
	for i, r := range t.Records {
		row := map[string]any{
			obscore.ColSource:         r.Source,
			obscore.ColMinFreqGHz:     r.MinFreqGHz,
			obscore.ColMaxFreqGHz:     r.MaxFreqGHz,
			obscore.ColTransition:     r.Transition.Label,
			obscore.ColTransitionFreq: r.Transition.FreqGHz,
			obscore.ColAngResArcsec:   r.AngResArcsec,
			obscore.ColMousID:         r.MousID,
		}
		if t.Schema.HasProject {
			row[obscore.ColProject] = r.Project
		}
		if t.Schema.HasBand {
			row[obscore.ColALMABand] = r.Band
		}
		rows[i] = row
	}
	return obscore.Dataset{Name: "sio_spw_matches", Schema: SpwColumns(t.Schema), Rows: rows}
}

// Dataset renders the table for writers.
func (t MousTable) Dataset() obscore.Dataset {
	rows := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		row := map[string]any{
			obscore.ColMousID:          r.MousID,
			obscore.ColSource:          r.Sources,
			obscore.ColTransitions:     r.Transitions,
			obscore.ColTransitionFreqs: r.Frequencies,
			obscore.ColMinFreqGHz:      r.MinFreqGHz,
			obscore.ColMaxFreqGHz:      r.MaxFreqGHz,
			obscore.ColAngResArcsec:    r.AngResArcsec,
		}
		if t.Schema.HasProject {
			row[obscore.ColProject] = r.Projects
		}
		if t.Schema.HasBand {
			row[obscore.ColALMABand] = r.Bands
		}
		rows[i] = row
	}
	return obscore.Dataset{Name: "sio_mous_summary", Schema: MousColumns(t.Schema), Rows: rows}
}
