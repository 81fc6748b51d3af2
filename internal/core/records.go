package core

import (
	"math"
	"time"

	"siosearch/pkg/obscore"
)

// Schema records which optional columns survived harmonization. Source,
// frequency bounds, resolution and MOUS ID are always present.
type Schema struct {
	HasProject bool `json:"has_project"`
	HasBand    bool `json:"has_band"`
}

// ObservationRecord is one archive row in canonical form. Unknown numeric
// values are NaN; unknown text values are empty.
type ObservationRecord struct {
	Source       string
	Project      string
	Band         string
	MinFreqGHz   float64
	MaxFreqGHz   float64
	AngResArcsec float64
	MousID       string
}

// Covers reports whether freqGHz lies strictly inside the record's window.
func (r ObservationRecord) Covers(freqGHz float64) bool {
	return r.MinFreqGHz < freqGHz && freqGHz < r.MaxFreqGHz
}

// Observations is the harmonized archive result.
type Observations struct {
	Schema  Schema
	Records []ObservationRecord
}

// MatchRecord is an observation annotated with the transition it covers.
type MatchRecord struct {
	ObservationRecord
	Transition Transition
}

// Matches is the matcher output, carrying the schema forward.
type Matches struct {
	Schema  Schema
	Records []MatchRecord
}

// Empty reports whether nothing matched.
func (m Matches) Empty() bool { return len(m.Records) == 0 }

// SpwTable lists matched spectral windows in report order.
type SpwTable struct {
	Schema  Schema
	Records []MatchRecord
}

// MousSummary aggregates all matches sharing one MOUS identifier.
type MousSummary struct {
	MousID       string
	Sources      string
	Projects     string
	Bands        string
	Transitions  string
	Frequencies  string
	MinFreqGHz   float64
	MaxFreqGHz   float64
	AngResArcsec float64
}

// MousTable lists one summary per MOUS identifier in report order.
type MousTable struct {
	Schema Schema
	Rows   []MousSummary
}

// MousIDs returns the distinct identifiers in table order.
func (t MousTable) MousIDs() []string {
	seen := make(map[string]struct{}, len(t.Rows))
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if _, ok := seen[row.MousID]; ok {
			continue
		}
		seen[row.MousID] = struct{}{}
		out = append(out, row.MousID)
	}
	return out
}

// Artifact describes one written report file.
type Artifact struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Format    obscore.Format `json:"format"`
	Rows      int            `json:"rows"`
	SizeBytes int64          `json:"size_bytes"`
	URL       string         `json:"url,omitempty"`
}

// RunRecord captures a completed run for the results store.
type RunRecord struct {
	ID              string          `json:"id"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
	Targets         []string        `json:"targets"`
	Mirror          string          `json:"mirror"`
	RadiusArcmin    float64         `json:"radius_arcmin"`
	Transitions     TransitionTable `json:"transitions"`
	ObservationRows int             `json:"observation_rows"`
	Spw             obscore.Dataset `json:"spw"`
	Mous            obscore.Dataset `json:"mous"`
	Artifacts       []Artifact      `json:"artifacts,omitempty"`
}

// RunSummary is the listing view of a recorded run.
type RunSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Targets     []string  `json:"targets"`
	Mirror      string    `json:"mirror"`
	SpwRows     int       `json:"spw_rows"`
	MousRows    int       `json:"mous_rows"`
}

// Summary derives the listing view.
func (r RunRecord) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Targets:     append([]string(nil), r.Targets...),
		Mirror:      r.Mirror,
		SpwRows:     len(r.Spw.Rows),
		MousRows:    len(r.Mous.Rows),
	}
}

func nanMin(acc, v float64) float64 {
	if math.IsNaN(v) {
		return acc
	}
	if math.IsNaN(acc) || v < acc {
		return v
	}
	return acc
}

func nanMax(acc, v float64) float64 {
	if math.IsNaN(v) {
		return acc
	}
	if math.IsNaN(acc) || v > acc {
		return v
	}
	return acc
}
