// Package obscore describes archive result tables using ObsCore column naming
// and the canonical column set emitted by siosearch reports.
package obscore

// Archive-side column names understood by the harmonizer.
const (
	ColSource           = "Source"
	ColProjectCode      = "project_code"
	ColBandList         = "band_list"
	ColBand             = "band"
	ColMinFreqGHz       = "min_freq_GHz"
	ColMaxFreqGHz       = "max_freq_GHz"
	ColAngResArcsec     = "ang_res_arcsec"
	ColBestAngRes       = "best_ang_res"
	ColMemberOUSUID     = "member_ous_uid"
	ColMemberOUSID      = "member_ous_id"
	ColProposalID       = "proposal_id"
	ColEmMin            = "em_min"
	ColEmMax            = "em_max"
	ColSpatialRes       = "spatial_resolution"
	ColFrequencySupport = "frequency_support"
)

// Report column names.
const (
	ColProject         = "Project"
	ColALMABand        = "ALMA_Band"
	ColTransition      = "SiO_transition"
	ColTransitionFreq  = "SiO_freq_GHz"
	ColTransitions     = "SiO_transitions"
	ColTransitionFreqs = "SiO_freqs_GHz"
	ColMousID          = "MOUS_ID"
)

// Kind classifies a column for rendering.
type Kind string

const (
	KindText  Kind = "text"
	KindFloat Kind = "float"
)

// Column describes one report column.
type Column struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Format names an output serialization.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatLaTeX Format = "tex"
)
