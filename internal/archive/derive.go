package archive

import (
	"fmt"
	"strconv"
	"strings"

	"siosearch/pkg/obscore"
)

const speedOfLight = 299792458.0 // m/s

// DeriveColumns fills the report-friendly columns from raw ObsCore fields when
// the archive did not supply them: project_code from proposal_id, the
// frequency range from the wavelength bounds and ang_res_arcsec from
// spatial_resolution. Columns already present are left untouched.
func DeriveColumns(t obscore.Table) obscore.Table {
	type derivation struct {
		target string
		source string
		fn     func(obscore.Row) (string, bool)
	}
	derivations := []derivation{
		{obscore.ColProjectCode, obscore.ColProposalID, copyOf(obscore.ColProposalID)},
		{obscore.ColMinFreqGHz, obscore.ColEmMax, wavelengthToGHz(obscore.ColEmMax)},
		{obscore.ColMaxFreqGHz, obscore.ColEmMin, wavelengthToGHz(obscore.ColEmMin)},
		{obscore.ColAngResArcsec, obscore.ColSpatialRes, copyOf(obscore.ColSpatialRes)},
	}
	out := obscore.Table{Columns: append([]string(nil), t.Columns...), Rows: make([]obscore.Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	for _, d := range derivations {
		if out.Has(d.target) || !out.Has(d.source) {
			continue
		}
		out.Columns = append(out.Columns, d.target)
		for _, r := range out.Rows {
			if v, ok := d.fn(r); ok {
				r[d.target] = v
			}
		}
	}
	return out
}

func copyOf(col string) func(obscore.Row) (string, bool) {
	return func(r obscore.Row) (string, bool) { return r.Get(col) }
}

// wavelengthToGHz converts an ObsCore wavelength bound in metres.
func wavelengthToGHz(col string) func(obscore.Row) (string, bool) {
	return func(r obscore.Row) (string, bool) {
		raw, ok := r.Get(col)
		if !ok {
			return "", false
		}
		m, err := strconv.ParseFloat(raw, 64)
		if err != nil || m <= 0 {
			return "", false
		}
		return strconv.FormatFloat(speedOfLight/m/1e9, 'g', -1, 64), true
	}
}

// Window is one spectral window's frequency range in GHz.
type Window struct {
	MinGHz float64
	MaxGHz float64
}

// ParseFrequencySupport reads the ALMA frequency_support string, e.g.
// "[84.00..86.00GHz,31250.00kHz,XX] U [96.00..98.00GHz,...]", into one window
// per bracketed segment.
func ParseFrequencySupport(s string) ([]Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []Window
	for _, seg := range strings.Split(s, " U ") {
		seg = strings.Trim(strings.TrimSpace(seg), "[]")
		rng, _, _ := strings.Cut(seg, ",")
		lo, hi, ok := strings.Cut(rng, "..")
		if !ok {
			return nil, fmt.Errorf("frequency range %q: missing '..'", rng)
		}
		num, div, err := splitUnit(hi)
		if err != nil {
			return nil, err
		}
		minV, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		if err != nil {
			return nil, fmt.Errorf("frequency range %q: %w", rng, err)
		}
		maxV, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return nil, fmt.Errorf("frequency range %q: %w", rng, err)
		}
		out = append(out, Window{MinGHz: minV / div, MaxGHz: maxV / div})
	}
	return out, nil
}

func splitUnit(v string) (string, float64, error) {
	v = strings.TrimSpace(v)
	for _, u := range []struct {
		suffix string
		perGHz float64
	}{{"GHz", 1}, {"MHz", 1e3}, {"kHz", 1e6}, {"Hz", 1e9}} {
		if strings.HasSuffix(v, u.suffix) {
			return strings.TrimSpace(strings.TrimSuffix(v, u.suffix)), u.perGHz, nil
		}
	}
	return "", 0, fmt.Errorf("frequency %q: unknown unit", v)
}

// SplitSpectralWindows expands each row into one row per window listed in
// frequency_support, overwriting the frequency range. Rows without a
// parseable frequency_support are kept unchanged; skipped counts them.
func SplitSpectralWindows(t obscore.Table) (out obscore.Table, skipped int) {
	out.Columns = append([]string(nil), t.Columns...)
	if !t.Has(obscore.ColFrequencySupport) {
		for _, r := range t.Rows {
			out.Rows = append(out.Rows, r.Clone())
		}
		return out, len(t.Rows)
	}
	for _, c := range []string{obscore.ColMinFreqGHz, obscore.ColMaxFreqGHz} {
		if !out.Has(c) {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, r := range t.Rows {
		raw, _ := r.Get(obscore.ColFrequencySupport)
		windows, err := ParseFrequencySupport(raw)
		if err != nil || len(windows) == 0 {
			out.Rows = append(out.Rows, r.Clone())
			skipped++
			continue
		}
		for _, w := range windows {
			cp := r.Clone()
			cp[obscore.ColMinFreqGHz] = strconv.FormatFloat(w.MinGHz, 'g', -1, 64)
			cp[obscore.ColMaxFreqGHz] = strconv.FormatFloat(w.MaxGHz, 'g', -1, 64)
			out.Rows = append(out.Rows, cp)
		}
	}
	return out, skipped
}
