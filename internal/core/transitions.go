package core

import (
	"fmt"
	"math"
	"strings"
)

// Transition is a named spectral line with its rest frequency in GHz.
type Transition struct {
	Label   string  `json:"label" yaml:"label"`
	FreqGHz float64 `json:"freq_ghz" yaml:"freq_ghz"`
}

// TransitionTable is the ordered list of lines searched for. Order only
// affects scan order, never which records match.
type TransitionTable []Transition

// SiOV0Transitions returns the SiO(v=0) rotational ladder from J=1-0 to J=20-19.
func SiOV0Transitions() TransitionTable {
	return TransitionTable{
		{"J=1-0", 43.423864},
		{"J=2-1", 86.846960},
		{"J=3-2", 130.268610},
		{"J=4-3", 173.688310},
		{"J=5-4", 217.104980},
		{"J=6-5", 260.518200},
		{"J=7-6", 303.927030},
		{"J=8-7", 347.331000},
		{"J=9-8", 390.728730},
		{"J=10-9", 434.120450},
		{"J=11-10", 477.506120},
		{"J=12-11", 520.885480},
		{"J=13-12", 564.258560},
		{"J=14-13", 607.625260},
		{"J=15-14", 650.985560},
		{"J=16-15", 694.339440},
		{"J=17-16", 737.686780},
		{"J=18-17", 781.027470},
		{"J=19-18", 824.361490},
		{"J=20-19", 867.688720},
	}
}

// Validate rejects empty tables, blank or duplicate labels and non-positive frequencies.
func (t TransitionTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("transition table is empty")
	}
	seen := make(map[string]struct{}, len(t))
	for i, tr := range t {
		label := strings.TrimSpace(tr.Label)
		if label == "" {
			return fmt.Errorf("transition %d: label required", i)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("transition %q listed twice", label)
		}
		seen[label] = struct{}{}
		if math.IsNaN(tr.FreqGHz) || math.IsInf(tr.FreqGHz, 0) || tr.FreqGHz <= 0 {
			return fmt.Errorf("transition %q: frequency must be a positive number of GHz", label)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (t TransitionTable) Clone() TransitionTable {
	return append(TransitionTable(nil), t...)
}
