package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchStrictBoundaries(t *testing.T) {
	j10 := Transition{Label: "J=1-0", FreqGHz: 43.423864}
	obs := Observations{Schema: fullSchema, Records: []ObservationRecord{
		record("lower edge", "p", "1", 43.423864, 44.0, 0.1, "m1"),
		record("upper edge", "p", "1", 43.0, 43.423864, 0.1, "m2"),
		record("inside", "p", "1", 43.0, 44.0, 0.1, "m3"),
		record("outside", "p", "1", 44.0, 45.0, 0.1, "m4"),
		record("unknown bounds", "p", "1", nan, 44.0, 0.1, "m5"),
	}}
	got := Match(obs, TransitionTable{j10})
	require.Len(t, got.Records, 1)
	assert.Equal(t, "inside", got.Records[0].Source)
	assert.Equal(t, j10, got.Records[0].Transition)
	assert.Equal(t, fullSchema, got.Schema)
}

func TestMatchDuplicatesRecordPerCoveredTransition(t *testing.T) {
	rec := record("AS 209", "p", "1", 43.0, 44.0, 0.2, "m1")
	table := TransitionTable{{Label: "J=1-0", FreqGHz: 43.423864}, {Label: "synthetic", FreqGHz: 43.5}}
	got := Match(Observations{Schema: fullSchema, Records: []ObservationRecord{rec}}, table)
	require.Len(t, got.Records, 2)
	assert.Equal(t, rec, got.Records[0].ObservationRecord)
	assert.Equal(t, rec, got.Records[1].ObservationRecord)
	assert.Equal(t, "J=1-0", got.Records[0].Transition.Label)
	assert.Equal(t, "synthetic", got.Records[1].Transition.Label)
}

func TestMatchEmpty(t *testing.T) {
	obs := Observations{Records: []ObservationRecord{record("x", "", "", 100, 110, nan, "m")}}
	got := Match(obs, SiOV0Transitions())
	assert.True(t, got.Empty())
}

func TestMatchSiOLadderBandThree(t *testing.T) {
	obs := Observations{Records: []ObservationRecord{record("HD 163296", "", "3", 84.0, 88.0, 0.3, "m")}}
	got := Match(obs, SiOV0Transitions())
	require.Len(t, got.Records, 1)
	assert.Equal(t, "J=2-1", got.Records[0].Transition.Label)
	assert.Equal(t, map[string]int{"HD 163296": 1}, got.CountBySource())
}

func TestTransitionTableValidate(t *testing.T) {
	require.NoError(t, SiOV0Transitions().Validate())
	assert.Error(t, TransitionTable{}.Validate())
	assert.Error(t, TransitionTable{{Label: "", FreqGHz: 1}}.Validate())
	assert.Error(t, TransitionTable{{Label: "a", FreqGHz: 1}, {Label: "a", FreqGHz: 2}}.Validate())
	assert.Error(t, TransitionTable{{Label: "a", FreqGHz: -1}}.Validate())
	assert.Error(t, TransitionTable{{Label: "a", FreqGHz: nan}}.Validate())
}
