package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siosearch/internal/core"
	"siosearch/pkg/obscore"
)

func sampleRun(id string, started time.Time) core.RunRecord {
	return core.RunRecord{
		ID:              id,
		StartedAt:       started,
		CompletedAt:     started.Add(90 * time.Second),
		Targets:         []string{"AS 209", "GM Aur"},
		Mirror:          "eso",
		RadiusArcmin:    1,
		Transitions:     core.SiOV0Transitions()[:2],
		ObservationRows: 12,
		Spw: obscore.Dataset{
			Name:   "sio_spw_matches",
			Schema: []obscore.Column{{Name: obscore.ColSource, Kind: obscore.KindText}, {Name: obscore.ColAngResArcsec, Kind: obscore.KindFloat}},
			Rows:   []map[string]any{{obscore.ColSource: "AS 209", obscore.ColAngResArcsec: math.NaN()}},
		},
		Mous: obscore.Dataset{
			Name:   "sio_mous_summary",
			Schema: []obscore.Column{{Name: obscore.ColMousID, Kind: obscore.KindText}},
			Rows:   []map[string]any{{obscore.ColMousID: "uid://A001/X1"}},
		},
		Artifacts: []core.Artifact{{Name: "sio_spw_matches.csv", Format: obscore.FormatCSV, Rows: 1}},
	}
}

func TestStoreRecordListGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	store, err := New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.Equal(t, path, store.Path())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, sampleRun("older", base)))
	require.NoError(t, store.RecordRun(ctx, sampleRun("newer", base.Add(time.Hour))))

	list, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, []string{"AS 209", "GM Aur"}, list[0].Targets)
	assert.Equal(t, 1, list[0].SpwRows)
	assert.Equal(t, 1, list[0].MousRows)
	assert.True(t, list[1].StartedAt.Equal(base))

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := store.GetRun(ctx, "older")
	require.NoError(t, err)
	want := sampleRun("older", base)
	diff := cmp.Diff(want, got, cmpopts.EquateNaNs(), cmpopts.EquateApproxTime(0))
	assert.Empty(t, diff)
}

func TestStoreUpsertReplacesRun(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := sampleRun("r1", time.Now().UTC())
	require.NoError(t, store.RecordRun(ctx, rec))
	rec.Mirror = "nrao"
	require.NoError(t, store.RecordRun(ctx, rec))

	list, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "nrao", list[0].Mirror)
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.GetRun(ctx, "nope")
	require.ErrorIs(t, err, core.ErrRunNotFound)
	require.Error(t, store.RecordRun(ctx, core.RunRecord{}))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	first, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.RecordRun(ctx, sampleRun("keep", time.Now().UTC())))
	require.NoError(t, first.Close())

	second, err := New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	got, err := second.GetRun(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
}
