package core

import (
	"context"
	"errors"
	"math"

	"siosearch/pkg/obscore"
)

func obsRow(source, project, band, minFreq, maxFreq, res, mous string) obscore.Row {
	return obscore.Row{
		obscore.ColSource:       source,
		obscore.ColProjectCode:  project,
		obscore.ColBandList:     band,
		obscore.ColMinFreqGHz:   minFreq,
		obscore.ColMaxFreqGHz:   maxFreq,
		obscore.ColAngResArcsec: res,
		obscore.ColMemberOUSUID: mous,
	}
}

func fullTable(rows ...obscore.Row) obscore.Table {
	return obscore.Table{
		Columns: []string{
			obscore.ColSource, obscore.ColProjectCode, obscore.ColBandList,
			obscore.ColMinFreqGHz, obscore.ColMaxFreqGHz, obscore.ColAngResArcsec, obscore.ColMemberOUSUID,
		},
		Rows: rows,
	}
}

func record(source, project, band string, minFreq, maxFreq, res float64, mous string) ObservationRecord {
	return ObservationRecord{Source: source, Project: project, Band: band, MinFreqGHz: minFreq, MaxFreqGHz: maxFreq, AngResArcsec: res, MousID: mous}
}

var fullSchema = Schema{HasProject: true, HasBand: true}

type fakeQuerier struct {
	tables map[string]obscore.Table
	errs   map[string]error
	calls  []QueryRequest
}

func (f *fakeQuerier) Query(_ context.Context, req QueryRequest) (obscore.Table, error) {
	f.calls = append(f.calls, req)
	if err := f.errs[req.Target]; err != nil {
		return obscore.Table{}, err
	}
	return f.tables[req.Target], nil
}

type fakeWriter struct {
	calls int
	spw   SpwTable
	mous  MousTable
	err   error
}

func (f *fakeWriter) Write(_ context.Context, _ string, spw SpwTable, mous MousTable) ([]Artifact, error) {
	f.calls++
	f.spw, f.mous = spw, mous
	if f.err != nil {
		return nil, f.err
	}
	return []Artifact{{Name: "sio_spw_matches.csv", Path: "sio_spw_matches.csv", Format: obscore.FormatCSV, Rows: len(spw.Records)}}, nil
}

type fakeRetriever struct {
	failing map[string]bool
	calls   []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, id string, _ bool) error {
	f.calls = append(f.calls, id)
	if f.failing[id] {
		return errors.New("archive unavailable")
	}
	return nil
}

type fakeRecorder struct {
	runs []RunRecord
	err  error
}

func (f *fakeRecorder) RecordRun(_ context.Context, run RunRecord) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

type metricsCall struct {
	op      string
	success bool
	rows    int
	skipped int
}

type captureMetrics struct{ calls []metricsCall }

func (c *captureMetrics) Observe(_ context.Context, r StageReport) {
	c.calls = append(c.calls, metricsCall{op: r.Stage, success: r.Success(), rows: r.Rows, skipped: r.Skipped})
}

func (c *captureMetrics) ops() []string {
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.op
	}
	return out
}

var nan = math.NaN()
