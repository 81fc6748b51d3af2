package obscore

import (
	"encoding/json"
	"math"
)

// Dataset is a rendered report table: an ordered column schema and rows keyed
// by column name. Text cells hold strings and numeric cells hold float64
// (NaN for unknown).
type Dataset struct {
	Name   string           `json:"name"`
	Schema []Column         `json:"schema"`
	Rows   []map[string]any `json:"rows"`
}

// ColumnNames returns the schema column names in order.
func (d Dataset) ColumnNames() []string {
	out := make([]string, len(d.Schema))
	for i, c := range d.Schema {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (d Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Schema {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Project returns the columns of d named in names, in that order. Names not
// present in d are skipped.
func (d Dataset) Project(names []string) []Column {
	out := make([]Column, 0, len(names))
	for _, n := range names {
		if c, ok := d.Column(n); ok {
			out = append(out, c)
		}
	}
	return out
}

type datasetJSON struct {
	Name   string           `json:"name"`
	Schema []Column         `json:"schema"`
	Rows   []map[string]any `json:"rows"`
}

// MarshalJSON encodes NaN cells as null.
func (d Dataset) MarshalJSON() ([]byte, error) {
	rows := make([]map[string]any, len(d.Rows))
	for i, row := range d.Rows {
		cp := make(map[string]any, len(row))
		for k, v := range row {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				cp[k] = nil
				continue
			}
			cp[k] = v
		}
		rows[i] = cp
	}
	return json.Marshal(datasetJSON{Name: d.Name, Schema: d.Schema, Rows: rows})
}

// UnmarshalJSON restores null numeric cells as NaN.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	var raw datasetJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	kinds := make(map[string]Kind, len(raw.Schema))
	for _, c := range raw.Schema {
		kinds[c.Name] = c.Kind
	}
	for _, row := range raw.Rows {
		for k, v := range row {
			if v == nil && kinds[k] == KindFloat {
				row[k] = math.NaN()
			}
		}
	}
	*d = Dataset(raw)
	return nil
}
