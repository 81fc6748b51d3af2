package obscore

import (
	"sort"
	"strings"
)

// Row is a single archive result keyed by column name. Values keep the
// textual form returned by the archive; an absent key reads as missing.
type Row map[string]string

// Table is an ordered set of rows sharing a column list.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Has reports whether the table declares column name.
func (t Table) Has(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// WithColumn returns a copy of the table with column name set to value on every row.
func (t Table) WithColumn(name, value string) Table {
	out := Table{Columns: append([]string(nil), t.Columns...), Rows: make([]Row, len(t.Rows))}
	if !out.Has(name) {
		out.Columns = append(out.Columns, name)
	}
	for i, r := range t.Rows {
		cp := r.Clone()
		cp[name] = value
		out.Rows[i] = cp
	}
	return out
}

// Concat appends tables in order. The resulting column list is the union of
// all column lists in first-seen order.
func Concat(tables ...Table) Table {
	var out Table
	seen := make(map[string]struct{})
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out.Columns = append(out.Columns, c)
		}
		for _, r := range t.Rows {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	return out
}

// ValueCounts counts rows per distinct value of column, ordered by count
// descending then value ascending.
func (t Table) ValueCounts(column string) []ValueCount {
	counts := make(map[string]int)
	for _, r := range t.Rows {
		counts[r[column]]++
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// ValueCount pairs a column value with the number of rows holding it.
type ValueCount struct {
	Value string
	Count int
}

// Clone copies the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the trimmed value for column and whether it is non-empty.
func (r Row) Get(column string) (string, bool) {
	v := strings.TrimSpace(r[column])
	return v, v != ""
}
