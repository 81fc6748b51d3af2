package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strings"

	"siosearch/internal/core"
	"siosearch/pkg/obscore"
)

// RenderCSV writes a header row plus one line per dataset row. Text cells
// are written verbatim, numbers in shortest round-trip form and unknown
// numbers as empty fields.
func RenderCSV(d obscore.Dataset, columns []obscore.Column) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	headers := make([]string, len(columns))
	for i, column := range columns {
		headers[i] = column.Name
	}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range d.Rows {
		record := make([]string, len(columns))
		for i, column := range columns {
			record[i] = csvValue(row[column.Name])
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return core.FormatFloat(t)
	default:
		return fmt.Sprint(t)
	}
}

// RenderLaTeX writes a booktabs tabular: text columns left aligned, numeric
// columns right aligned with six decimals, unknown numbers as NaN.
func RenderLaTeX(d obscore.Dataset, columns []obscore.Column) []byte {
	var b strings.Builder
	b.WriteString(`\begin{tabular}{`)
	for _, c := range columns {
		if c.Kind == obscore.KindFloat {
			b.WriteByte('r')
		} else {
			b.WriteByte('l')
		}
	}
	b.WriteString("}\n\\toprule\n")
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = escapeLaTeX(c.Name)
	}
	writeLaTeXRow(&b, cells)
	b.WriteString("\\midrule\n")
	for _, row := range d.Rows {
		for i, c := range columns {
			cells[i] = latexValue(row[c.Name])
		}
		writeLaTeXRow(&b, cells)
	}
	b.WriteString("\\bottomrule\n\\end{tabular}\n")
	return []byte(b.String())
}

func writeLaTeXRow(b *strings.Builder, cells []string) {
	b.WriteString(strings.Join(cells, " & "))
	b.WriteString(" \\\\\n")
}

func latexValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return escapeLaTeX(t)
	case float64:
		if math.IsNaN(t) {
			return "NaN"
		}
		return fmt.Sprintf("%.6f", t)
	default:
		return escapeLaTeX(fmt.Sprint(t))
	}
}

var latexSpecials = map[rune]string{
	'\\': `\textbackslash{}`,
	'&':  `\&`,
	'%':  `\%`,
	'$':  `\$`,
	'#':  `\#`,
	'_':  `\_`,
	'{':  `\{`,
	'}':  `\}`,
	'~':  `\textasciitilde{}`,
	'^':  `\textasciicircum{}`,
}

func escapeLaTeX(s string) string {
	var b strings.Builder
	for _, r := range s {
		if rep, ok := latexSpecials[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
