package archive

import (
	"strconv"
	"strings"

	"siosearch/internal/core"
)

// ObsCoreTable is the archive's ObsCore view.
const ObsCoreTable = "ivoa.obscore"

// BuildADQL renders the cone search for req around c.
func BuildADQL(c Coord, req core.QueryRequest) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(ObsCoreTable)
	b.WriteString(" WHERE INTERSECTS(CIRCLE('ICRS',")
	b.WriteString(fmtDeg(c.RA))
	b.WriteByte(',')
	b.WriteString(fmtDeg(c.Dec))
	b.WriteByte(',')
	b.WriteString(fmtDeg(req.RadiusArcmin / 60))
	b.WriteString("),s_region)=1")
	if req.PublicOnly {
		b.WriteString(" AND data_rights='Public'")
	}
	switch req.Published {
	case core.PublishedOnly:
		b.WriteString(" AND publication_year IS NOT NULL")
	case core.PublishedUnpublished:
		b.WriteString(" AND publication_year IS NULL")
	}
	return b.String()
}

func fmtDeg(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
