// Package download fetches the archive products of an ALMA member OUS via the
// datalink service and caches them in a blob store.
package download

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Link is one row of a datalink response.
type Link struct {
	ID            string
	AccessURL     string
	ServiceDef    string
	ErrorMessage  string
	Semantics     string
	Description   string
	ContentType   string
	ContentLength int64
}

// IsNested reports whether the link points at another datalink document.
func (l Link) IsNested() bool {
	return l.Semantics == "#datalink" || strings.Contains(l.ContentType, "content=datalink")
}

// Downloadable reports whether the link is a plain file that can be fetched.
func (l Link) Downloadable() bool {
	return l.AccessURL != "" && l.ErrorMessage == "" && l.ServiceDef == "" && !l.IsNested()
}

type voTable struct {
	Resources []voResource `xml:"RESOURCE"`
}

type voResource struct {
	Type   string     `xml:"type,attr"`
	Tables []voTableT `xml:"TABLE"`
	Infos  []voInfo   `xml:"INFO"`
}

type voInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type voTableT struct {
	Fields []struct {
		Name string `xml:"name,attr"`
	} `xml:"FIELD"`
	Rows []struct {
		Cells []string `xml:"TD"`
	} `xml:"DATA>TABLEDATA>TR"`
}

// ParseLinks decodes a datalink VOTable with TABLEDATA serialisation.
func ParseLinks(r io.Reader) ([]Link, error) {
	var vt voTable
	if err := xml.NewDecoder(r).Decode(&vt); err != nil {
		return nil, fmt.Errorf("decode datalink votable: %w", err)
	}
	var links []Link
	for _, res := range vt.Resources {
		for _, info := range res.Infos {
			if info.Name == "QUERY_STATUS" && info.Value == "ERROR" {
				return nil, fmt.Errorf("datalink error: %s", strings.TrimSpace(info.Text))
			}
		}
		if res.Type != "" && res.Type != "results" {
			continue
		}
		for _, tbl := range res.Tables {
			idx := make(map[string]int, len(tbl.Fields))
			for i, f := range tbl.Fields {
				idx[f.Name] = i
			}
			cell := func(cells []string, name string) string {
				i, ok := idx[name]
				if !ok || i >= len(cells) {
					return ""
				}
				return strings.TrimSpace(cells[i])
			}
			for _, tr := range tbl.Rows {
				l := Link{
					ID:           cell(tr.Cells, "ID"),
					AccessURL:    cell(tr.Cells, "access_url"),
					ServiceDef:   cell(tr.Cells, "service_def"),
					ErrorMessage: cell(tr.Cells, "error_message"),
					Semantics:    cell(tr.Cells, "semantics"),
					Description:  cell(tr.Cells, "description"),
					ContentType:  cell(tr.Cells, "content_type"),
				}
				if n, err := strconv.ParseInt(cell(tr.Cells, "content_length"), 10, 64); err == nil {
					l.ContentLength = n
				}
				links = append(links, l)
			}
		}
	}
	return links, nil
}
