// Package archive queries the ALMA science archive through its TAP service
// and returns ObsCore rows ready for harmonisation.
package archive

import (
	"fmt"
	"sort"
	"strings"
)

// Mirror names an ALMA Regional Centre hosting the archive services.
type Mirror string

const (
	MirrorESO  Mirror = "eso"
	MirrorNRAO Mirror = "nrao"
	MirrorNAOJ Mirror = "naoj"
)

var mirrorHosts = map[Mirror]string{
	MirrorESO:  "https://almascience.eso.org",
	MirrorNRAO: "https://almascience.nrao.edu",
	MirrorNAOJ: "https://almascience.nao.ac.jp",
}

// Mirrors lists the known mirrors in name order.
func Mirrors() []Mirror {
	out := make([]Mirror, 0, len(mirrorHosts))
	for m := range mirrorHosts {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseMirror accepts a mirror name in any case.
func ParseMirror(s string) (Mirror, error) {
	m := Mirror(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := mirrorHosts[m]; !ok {
		return "", fmt.Errorf("unknown archive mirror %q (want one of %v)", s, Mirrors())
	}
	return m, nil
}

// Host returns the mirror's base URL.
func (m Mirror) Host() string { return mirrorHosts[m] }

// TAPURL returns the mirror's TAP service root.
func (m Mirror) TAPURL() string { return m.Host() + "/tap" }

// DatalinkURL returns the mirror's synchronous datalink endpoint.
func (m Mirror) DatalinkURL() string { return m.Host() + "/datalink/sync" }
