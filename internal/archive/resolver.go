package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultResolverURL is the CDS Sesame plain-text endpoint, queried across
// Simbad, NED and VizieR.
const DefaultResolverURL = "https://cds.unistra.fr/cgi-bin/nph-sesame/-oI/A"

// ErrUnresolved is returned when the name service knows no position for a target.
var ErrUnresolved = errors.New("target name not resolved")

// Coord is an ICRS position in degrees.
type Coord struct {
	RA  float64
	Dec float64
}

func (c Coord) String() string {
	return strconv.FormatFloat(c.RA, 'f', -1, 64) + " " + strconv.FormatFloat(c.Dec, 'f', -1, 64)
}

// Resolver maps a target name to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Coord, error)
}

// ParseCoord reads whitespace-separated "ra dec" in decimal degrees. ok is
// false for anything else; commas separate targets on the command line.
func ParseCoord(s string) (Coord, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Coord{}, false
	}
	ra, err1 := strconv.ParseFloat(fields[0], 64)
	dec, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil || ra < 0 || ra >= 360 || dec < -90 || dec > 90 {
		return Coord{}, false
	}
	return Coord{RA: ra, Dec: dec}, true
}

// SesameResolver resolves names with CDS Sesame.
type SesameResolver struct {
	BaseURL string
	HTTP    *http.Client
	// Before runs ahead of every request; the client uses it for pacing.
	Before func(ctx context.Context) error
}

func (r *SesameResolver) Resolve(ctx context.Context, name string) (Coord, error) {
	if c, ok := ParseCoord(name); ok {
		return c, nil
	}
	if r.Before != nil {
		if err := r.Before(ctx); err != nil {
			return Coord{}, err
		}
	}
	base := r.BaseURL
	if base == "" {
		base = DefaultResolverURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+url.QueryEscape(name), nil)
	if err != nil {
		return Coord{}, err
	}
	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Coord{}, fmt.Errorf("resolve %q: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Coord{}, newHTTPError(req.URL.String(), resp)
	}
	c, err := parseSesame(resp.Body)
	if err != nil {
		return Coord{}, fmt.Errorf("resolve %q: %w", name, err)
	}
	return c, nil
}

// parseSesame takes the first "%J ra dec" line.
func parseSesame(r io.Reader) (Coord, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "%J ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "%J "))
		if len(fields) < 2 {
			continue
		}
		ra, err1 := strconv.ParseFloat(fields[0], 64)
		dec, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		return Coord{RA: ra, Dec: dec}, nil
	}
	if err := sc.Err(); err != nil {
		return Coord{}, err
	}
	return Coord{}, ErrUnresolved
}
