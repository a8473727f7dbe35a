package recon

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SecurityHeaders must be present on a host's root response
var SecurityHeaders = []string{
	"Content-Security-Policy",
	"Strict-Transport-Security",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Referrer-Policy",
}

type serverCVEs struct {
	server string
	cves   []string
}

// cveTable is matched in order against the Server banner
var cveTable = []serverCVEs{
	{server: "apache", cves: []string{"CVE-2021-41773", "CVE-2021-42013"}},
	{server: "nginx", cves: []string{"CVE-2021-23017"}},
	{server: "github pages", cves: []string{"CVE-2020-11022"}},
}

// LookupCVEs returns known CVEs for a Server banner
func LookupCVEs(banner string) []string {
	banner = strings.ToLower(banner)
	for _, entry := range cveTable {
		if strings.Contains(banner, entry.server) {
			return append([]string(nil), entry.cves...)
		}
	}
	return []string{}
}

// MissingHeaders returns the security headers absent from h
func MissingHeaders(h http.Header) []string {
	var missing []string
	for _, name := range SecurityHeaders {
		if h.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// CheckMisconfiguration fetches each host's root over https, falling back to
// http, and reports missing security headers together with the Server banner
// and its known CVEs.
func (p *Pipeline) CheckMisconfiguration(ctx context.Context, hosts []string) map[string]*Misconfiguration {
	var (
		mu  sync.Mutex
		out = make(map[string]*Misconfiguration)
	)

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for _, host := range hosts {
		g.Go(func() error {
			_, header, err := p.limitedFetch(gctx, "https://"+host)
			if err != nil {
				_, header, err = p.limitedFetch(gctx, "http://"+host)
			}
			if err != nil {
				return nil
			}

			missing := MissingHeaders(header)
			if len(missing) == 0 {
				return nil
			}
			server := header.Get("Server")
			if server == "" {
				server = "Unknown"
			}

			mu.Lock()
			out[host] = &Misconfiguration{
				MissingHeaders: missing,
				Server:         server,
				CVEs:           LookupCVEs(server),
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
