package recon

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SensitivePaths are requested on every host by the exposure detector
var SensitivePaths = []string{
	"/.env", "/.git/config", "/config", "/debug",
	"/admin", "/metrics", "/backup",
}

func isExposedStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// CheckExposure requests each sensitive path over https and http. Paths that
// answer 200, 401 or 403 on either scheme are reported once, in
// SensitivePaths order. Hosts with no exposed path are absent from the map.
func (p *Pipeline) CheckExposure(ctx context.Context, hosts []string) map[string][]string {
	var (
		mu  sync.Mutex
		out = make(map[string][]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for _, host := range hosts {
		g.Go(func() error {
			var exposed []string
			for _, path := range SensitivePaths {
				for _, scheme := range []string{"https", "http"} {
					status, _, err := p.limitedFetch(gctx, scheme+"://"+host+path)
					if err == nil && isExposedStatus(status) {
						exposed = append(exposed, path)
						break
					}
				}
			}
			if len(exposed) > 0 {
				mu.Lock()
				out[host] = exposed
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
