package recon

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type fingerprint struct {
	suffix   string
	provider string
}

// takeoverFingerprints are matched in order against every CNAME in the chain
var takeoverFingerprints = []fingerprint{
	{suffix: "github.io", provider: "GitHub Pages"},
	{suffix: "amazonaws.com", provider: "AWS S3"},
	{suffix: "herokudns.com", provider: "Heroku"},
	{suffix: "azurewebsites.net", provider: "Azure App Service"},
	{suffix: "cloudfront.net", provider: "AWS CloudFront"},
}

// MatchTakeover returns the first fingerprint found in chain
func MatchTakeover(chain []string) (*Takeover, bool) {
	for _, cname := range chain {
		lower := strings.ToLower(cname)
		for _, fp := range takeoverFingerprints {
			if strings.Contains(lower, fp.suffix) {
				return &Takeover{Provider: fp.provider, CNAME: cname}, true
			}
		}
	}
	return nil, false
}

// CheckTakeover walks each host's CNAME chain looking for third-party
// hosting providers.
func (p *Pipeline) CheckTakeover(ctx context.Context, hosts []string) map[string]*Takeover {
	var (
		mu  sync.Mutex
		out = make(map[string]*Takeover)
	)

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for _, host := range hosts {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return nil
			}
			chain, err := p.resolver.LookupCNAME(gctx, host)
			if err != nil {
				return nil
			}
			if t, ok := MatchTakeover(chain); ok {
				mu.Lock()
				out[host] = t
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
