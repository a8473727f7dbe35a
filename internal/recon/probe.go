package recon

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Probe requests https://<host>/ for every target concurrently and records
// the status code. A failed request leaves HTTPStatus nil. Probe returns
// only after every request has finished.
func (p *Pipeline) Probe(ctx context.Context, targets []Target) []Target {
	out := make([]Target, len(targets))
	copy(out, targets)

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i := range out {
		g.Go(func() error {
			status, _, err := p.fetch(gctx, "https://"+out[i].Host)
			if err != nil {
				return nil
			}
			out[i].HTTPStatus = &status
			return nil
		})
	}
	_ = g.Wait()
	return out
}
