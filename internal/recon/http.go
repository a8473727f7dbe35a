package recon

import (
	"context"
	"io"
	"net/http"
)

// maxBodyDrain caps how much of a response body is read before closing
const maxBodyDrain = 64 << 10

// fetch issues a GET and returns the status and headers. The body is drained
// and closed.
func (p *Pipeline) fetch(ctx context.Context, url string) (int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	return resp.StatusCode, resp.Header, nil
}

// limitedFetch waits on the detector rate limiter before fetching
func (p *Pipeline) limitedFetch(ctx context.Context, url string) (int, http.Header, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	return p.fetch(ctx, url)
}

const userAgent = "scan-control/1.0"
