package recon

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPipeline(resolver Resolver, rt http.RoundTripper) *Pipeline {
	return New(resolver, &http.Client{Transport: rt}, nil, WithProbeSuffix(fixedSuffix()))
}

func TestProbe(t *testing.T) {
	rt := &fakeTransport{responses: map[string]fakeResponse{
		"https://up.example.com":   {status: 200},
		"https://auth.example.com": {status: 401},
	}}
	p := newTestPipeline(&fakeResolver{}, rt)

	targets := p.Probe(context.Background(), []Target{
		{Host: "up.example.com"}, {Host: "auth.example.com"}, {Host: "down.example.com"},
	})

	assert.Equal(t, 200, *targets[0].HTTPStatus)
	assert.Equal(t, 401, *targets[1].HTTPStatus)
	assert.Nil(t, targets[2].HTTPStatus)
}

func TestCheckExposure(t *testing.T) {
	rt := &fakeTransport{responses: map[string]fakeResponse{
		"https://a.example.com/.env":   {status: 200},
		"http://a.example.com/.env":    {status: 200},
		"http://a.example.com/admin":   {status: 403},
		"https://a.example.com/config": {status: 404},
		"https://b.example.com/backup": {status: 500},
	}}
	p := newTestPipeline(&fakeResolver{}, rt)

	got := p.CheckExposure(context.Background(), []string{"a.example.com", "b.example.com", "c.example.com"})

	assert.Equal(t, map[string][]string{"a.example.com": {"/.env", "/admin"}}, got)
}

func TestCheckMisconfiguration(t *testing.T) {
	partial := http.Header{}
	partial.Set("Content-Security-Policy", "default-src 'self'")
	partial.Set("Strict-Transport-Security", "max-age=1")
	partial.Set("Server", "Apache/2.4.49")

	rt := &fakeTransport{responses: map[string]fakeResponse{
		"https://secure.example.com": {status: 200, header: secureHeaders()},
		"https://apache.example.com": {status: 200, header: partial},
		"http://plain.example.com":   {status: 200},
	}}
	p := newTestPipeline(&fakeResolver{}, rt)

	got := p.CheckMisconfiguration(context.Background(),
		[]string{"secure.example.com", "apache.example.com", "plain.example.com", "down.example.com"})

	assert.Len(t, got, 2)
	assert.Equal(t, &Misconfiguration{
		MissingHeaders: []string{"X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy"},
		Server:         "Apache/2.4.49",
		CVEs:           []string{"CVE-2021-41773", "CVE-2021-42013"},
	}, got["apache.example.com"])
	assert.Equal(t, "Unknown", got["plain.example.com"].Server)
	assert.Equal(t, SecurityHeaders, got["plain.example.com"].MissingHeaders)
	assert.Empty(t, got["plain.example.com"].CVEs)
}

func TestLookupCVEs(t *testing.T) {
	tests := []struct {
		banner string
		want   []string
	}{
		{"nginx/1.18.0", []string{"CVE-2021-23017"}},
		{"GitHub.com Pages", []string{}},
		{"GitHub Pages", []string{"CVE-2020-11022"}},
		{"Unknown", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.banner, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupCVEs(tt.banner))
		})
	}
}

func TestCheckTakeover(t *testing.T) {
	resolver := &fakeResolver{cname: map[string][]string{
		"docs.example.com":   {"example.github.io"},
		"assets.example.com": {"edge.example.net", "d111.cloudfront.net"},
		"app.example.com":    {"lb.example.net"},
	}}
	p := newTestPipeline(resolver, &fakeTransport{})

	got := p.CheckTakeover(context.Background(),
		[]string{"docs.example.com", "assets.example.com", "app.example.com", "none.example.com"})

	assert.Equal(t, map[string]*Takeover{
		"docs.example.com":   {Provider: "GitHub Pages", CNAME: "example.github.io"},
		"assets.example.com": {Provider: "AWS CloudFront", CNAME: "d111.cloudfront.net"},
	}, got)
}

func TestSeverity(t *testing.T) {
	t.Run("exposure", func(t *testing.T) {
		assert.Equal(t, SeverityHigh, ExposureSeverity([]string{"/admin", "/.git/config"}))
		assert.Equal(t, SeverityMedium, ExposureSeverity([]string{"/debug"}))
		assert.Equal(t, SeverityLow, ExposureSeverity([]string{"/metrics"}))
	})

	t.Run("misconfiguration", func(t *testing.T) {
		assert.Equal(t, SeverityMedium, MisconfigurationSeverity(SecurityHeaders))
		assert.Equal(t, SeverityHigh, MisconfigurationSeverity(SecurityHeaders[1:4]))
		assert.Equal(t, SeverityLow, MisconfigurationSeverity([]string{"Referrer-Policy"}))
	})

	t.Run("takeover", func(t *testing.T) {
		assert.Equal(t, SeverityHigh, TakeoverSeverity())
	})
}
