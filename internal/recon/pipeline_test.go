package recon

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleFixture() (*fakeResolver, *fakeTransport) {
	resolver := &fakeResolver{
		a: map[string]string{
			"www.example.com": "93.184.216.10",
			"api.example.com": "93.184.216.20",
		},
		prefixA: map[string]string{
			"nonexistent-": "192.0.2.1",
			"invalid-":     "192.0.2.2",
			"test-":        "192.0.2.3",
		},
	}
	rt := &fakeTransport{responses: map[string]fakeResponse{
		"https://www.example.com":       {status: 200, header: secureHeaders()},
		"https://api.example.com":       {status: 200, header: secureHeaders()},
		"https://api.example.com/admin": {status: 200},
	}}
	return resolver, rt
}

func TestPipeline_Run_Example(t *testing.T) {
	resolver, rt := exampleFixture()
	p := New(resolver, nil, fakePassive{names: []string{"api.example.com"}},
		WithWordlist([]string{"www"}),
		WithProbeSuffix(fixedSuffix()),
	)
	p.client.Transport = rt

	var stages []string
	report, err := p.Run(context.Background(), "example.com", nil, NoCheckpoint, func(s string) {
		stages = append(stages, s)
	})
	require.NoError(t, err)

	assert.Equal(t, Stages, stages)
	assert.Empty(t, report.WildcardIP)
	assert.Equal(t, 2, report.TotalCandidates)
	assert.Equal(t, []string{"api.example.com", "www.example.com"}, report.Hosts())
	for _, s := range report.Subdomains {
		require.NotNil(t, s.HTTPStatus)
		assert.Equal(t, 200, *s.HTTPStatus)
	}

	assert.Equal(t, []Finding{
		{Host: "api.example.com", Type: FindingExposure, Severity: SeverityMedium},
	}, report.Findings)
	assert.Equal(t, []string{"/admin"}, report.Subdomains[0].Vulnerabilities.Exposure)
}

func TestPipeline_Run_ExplicitSubdomains(t *testing.T) {
	resolver, rt := exampleFixture()
	p := New(resolver, nil, fakePassive{err: errors.New("must not be called")},
		WithProbeSuffix(fixedSuffix()))
	p.client.Transport = rt

	report, err := p.Run(context.Background(), "example.com", []string{"www.example.com"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com"}, report.Hosts())
	assert.Empty(t, report.Findings)
}

func TestPipeline_Run_CheckpointAborts(t *testing.T) {
	errStop := errors.New("stop")

	for stopAt := 0; stopAt <= len(Stages); stopAt++ {
		resolver, rt := exampleFixture()
		p := New(resolver, nil, nil, WithWordlist([]string{"www"}), WithProbeSuffix(fixedSuffix()))
		p.client.Transport = rt

		calls := 0
		cp := func(context.Context) error {
			if calls == stopAt {
				return errStop
			}
			calls++
			return nil
		}
		var stages []string
		report, err := p.Run(context.Background(), "example.com", nil, cp, func(s string) {
			stages = append(stages, s)
		})

		assert.ErrorIs(t, err, errStop)
		assert.Nil(t, report)
		assert.Equal(t, Stages[:min(stopAt, len(Stages))], stages)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	status := 200
	targets := []Target{
		{Host: "b.example.com", HTTPStatus: &status},
		{Host: "a.example.com"},
	}
	det := Detections{
		Exposure:         map[string][]string{"b.example.com": {"/.env"}},
		Misconfiguration: map[string]*Misconfiguration{"a.example.com": {MissingHeaders: []string{"Referrer-Policy"}, Server: "Unknown", CVEs: []string{}}},
		Takeover:         map[string]*Takeover{"b.example.com": {Provider: "Heroku", CNAME: "x.herokudns.com"}},
	}

	first, err := json.Marshal(Merge("example.com", &Validation{TotalCandidates: 3}, targets, det))
	require.NoError(t, err)
	reversed := []Target{targets[1], targets[0]}
	second, err := json.Marshal(Merge("example.com", &Validation{TotalCandidates: 3}, reversed, det))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))

	report := Merge("example.com", nil, targets, det)
	assert.Equal(t, []Finding{
		{Host: "a.example.com", Type: FindingMisconfiguration, Severity: SeverityLow},
		{Host: "b.example.com", Type: FindingExposure, Severity: SeverityHigh},
		{Host: "b.example.com", Type: FindingTakeover, Severity: SeverityHigh},
	}, report.Findings)
}
