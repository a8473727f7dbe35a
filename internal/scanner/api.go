package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/recon"
)

// Endpoint is one API operation to audit
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// APIPayload is the payload of the api kind
type APIPayload struct {
	AssetURL  string     `json:"asset_url"`
	Endpoints []Endpoint `json:"endpoints"`
}

// APIFinding is one issue found on an endpoint
type APIFinding struct {
	Issue          string   `json:"issue"`
	Severity       string   `json:"severity"`
	Endpoint       string   `json:"endpoint"`
	MissingHeaders []string `json:"missing_headers,omitempty"`
}

// EndpointStatus records how an endpoint answered an unauthenticated request
type EndpointStatus struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Status *int   `json:"status"`
}

// APIReport is the result of an api scan
type APIReport struct {
	ScanType       string           `json:"scan_type"`
	AssetURL       string           `json:"asset_url"`
	TotalEndpoints int              `json:"total_endpoints"`
	TotalFindings  int              `json:"total_findings"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Endpoints      []EndpointStatus `json:"endpoints"`
	Findings       []APIFinding     `json:"findings"`
}

// apiHeaders must be present on every endpoint response
var apiHeaders = []string{
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
}

const bolaProbeID = "999999"

// API audits a list of endpoints of one API. It runs synchronously.
type API struct {
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewAPI creates the api scanner. rps limits request rate; 0 means unlimited.
func NewAPI(client *http.Client, rps float64) *API {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &API{client: client, limiter: limiter, now: time.Now}
}

// Kind implements Scanner
func (s *API) Kind() string { return KindAPI }

// Synchronous reports true: an API audit finishes inside the create request
func (s *API) Synchronous() bool { return true }

func parseAPIPayload(payload json.RawMessage) (*APIPayload, error) {
	var p APIPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	u, err := url.Parse(p.AssetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: asset_url must be an absolute http(s) URL", domain.ErrInvalidPayload)
	}
	if len(p.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: endpoints must not be empty", domain.ErrInvalidPayload)
	}
	for i, ep := range p.Endpoints {
		if ep.Path == "" {
			return nil, fmt.Errorf("%w: endpoints[%d].path is required", domain.ErrInvalidPayload, i)
		}
		if ep.Method == "" {
			p.Endpoints[i].Method = http.MethodGet
		}
		p.Endpoints[i].Method = strings.ToUpper(p.Endpoints[i].Method)
	}
	return &p, nil
}

// Validate checks that asset_url is an absolute http(s) URL and that at
// least one endpoint is listed
func (s *API) Validate(payload json.RawMessage) error {
	_, err := parseAPIPayload(payload)
	return err
}

// Run audits every endpoint in order, consulting cp between requests
func (s *API) Run(ctx context.Context, payload json.RawMessage, cp recon.Checkpoint) (*Result, error) {
	p, err := parseAPIPayload(payload)
	if err != nil {
		return nil, err
	}

	report := &APIReport{
		ScanType:       "API_SECURITY",
		AssetURL:       p.AssetURL,
		TotalEndpoints: len(p.Endpoints),
		Endpoints:      make([]EndpointStatus, 0, len(p.Endpoints)),
		Findings:       []APIFinding{},
	}

	for _, ep := range p.Endpoints {
		if err := cp(ctx); err != nil {
			return nil, err
		}
		status, findings := s.auditEndpoint(ctx, p.AssetURL, ep)
		report.Endpoints = append(report.Endpoints, EndpointStatus{Method: ep.Method, Path: ep.Path, Status: status})
		report.Findings = append(report.Findings, findings...)
	}
	if err := cp(ctx); err != nil {
		return nil, err
	}

	report.TotalFindings = len(report.Findings)
	report.GeneratedAt = s.now().UTC()
	return &Result{Payload: report}, nil
}

func (s *API) auditEndpoint(ctx context.Context, base string, ep Endpoint) (*int, []APIFinding) {
	var findings []APIFinding

	status, header, err := s.do(ctx, ep.Method, joinURL(base, ep.Path), nil)
	var statusPtr *int
	if err == nil {
		statusPtr = &status
		if status == http.StatusOK {
			findings = append(findings, APIFinding{Issue: "Missing Authentication", Severity: recon.SeverityHigh, Endpoint: ep.Path})
		}
		var missing []string
		for _, h := range apiHeaders {
			if header.Get(h) == "" {
				missing = append(missing, h)
			}
		}
		if len(missing) > 0 {
			findings = append(findings, APIFinding{
				Issue: "Missing Security Headers", Severity: recon.SeverityMedium,
				Endpoint: ep.Path, MissingHeaders: missing,
			})
		}
	}

	if strings.Contains(ep.Path, "{id}") {
		probe := strings.ReplaceAll(ep.Path, "{id}", bolaProbeID)
		if st, _, err := s.do(ctx, ep.Method, joinURL(base, probe), nil); err == nil && st == http.StatusOK {
			findings = append(findings, APIFinding{Issue: "Broken Object Level Authorization (BOLA)", Severity: recon.SeverityHigh, Endpoint: ep.Path})
		}
	}

	if ep.Method == http.MethodPost {
		body := []byte(`{"$ne":null}`)
		if st, _, err := s.do(ctx, ep.Method, joinURL(base, ep.Path), body); err == nil && st == http.StatusOK {
			findings = append(findings, APIFinding{Issue: "Possible NoSQL Injection", Severity: recon.SeverityHigh, Endpoint: ep.Path})
		}
	}

	return statusPtr, findings
}

func (s *API) do(ctx context.Context, method, target string, body []byte) (int, http.Header, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, resp.Header, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
