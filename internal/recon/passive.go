package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PassiveSource returns subdomains of a domain from a third-party dataset
type PassiveSource interface {
	Subdomains(ctx context.Context, domain string) ([]string, error)
}

// DefaultCTBaseURL is the crt.sh certificate transparency search endpoint
const DefaultCTBaseURL = "https://crt.sh/"

// CTSource queries crt.sh for certificates issued to %.<domain>
type CTSource struct {
	baseURL string
	client  *http.Client
}

// NewCTSource creates a certificate transparency source. An empty baseURL
// selects DefaultCTBaseURL.
func NewCTSource(baseURL string, timeout time.Duration) *CTSource {
	if baseURL == "" {
		baseURL = DefaultCTBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CTSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type ctEntry struct {
	NameValue string `json:"name_value"`
}

// Subdomains implements PassiveSource
func (s *CTSource) Subdomains(ctx context.Context, domain string) ([]string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid crt.sh base url: %w", err)
	}
	q := u.Query()
	q.Set("q", "%."+domain)
	q.Set("output", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build crt.sh request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crt.sh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("crt.sh returned HTTP %d", resp.StatusCode)
	}

	var entries []ctEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse crt.sh response: %w", err)
	}

	set := make(map[string]struct{})
	for _, entry := range entries {
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
			if isSubdomainOf(name, domain) {
				set[name] = struct{}{}
			}
		}
	}
	return sortedKeys(set), nil
}
