package recon

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var errEmptyDomain = errors.New("domain is required")

// NormalizeDomain lowercases domain, strips a trailing dot and checks that it
// sits under a public suffix.
func NormalizeDomain(domain string) (string, error) {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if d == "" {
		return "", errEmptyDomain
	}
	if strings.ContainsAny(d, "/:@ ") {
		return "", fmt.Errorf("invalid domain %q", domain)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(d); err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", domain, err)
	}
	return d, nil
}
