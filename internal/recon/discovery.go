package recon

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// DefaultWordlist is expanded against the target domain during discovery
var DefaultWordlist = []string{
	"www", "api", "admin", "dev", "test",
	"staging", "beta", "mail", "blog",
	"dashboard", "portal", "internal",
}

// Bruteforce expands the wordlist against domain
func (p *Pipeline) Bruteforce(domain string) []string {
	out := make([]string, 0, len(p.wordlist))
	for _, word := range p.wordlist {
		word = strings.TrimSpace(strings.ToLower(word))
		if word == "" {
			continue
		}
		out = append(out, word+"."+domain)
	}
	return out
}

// Discover returns the sorted union of wordlist candidates and names found by
// the passive source. A passive source failure yields no passive names.
func (p *Pipeline) Discover(ctx context.Context, domain string) []string {
	set := make(map[string]struct{})
	for _, name := range p.Bruteforce(domain) {
		set[name] = struct{}{}
	}

	if p.passive != nil {
		names, err := p.passive.Subdomains(ctx, domain)
		if err != nil {
			p.logger.WarnContext(ctx, "Passive discovery failed",
				slog.String("domain", domain),
				slog.String("error", err.Error()),
			)
		}
		for _, name := range names {
			set[name] = struct{}{}
		}
	}

	return sortedKeys(set)
}

// isSubdomainOf reports whether host is a strict subdomain of domain
func isSubdomainOf(host, domain string) bool {
	return strings.HasSuffix(host, "."+domain) && len(host) > len(domain)+1
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
