package recon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// placeholderPatterns mark names that are certificate or DNS placeholders
// rather than real hosts
var placeholderPatterns = []string{
	"*", "wildcard", "invalid", "nonexistent", "random",
	"fake", "dummy", "placeholder", "test123", "example", "sample",
}

// probePrefixes name the synthetic subdomains used to detect wildcard DNS
var probePrefixes = []string{"nonexistent", "invalid", "test"}

// Validation is the outcome of DNS validation
type Validation struct {
	Targets         []Target `json:"targets"`
	WildcardIP      string   `json:"wildcard_ip,omitempty"`
	TotalCandidates int      `json:"total_candidates"`
}

// IsPlaceholder reports whether the subdomain labels of host contain a
// placeholder token. The registered domain itself is not inspected.
func IsPlaceholder(host, domain string) bool {
	labels := strings.ToLower(strings.TrimSuffix(host, "."+domain))
	for _, pattern := range placeholderPatterns {
		if strings.Contains(labels, pattern) {
			return true
		}
	}
	return false
}

// WildcardSentinel resolves three random nonexistent names under domain and
// returns their IP when they all collapse to exactly one distinct address.
func (p *Pipeline) WildcardSentinel(ctx context.Context, domain string) string {
	ips := make(map[string]struct{})
	for _, prefix := range probePrefixes {
		name := fmt.Sprintf("%s-%d.%s", prefix, p.probeSuffix(), domain)
		ip, err := p.resolver.LookupA(ctx, name)
		if err != nil || ip == "" {
			continue
		}
		ips[ip] = struct{}{}
	}
	if len(ips) != 1 {
		return ""
	}
	for ip := range ips {
		return ip
	}
	return ""
}

// Validate resolves candidates and drops placeholders and names that resolve
// to the wildcard sentinel. Unresolved candidates are kept.
func (p *Pipeline) Validate(ctx context.Context, domain string, candidates []string) (*Validation, error) {
	sentinel := p.WildcardSentinel(ctx, domain)
	if sentinel != "" {
		p.logger.InfoContext(ctx, "Wildcard DNS detected",
			slog.String("domain", domain),
			slog.String("ip", sentinel),
		)
	}

	seen := make(map[string]struct{}, len(candidates))
	var names []string
	for _, c := range candidates {
		host := strings.ToLower(strings.TrimSpace(c))
		if host == "" || IsPlaceholder(host, domain) {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		names = append(names, host)
	}

	var (
		mu      sync.Mutex
		targets = make([]Target, 0, len(names))
	)
	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for _, host := range names {
		g.Go(func() error {
			ip, err := p.resolver.LookupA(gctx, host)
			if err != nil {
				ip = ""
			}
			if sentinel != "" && ip == sentinel {
				return nil
			}
			mu.Lock()
			targets = append(targets, Target{Host: host, IP: ip})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Host < targets[j].Host })
	return &Validation{
		Targets:         targets,
		WildcardIP:      sentinel,
		TotalCandidates: len(candidates),
	}, nil
}
