package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNoRecord is returned when a name has no record of the requested type
var ErrNoRecord = errors.New("no record found")

// maxCNAMEDepth bounds CNAME chain walking
const maxCNAMEDepth = 8

// Resolver performs the DNS lookups the pipeline needs
type Resolver interface {
	// LookupA returns the first IPv4 address of host
	LookupA(ctx context.Context, host string) (string, error)
	// LookupCNAME returns the CNAME chain of host in resolution order
	LookupCNAME(ctx context.Context, host string) ([]string, error)
}

// DNSResolver queries a single recursive DNS server
type DNSResolver struct {
	client *dns.Client
	server string
}

// NewDNSResolver creates a resolver for server (host:port). An empty server
// uses the first nameserver of /etc/resolv.conf.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if server == "" {
		server = systemNameserver()
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}
}

func systemNameserver() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return "8.8.8.8:53"
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

// Server returns the nameserver address
func (r *DNSResolver) Server() string {
	return r.server
}

func (r *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns query %s %s: %w", dns.TypeToString[qtype], name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: %s %s", ErrNoRecord, name, dns.RcodeToString[in.Rcode])
	}
	return in, nil
}

// LookupA implements Resolver
func (r *DNSResolver) LookupA(ctx context.Context, host string) (string, error) {
	in, err := r.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return "", err
	}
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s A", ErrNoRecord, host)
}

// LookupCNAME implements Resolver
func (r *DNSResolver) LookupCNAME(ctx context.Context, host string) ([]string, error) {
	var chain []string
	name := host
	for i := 0; i < maxCNAMEDepth; i++ {
		in, err := r.exchange(ctx, name, dns.TypeCNAME)
		if err != nil {
			if len(chain) > 0 {
				break
			}
			return nil, err
		}

		var target string
		for _, rr := range in.Answer {
			if c, ok := rr.(*dns.CNAME); ok {
				target = strings.ToLower(strings.TrimSuffix(c.Target, "."))
				break
			}
		}
		if target == "" {
			break
		}
		chain = append(chain, target)
		name = target
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s CNAME", ErrNoRecord, host)
	}
	return chain, nil
}
