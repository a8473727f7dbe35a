package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/recon"
)

// Kinds
const (
	KindSubdomain = "subdomain"
	KindDD        = "dd"
	KindAPI       = "api"
)

// Recon is the part of the recon pipeline scanners depend on
type Recon interface {
	Run(ctx context.Context, domain string, subdomains []string, cp recon.Checkpoint, observe recon.StageObserver) (*recon.Report, error)
	Discover(ctx context.Context, domain string) []string
	Validate(ctx context.Context, domain string, candidates []string) (*recon.Validation, error)
}

// DomainPayload is the payload of the subdomain and dd kinds
type DomainPayload struct {
	Domain     string   `json:"domain"`
	Subdomains []string `json:"subdomains,omitempty"`
}

func parseDomainPayload(payload json.RawMessage) (*DomainPayload, error) {
	var p DomainPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	d, err := recon.NormalizeDomain(p.Domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	p.Domain = d
	return &p, nil
}

// Subdomain runs the full recon pipeline
type Subdomain struct {
	recon  Recon
	logger *slog.Logger
}

// NewSubdomain creates the subdomain scanner
func NewSubdomain(r Recon, logger *slog.Logger) *Subdomain {
	return &Subdomain{recon: r, logger: logger}
}

// Kind implements Scanner
func (s *Subdomain) Kind() string { return KindSubdomain }

// Synchronous reports false: subdomain scans run on the worker pool
func (s *Subdomain) Synchronous() bool { return false }

// Validate checks that the payload names a registrable domain
func (s *Subdomain) Validate(payload json.RawMessage) error {
	_, err := parseDomainPayload(payload)
	return err
}

// Run executes the full recon pipeline and records one row per live subdomain
func (s *Subdomain) Run(ctx context.Context, payload json.RawMessage, cp recon.Checkpoint) (*Result, error) {
	p, err := parseDomainPayload(payload)
	if err != nil {
		return nil, err
	}

	report, err := s.recon.Run(ctx, p.Domain, p.Subdomains, cp, func(stage string) {
		s.logger.InfoContext(ctx, "Scan stage started", slog.String("stage", stage))
	})
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ResultRow, 0, len(report.Subdomains))
	for _, host := range report.Hosts() {
		rows = append(rows, domain.ResultRow{Domain: p.Domain, Subdomain: host})
	}
	return &Result{Payload: report, Rows: rows}, nil
}

// DDReport is the result of a dd scan
type DDReport struct {
	ScanType             string   `json:"scan_type"`
	Domain               string   `json:"domain"`
	Subdomains           []string `json:"subdomains"`
	TotalFound           int      `json:"total_found"`
	TotalBeforeFiltering int      `json:"total_before_filtering"`
}

// DD discovers and validates subdomains without probing or detection
type DD struct {
	recon Recon
}

// NewDD creates the dd scanner
func NewDD(r Recon) *DD {
	return &DD{recon: r}
}

// Kind implements Scanner
func (s *DD) Kind() string { return KindDD }

// Synchronous reports false: dd scans run on the worker pool
func (s *DD) Synchronous() bool { return false }

// Validate checks that the payload names a registrable domain
func (s *DD) Validate(payload json.RawMessage) error {
	_, err := parseDomainPayload(payload)
	return err
}

// Run discovers candidates and keeps those that survive wildcard filtering
func (s *DD) Run(ctx context.Context, payload json.RawMessage, cp recon.Checkpoint) (*Result, error) {
	p, err := parseDomainPayload(payload)
	if err != nil {
		return nil, err
	}

	if err := cp(ctx); err != nil {
		return nil, err
	}
	candidates := p.Subdomains
	if len(candidates) == 0 {
		candidates = s.recon.Discover(ctx, p.Domain)
	}

	if err := cp(ctx); err != nil {
		return nil, err
	}
	v, err := s.recon.Validate(ctx, p.Domain, candidates)
	if err != nil {
		return nil, err
	}

	if err := cp(ctx); err != nil {
		return nil, err
	}

	report := &DDReport{
		ScanType:             KindDD,
		Domain:               p.Domain,
		Subdomains:           make([]string, 0, len(v.Targets)),
		TotalBeforeFiltering: len(candidates),
	}
	rows := make([]domain.ResultRow, 0, len(v.Targets))
	for _, t := range v.Targets {
		report.Subdomains = append(report.Subdomains, t.Host)
		rows = append(rows, domain.ResultRow{Domain: p.Domain, Subdomain: t.Host})
	}
	report.TotalFound = len(report.Subdomains)
	return &Result{Payload: report, Rows: rows}, nil
}
