package recon

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Stage names, in execution order
const (
	StageDiscovery        = "discovery"
	StageValidation       = "validation"
	StageProbing          = "probing"
	StageExposure         = "exposure"
	StageMisconfiguration = "misconfiguration"
	StageTakeover         = "takeover"
)

// Stages lists every stage Run executes
var Stages = []string{
	StageDiscovery, StageValidation, StageProbing,
	StageExposure, StageMisconfiguration, StageTakeover,
}

// StageObserver is notified when a stage starts. Used for progress logging
// and tests.
type StageObserver func(stage string)

// Run executes the full pipeline against domain. When subdomains is non-empty
// it replaces discovery. cp is consulted before every stage and once more
// after the last one.
func (p *Pipeline) Run(ctx context.Context, domain string, subdomains []string, cp Checkpoint, observe StageObserver) (*Report, error) {
	if cp == nil {
		cp = NoCheckpoint
	}
	if observe == nil {
		observe = func(string) {}
	}
	start := time.Now()

	step := func(stage string) error {
		if err := cp(ctx); err != nil {
			return err
		}
		observe(stage)
		p.logger.DebugContext(ctx, "Recon stage started",
			slog.String("domain", domain),
			slog.String("stage", stage),
		)
		return nil
	}

	if err := step(StageDiscovery); err != nil {
		return nil, err
	}
	candidates := subdomains
	if len(candidates) == 0 {
		candidates = p.Discover(ctx, domain)
	}

	if err := step(StageValidation); err != nil {
		return nil, err
	}
	validation, err := p.Validate(ctx, domain, candidates)
	if err != nil {
		return nil, err
	}

	if err := step(StageProbing); err != nil {
		return nil, err
	}
	targets := p.Probe(ctx, validation.Targets)

	hosts := make([]string, len(targets))
	for i, t := range targets {
		hosts[i] = t.Host
	}

	det := Detections{}
	if err := step(StageExposure); err != nil {
		return nil, err
	}
	det.Exposure = p.CheckExposure(ctx, hosts)

	if err := step(StageMisconfiguration); err != nil {
		return nil, err
	}
	det.Misconfiguration = p.CheckMisconfiguration(ctx, hosts)

	if err := step(StageTakeover); err != nil {
		return nil, err
	}
	det.Takeover = p.CheckTakeover(ctx, hosts)

	if err := cp(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := Merge(domain, validation, targets, det)
	p.logger.InfoContext(ctx, "Recon completed",
		slog.String("domain", domain),
		slog.Int("candidates", report.TotalCandidates),
		slog.Int("subdomains", report.TotalSubdomains),
		slog.Int("findings", len(report.Findings)),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// Merge folds stage outputs into a Report. Hosts and findings are sorted so
// identical inputs always produce identical output.
func Merge(domain string, validation *Validation, targets []Target, det Detections) *Report {
	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Host < sorted[j].Host })

	report := &Report{
		Domain:          domain,
		TotalSubdomains: len(sorted),
		Subdomains:      make([]HostReport, 0, len(sorted)),
		Findings:        []Finding{},
	}
	if validation != nil {
		report.TotalCandidates = validation.TotalCandidates
		report.WildcardIP = validation.WildcardIP
	}

	for _, t := range sorted {
		hr := HostReport{Target: t}
		if paths, ok := det.Exposure[t.Host]; ok {
			hr.Vulnerabilities.Exposure = paths
			report.Findings = append(report.Findings, Finding{
				Host: t.Host, Type: FindingExposure, Severity: ExposureSeverity(paths),
			})
		}
		if m, ok := det.Misconfiguration[t.Host]; ok {
			hr.Vulnerabilities.Misconfiguration = m
			report.Findings = append(report.Findings, Finding{
				Host: t.Host, Type: FindingMisconfiguration, Severity: MisconfigurationSeverity(m.MissingHeaders),
			})
		}
		if tk, ok := det.Takeover[t.Host]; ok {
			hr.Vulnerabilities.Takeover = tk
			report.Findings = append(report.Findings, Finding{
				Host: t.Host, Type: FindingTakeover, Severity: TakeoverSeverity(),
			})
		}
		report.Subdomains = append(report.Subdomains, hr)
	}
	return report
}

// Hosts returns the host names of a report in order
func (r *Report) Hosts() []string {
	out := make([]string, len(r.Subdomains))
	for i, s := range r.Subdomains {
		out[i] = s.Host
	}
	return out
}
