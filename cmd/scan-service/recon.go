package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/scan-control/internal/config"
	"github.com/cuongbtq/scan-control/internal/recon"
)

var (
	flagReconSubdomains   []string
	flagReconDiscoverOnly bool
)

var reconCmd = &cobra.Command{
	Use:   "recon <domain>",
	Short: "Run the recon pipeline once and print the report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  doRecon,
}

func doRecon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	domain, err := recon.NormalizeDomain(args[0])
	if err != nil {
		return err
	}

	log := appLogger.WithAttrs(slog.String("cmd", "recon"), slog.String("domain", domain)).Logger
	pipeline := initPipeline(&cfg.Recon, log)

	var out any
	if flagReconDiscoverOnly {
		candidates := flagReconSubdomains
		if len(candidates) == 0 {
			candidates = pipeline.Discover(ctx, domain)
		}
		out, err = pipeline.Validate(ctx, domain, candidates)
	} else {
		out, err = pipeline.Run(ctx, domain, flagReconSubdomains, recon.NoCheckpoint, func(stage string) {
			log.Info("Stage started", slog.String("stage", stage))
		})
	}
	if err != nil {
		return fmt.Errorf("recon failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// initPipeline wires the DNS resolver and certificate transparency source
// into a recon pipeline
func initPipeline(cfg *config.ReconConfig, log *slog.Logger) *recon.Pipeline {
	resolver := recon.NewDNSResolver(cfg.DNSServer, cfg.DNSTimeout)
	passive := recon.NewCTSource(cfg.CTBaseURL, cfg.CTTimeout)

	log.Debug("Recon pipeline configured",
		slog.String("dns_server", resolver.Server()),
		slog.Int("wordlist", len(cfg.Wordlist)),
		slog.Float64("detect_rps", cfg.DetectRPS),
	)

	return recon.NewFromConfig(recon.Config{
		Wordlist:         cfg.Wordlist,
		ProbeConcurrency: cfg.ProbeConcurrency,
		DetectRPS:        cfg.DetectRPS,
		HTTPTimeout:      cfg.HTTPTimeout,
	}, resolver, passive, log)
}
