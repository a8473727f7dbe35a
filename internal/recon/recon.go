// Package recon implements the subdomain reconnaissance pipeline: candidate
// discovery, DNS validation with wildcard filtering, HTTP probing and the
// exposure, misconfiguration and takeover detectors.
//
// Every stage treats a per-target network failure as "no result" for that
// target; only context cancellation and checkpoint errors abort a run.
package recon

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Checkpoint is called between stages and between detector batches. A non-nil
// error aborts the run and is returned unchanged.
type Checkpoint func(ctx context.Context) error

// NoCheckpoint never interrupts a run
func NoCheckpoint(context.Context) error { return nil }

// Config holds pipeline tuning knobs
type Config struct {
	Wordlist         []string
	ProbeConcurrency int     // 0 means one goroutine per target
	DetectRPS        float64 // 0 means unlimited
	HTTPTimeout      time.Duration
}

// Pipeline runs the recon stages. It is safe for concurrent use.
type Pipeline struct {
	resolver    Resolver
	client      *http.Client
	passive     PassiveSource
	wordlist    []string
	concurrency int
	limiter     *rate.Limiter
	probeSuffix func() int
	logger      *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWordlist replaces the default brute-force wordlist
func WithWordlist(words []string) Option {
	return func(p *Pipeline) {
		if len(words) > 0 {
			p.wordlist = append([]string(nil), words...)
		}
	}
}

// WithConcurrency bounds the number of concurrent requests per stage
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithRateLimit caps detector requests per second across all targets
func WithRateLimit(rps float64) Option {
	return func(p *Pipeline) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithProbeSuffix overrides the random suffix used for wildcard probe names
func WithProbeSuffix(f func() int) Option {
	return func(p *Pipeline) { p.probeSuffix = f }
}

// WithLogger sets the pipeline logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New creates a pipeline. A nil passive source disables certificate
// transparency discovery.
func New(resolver Resolver, client *http.Client, passive PassiveSource, opts ...Option) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	p := &Pipeline{
		resolver:    resolver,
		client:      client,
		passive:     passive,
		wordlist:    append([]string(nil), DefaultWordlist...),
		limiter:     rate.NewLimiter(rate.Inf, 0),
		probeSuffix: func() int { return 100000 + rand.IntN(900000) },
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig builds a pipeline from Config
func NewFromConfig(cfg Config, resolver Resolver, passive PassiveSource, logger *slog.Logger) *Pipeline {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return New(resolver, &http.Client{Timeout: timeout}, passive,
		WithWordlist(cfg.Wordlist),
		WithConcurrency(cfg.ProbeConcurrency),
		WithRateLimit(cfg.DetectRPS),
		WithLogger(logger),
	)
}

const defaultHTTPTimeout = 5 * time.Second
