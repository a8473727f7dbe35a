package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/recon"
	"github.com/cuongbtq/scan-control/internal/registry"
	"github.com/cuongbtq/scan-control/internal/scanner"
)

type memStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	names   map[string]bool
	history map[string][]string
	results map[string]json.RawMessage
	rows    map[string][]domain.ResultRow
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[string]*domain.Job),
		names:   make(map[string]bool),
		history: make(map[string][]string),
		results: make(map[string]json.RawMessage),
		rows:    make(map[string][]domain.ResultRow),
	}
}

func (s *memStore) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[job.Name] {
		return fmt.Errorf("insert: %w", domain.ErrDuplicateName)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.names[job.Name] = true
	return nil
}

func (s *memStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) UpdateJobStatus(_ context.Context, jobID, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !domain.IsActiveJobStatus(job.Status) {
		return domain.ErrJobNotRunning
	}
	job.Status = status
	job.Error = errMsg
	s.history[jobID] = append(s.history[jobID], status)
	return nil
}

func (s *memStore) SaveResult(_ context.Context, jobID string, result json.RawMessage, rows []domain.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[jobID] = result
	s.rows[jobID] = rows
	return nil
}

func (s *memStore) FailActiveJobs(_ context.Context, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if domain.IsActiveJobStatus(job.Status) {
			job.Status = domain.JobStatusFailed
			job.Error = reason
			n++
		}
	}
	return n, nil
}

func (s *memStore) job(id string) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) statusHistory(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history[id]...)
}

func (s *memStore) result(id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	return r, ok
}

// fakeScanner runs named stages, consulting the checkpoint before each one
// and once after the last. A stage with a gate blocks until the gate is
// closed or the context ends.
type fakeScanner struct {
	kind   string
	sync   bool
	stages []string
	gates  map[string]chan struct{}
	err    error

	entered chan string

	mu  sync.Mutex
	ran []string
}

func newFakeScanner(kind string, stages ...string) *fakeScanner {
	return &fakeScanner{
		kind:    kind,
		stages:  stages,
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 32),
	}
}

func (f *fakeScanner) gate(stage string) chan struct{} {
	g := make(chan struct{})
	f.gates[stage] = g
	return g
}

func (f *fakeScanner) Kind() string      { return f.kind }
func (f *fakeScanner) Synchronous() bool { return f.sync }

func (f *fakeScanner) Validate(payload json.RawMessage) error {
	if string(payload) == `{"bad":true}` {
		return domain.ErrInvalidPayload
	}
	return nil
}

func (f *fakeScanner) Run(ctx context.Context, _ json.RawMessage, cp recon.Checkpoint) (*scanner.Result, error) {
	for _, stage := range f.stages {
		if err := cp(ctx); err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.ran = append(f.ran, stage)
		f.mu.Unlock()
		f.entered <- stage

		if g, ok := f.gates[stage]; ok {
			select {
			case <-g:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err := cp(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &scanner.Result{
		Payload: map[string]any{"stages": f.stages},
		Rows:    []domain.ResultRow{{Domain: "example.com", Subdomain: "www.example.com"}},
	}, nil
}

func (f *fakeScanner) ranStages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func waitEntered(t *testing.T, f *fakeScanner, stage string) {
	t.Helper()
	select {
	case got := <-f.entered:
		require.Equal(t, stage, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("stage %q never started", stage)
	}
}

func waitStatus(t *testing.T, s *memStore, id, status string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.job(id).Status == status
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, status)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	ctrl     *Controller
	store    *memStore
	registry *registry.Registry
}

func newTestEnv(t *testing.T, cfg Config, scanners ...scanner.Scanner) *testEnv {
	t.Helper()
	env := &testEnv{store: newMemStore(), registry: registry.New()}
	cfg.Logger = discardLogger()
	cfg.Store = env.store
	cfg.Registry = env.registry
	cfg.Scanners = scanner.NewCatalog(scanners...)
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Date(2026, 5, 4, 13, 14, 15, 0, time.UTC) }
	}
	env.ctrl = New(&cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, env.ctrl.Stop(ctx))
	})
	return env
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	require.NoError(t, e.ctrl.Start(context.Background()))
}
