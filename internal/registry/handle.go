package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/cuongbtq/scan-control/internal/domain"
)

// Handle is the ephemeral control state of one running job. The pause signal
// can be set and cleared; the termination flag can only be set. Once the
// worker seals the handle it is committing results and no longer accepts
// control requests.
type Handle struct {
	mu         sync.Mutex
	paused     bool
	terminated bool
	sealed     bool
	resumed    chan struct{} // closed when the current pause ends
	done       chan struct{} // closed on termination
}

// ErrPaused is returned by Seal while the pause signal is set. The worker
// must wait at a checkpoint and seal again.
var ErrPaused = errors.New("job is paused")

func newHandle() *Handle {
	resumed := make(chan struct{})
	close(resumed)
	return &Handle{
		resumed: resumed,
		done:    make(chan struct{}),
	}
}

// Pause sets the pause signal
func (h *Handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sealed || h.terminated {
		return domain.ErrJobNotRunning
	}
	if h.paused {
		return domain.ErrInvalidTransition
	}
	h.paused = true
	h.resumed = make(chan struct{})
	return nil
}

// Resume clears the pause signal
func (h *Handle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sealed || h.terminated {
		return domain.ErrJobNotRunning
	}
	if !h.paused {
		return domain.ErrInvalidTransition
	}
	h.paused = false
	close(h.resumed)
	return nil
}

// Terminate sets the termination flag. Calling it twice is a no-op.
func (h *Handle) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sealed {
		return domain.ErrJobNotRunning
	}
	if !h.terminated {
		h.terminated = true
		close(h.done)
	}
	return nil
}

// Paused reports whether the pause signal is set
func (h *Handle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Terminated reports whether the termination flag is set
func (h *Handle) Terminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

// Seal marks the worker as committing. It fails with domain.ErrTerminated if
// termination was requested first and with ErrPaused if a pause is pending.
func (h *Handle) Seal() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.terminated {
		return domain.ErrTerminated
	}
	if h.paused {
		return ErrPaused
	}
	h.sealed = true
	return nil
}

// WaitResumed blocks while the pause signal is set. It returns
// domain.ErrTerminated if the job is terminated while paused, or the context
// error if ctx ends first.
func (h *Handle) WaitResumed(ctx context.Context) error {
	for {
		h.mu.Lock()
		if h.terminated {
			h.mu.Unlock()
			return domain.ErrTerminated
		}
		if !h.paused {
			h.mu.Unlock()
			return nil
		}
		resumed := h.resumed
		h.mu.Unlock()

		select {
		case <-resumed:
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
