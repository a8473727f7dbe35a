// Package registry tracks the control handles of jobs that have an active
// worker. An entry exists exactly while its job is IN_PROGRESS or PAUSED.
package registry

import "sync"

// Registry is a concurrency-safe map from job id to its control handle
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
	}
}

// Register creates the handle for a job. Registering an id twice returns the
// existing handle.
func (r *Registry) Register(jobID string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[jobID]; ok {
		return h
	}
	h := newHandle()
	r.handles[jobID] = h
	return h
}

// Get returns the handle of a running job
func (r *Registry) Get(jobID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[jobID]
	return h, ok
}

// Remove drops the handle of a job. Removing an unknown id is a no-op.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, jobID)
}

// Len returns the number of registered jobs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}

// IDs returns the ids of all registered jobs
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	return ids
}
