// Package scanner holds the scan strategies a job can run, selected by kind.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/recon"
)

// Result is the output of a finished scan
type Result struct {
	// Payload is stored as the job result document
	Payload any
	// Rows are stored one per discovered subdomain
	Rows []domain.ResultRow
}

// Scanner runs one kind of scan
type Scanner interface {
	Kind() string
	// Synchronous scanners run inside the create call instead of the worker pool
	Synchronous() bool
	Validate(payload json.RawMessage) error
	Run(ctx context.Context, payload json.RawMessage, cp recon.Checkpoint) (*Result, error)
}

// Catalog maps job kinds to scanners
type Catalog struct {
	scanners map[string]Scanner
}

// NewCatalog creates a catalog. Later scanners replace earlier ones of the
// same kind.
func NewCatalog(scanners ...Scanner) *Catalog {
	c := &Catalog{scanners: make(map[string]Scanner, len(scanners))}
	for _, s := range scanners {
		c.scanners[s.Kind()] = s
	}
	return c
}

// Get returns the scanner for kind
func (c *Catalog) Get(kind string) (Scanner, error) {
	s, ok := c.scanners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	return s, nil
}

// Kinds returns the registered kinds in sorted order
func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.scanners))
	for k := range c.scanners {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload is required", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
