// Package provider defines the interface and implementations for scan
// providers, each of which turns a competitor domain into one scan type's
// raw payload and extracted signals.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/resilience"
)

// Target identifies the competitor a provider should scan.
type Target struct {
	DomainKey   string
	DisplayName string
	Industry    string
}

// ScanResult is the complete response from a provider.
type ScanResult struct {
	Payload    []byte          `json:"payload,omitempty"`
	Extracted  model.Extracted `json:"extracted"`
	Quality    float64         `json:"quality"`
	SampleSize int             `json:"sample_size"`
	SourceURL  string          `json:"source_url"`
}

// Provider defines the interface for scan providers.
type Provider interface {
	// Name returns the provider identifier used in logs and circuit breakers.
	Name() string
	// Supports checks if the provider can perform a specific scan type.
	Supports(scanType model.ScanType) bool
	// Fetch scans the target for the given scan type.
	Fetch(ctx context.Context, target Target, scanType model.ScanType) (*ScanResult, error)
}

// ErrUnsupportedScanType is returned when no registered provider handles a
// scan type.
var ErrUnsupportedScanType = eris.New("provider: unsupported scan type")

// Provider failure taxonomy. Fetch errors match exactly one of these.
var (
	ErrProviderUnavailable = eris.New("provider: upstream unavailable")
	ErrProviderRateLimited = eris.New("provider: rate limited")
	ErrProviderTimeout     = eris.New("provider: fetch timed out")
)

// fetchFailure ties a classified failure kind to its cause, keeping both
// matchable through the error chain.
type fetchFailure struct {
	kind  error
	op    string
	cause error
}

func (e *fetchFailure) Error() string { return fmt.Sprintf("%s: %v", e.op, e.cause) }

func (e *fetchFailure) Unwrap() error { return e.cause }

func (e *fetchFailure) Is(target error) bool { return target == e.kind }

// classifyFetchErr maps a client error onto the failure taxonomy. Rate
// limits and upstream 5xx/network failures are marked transient so the sweep
// can replay them.
func classifyFetchErr(op string, cause error) error {
	switch {
	case errors.Is(cause, context.DeadlineExceeded), errors.Is(cause, context.Canceled):
		return &fetchFailure{kind: ErrProviderTimeout, op: op, cause: cause}
	case strings.Contains(cause.Error(), "status 429"):
		return &fetchFailure{
			kind:  ErrProviderRateLimited,
			op:    op,
			cause: resilience.NewTransientError(cause, http.StatusTooManyRequests),
		}
	default:
		c := cause
		if strings.Contains(cause.Error(), "status 5") || resilience.IsTransient(cause) {
			c = resilience.NewTransientError(cause, 0)
		}
		return &fetchFailure{kind: ErrProviderUnavailable, op: op, cause: c}
	}
}

// Registry routes scan types to providers.
type Registry struct {
	mu        sync.RWMutex
	byType    map[model.ScanType]Provider
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:    make(map[model.ScanType]Provider),
		providers: make(map[string]Provider),
	}
}

// Register adds a provider, binding it to every scan type it supports.
// Later registrations win on overlap.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	for _, st := range model.AllScanTypes {
		if p.Supports(st) {
			r.byType[st] = p
		}
	}
}

// ForScanType returns the provider bound to the scan type.
func (r *Registry) ForScanType(scanType model.ScanType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byType[scanType]
	if !ok {
		return nil, eris.Wrapf(ErrUnsupportedScanType, "%s", scanType)
	}
	return p, nil
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
