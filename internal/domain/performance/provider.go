// Package performance supplies per-supplier track records to the matcher.
package performance

import (
	"context"
	"sync"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// Provider returns a profile for every requested supplier id. Suppliers
// without history map to the zero profile, never to a missing key.
type Provider interface {
	GetMetrics(ctx context.Context, supplierIDs []string) (map[string]model.PerformanceMetrics, error)
}

// Default returns the no-history profile.
func Default() model.PerformanceMetrics {
	return model.PerformanceMetrics{}
}

// Complete fills in the default profile for any id missing from got.
// A nil got yields defaults for every id.
func Complete(supplierIDs []string, got map[string]model.PerformanceMetrics) map[string]model.PerformanceMetrics {
	out := make(map[string]model.PerformanceMetrics, len(supplierIDs))
	for _, id := range supplierIDs {
		if m, ok := got[id]; ok {
			out[id] = m
			continue
		}
		out[id] = Default()
	}
	return out
}

// StaticProvider serves profiles from memory. It backs tests and the
// in-memory storage driver.
type StaticProvider struct {
	mu       sync.RWMutex
	profiles map[string]model.PerformanceMetrics
}

// Option applies a configuration option to the StaticProvider.
type Option func(*StaticProvider)

// WithProfile seeds a supplier profile.
func WithProfile(supplierID string, m model.PerformanceMetrics) Option {
	return func(p *StaticProvider) {
		p.profiles[supplierID] = m
	}
}

// NewStaticProvider creates an in-memory provider.
func NewStaticProvider(opts ...Option) *StaticProvider {
	p := &StaticProvider{profiles: make(map[string]model.PerformanceMetrics)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Set replaces the profile of a supplier.
func (p *StaticProvider) Set(supplierID string, m model.PerformanceMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[supplierID] = m
}

// GetMetrics implements Provider.
func (p *StaticProvider) GetMetrics(_ context.Context, supplierIDs []string) (map[string]model.PerformanceMetrics, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Complete(supplierIDs, p.profiles), nil
}
