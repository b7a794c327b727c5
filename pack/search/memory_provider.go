package search

import (
	"context"
	"strings"
	"sync"
)

// MemoryProvider is an in-memory implementation of Provider for testing.
// Queries match case-insensitively against registered keys.
type MemoryProvider struct {
	mu      sync.RWMutex
	results map[string][]Hit
	queries []string
}

// NewMemoryProvider creates a new in-memory search provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		results: make(map[string][]Hit),
	}
}

// Name returns the provider name.
func (p *MemoryProvider) Name() string {
	return "memory"
}

// Add registers hits for a query.
func (p *MemoryProvider) Add(query string, hits ...Hit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(query))
	p.results[key] = append(p.results[key], hits...)
}

// Queries returns the queries seen so far.
func (p *MemoryProvider) Queries() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.queries))
	copy(out, p.queries)
	return out
}

// Search implements Provider.
func (p *MemoryProvider) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.queries = append(p.queries, query)
	hits := p.results[strings.ToLower(strings.TrimSpace(query))]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Hit, len(hits))
	copy(out, hits)
	return out, nil
}

var _ Provider = (*MemoryProvider)(nil)
