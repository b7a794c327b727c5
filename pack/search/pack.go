// Package search provides the web search tool.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/pack"
	"github.com/felixgeelhaar/sysagent/domain/tool"
)

// ToolName is the name the model uses to call the tool.
const ToolName = "duckduckgo_results_json"

// Description is shown to the model in the tool list.
const Description = "A wrapper around Duck Duck Go Search. Useful for when you need to answer questions about current events. Input should be a search query. Output is a JSON array of the query results"

// NoResults is the observation text when a search finds nothing.
const NoResults = "No good DuckDuckGo Search Result was found"

// Config configures the search pack.
type Config struct {
	// Provider is the search provider (required).
	Provider Provider

	// MaxResults limits the number of hits rendered into the observation.
	MaxResults int

	// Timeout bounds a single search.
	Timeout time.Duration
}

// Option configures the search pack.
type Option func(*Config)

// WithMaxResults sets the number of hits returned to the model.
func WithMaxResults(n int) Option {
	return func(c *Config) {
		c.MaxResults = n
	}
}

// WithTimeout sets the search timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// New creates the search pack.
func New(provider Provider, opts ...Option) (*pack.Pack, error) {
	if provider == nil {
		return nil, fmt.Errorf("search provider is required")
	}

	cfg := Config{
		Provider:   provider,
		MaxResults: 4,
		Timeout:    20 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return pack.NewBuilder("search").
		WithDescription("Web search via " + provider.Name()).
		WithVersion("1.0.0").
		AddTools(searchTool(&cfg)).
		Build(), nil
}

func searchTool(cfg *Config) tool.Tool {
	return tool.NewBuilder(ToolName).
		WithDescription(Description).
		WithTextInput().
		ReadOnly().
		WithTimeout(int(cfg.Timeout / time.Second)).
		WithTags("network").
		WithHandler(func(ctx context.Context, input string) (tool.Result, error) {
			start := time.Now()
			hits, err := cfg.Provider.Search(ctx, input, cfg.MaxResults)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.NewResultWithDuration(FormatHits(hits), time.Since(start)), nil
		}).
		MustBuild()
}

// FormatHits renders hits as "[snippet: ..., title: ..., link: ...]" entries
// separated by ", ".
func FormatHits(hits []Hit) string {
	if len(hits) == 0 {
		return NoResults
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[snippet: %s, title: %s, link: %s]", h.Snippet, h.Title, h.Link)
	}
	return strings.Join(parts, ", ")
}
