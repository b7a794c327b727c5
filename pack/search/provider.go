package search

import (
	"context"
	"errors"
)

// Provider runs web searches.
type Provider interface {
	// Name returns the provider name (e.g., "duckduckgo").
	Name() string

	// Search returns at most limit hits for query.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Hit is a single search result.
type Hit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Provider errors.
var (
	// ErrEmptyQuery is returned when the query is blank.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrUnexpectedStatus is returned when the search endpoint answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected search response status")
)
