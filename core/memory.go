package core

import "context"

// SearchResult represents a retrieved memory item with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MemoryStore persists memory snippets partitioned by key. Implementations
// can back search with embeddings, keywords or any heuristic.
type MemoryStore interface {
	Store(key, content string, metadata map[string]any) (string, error)
	Search(key, query string, limit int) ([]SearchResult, error)
	Delete(key, id string) error
}

// Memory is a named memory an actor carries across tasks. The orchestrator
// exposes every memory of the acting actor as tools.
type Memory interface {
	Key() string
	Instructions() string
	Add(ctx context.Context, content string) (string, error)
	Search(ctx context.Context, query string, n int) ([]SearchResult, error)
}
