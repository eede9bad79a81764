package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/vexora/core"
)

// ErrMemoryNotFound is returned by Delete for unknown ids.
var ErrMemoryNotFound = errors.New("memory not found")

// StoredMemory is the internal representation persisted by InMemoryStore.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any

	seq int
}

// InMemoryStore is a naive process‑local MemoryStore partitioned by memory
// key.
//
// Concurrency: protected by RWMutex.
// Search: case-insensitive term matching; the score is the fraction of query
// terms found in the content. An empty query matches everything with score
// 1.0. Suitable for tests / demos; swap for a vector DB or semantic index for
// production retrieval.
type InMemoryStore struct {
	mu      sync.RWMutex
	next    int
	storage map[string]map[string]StoredMemory // key -> memoryID -> stored memory
}

// NewInMemoryStore creates a new in-memory memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		storage: make(map[string]map[string]StoredMemory),
	}
}

// Store appends a new memory under key and returns its id.
func (m *InMemoryStore) Store(key, content string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.storage[key]; !exists {
		m.storage[key] = make(map[string]StoredMemory)
	}

	m.next++
	memoryID := fmt.Sprintf("mem_%d", m.next)
	m.storage[key][memoryID] = StoredMemory{ID: memoryID, Content: content, Metadata: copyMetadata(metadata), seq: m.next}

	return memoryID, nil
}

// Search returns up to limit memories under key ordered by score, then by
// insertion order. A limit <= 0 returns every match.
func (m *InMemoryStore) Search(key, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))

	type hit struct {
		core.SearchResult
		seq int
	}

	var hits []hit
	for _, stored := range m.storage[key] {
		score := matchScore(strings.ToLower(stored.Content), terms)
		if score == 0 {
			continue
		}
		hits = append(hits, hit{
			SearchResult: core.SearchResult{ID: stored.ID, Content: stored.Content, Score: score, Metadata: copyMetadata(stored.Metadata)},
			seq:          stored.seq,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].seq < hits[j].seq
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]core.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.SearchResult)
	}

	return results, nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(key, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.storage[key][memoryID]; !exists {
		return fmt.Errorf("%w: %s/%s", ErrMemoryNotFound, key, memoryID)
	}

	delete(m.storage[key], memoryID)

	return nil
}

func matchScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}

	found := 0
	for _, t := range terms {
		if strings.Contains(content, t) {
			found++
		}
	}

	return float64(found) / float64(len(terms))
}

func copyMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}

	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}

	return out
}
