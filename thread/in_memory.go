package thread

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/vexora/core"
)

// InMemoryStore is a volatile ThreadStore implementation storing threads in a
// process local map. It is safe for concurrent access and best suited for
// tests or one-shot runs. Returned threads are clones bound to the store, so
// callers never mutate internal state directly.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

// NewInMemoryStore constructs an empty in‑memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Create returns the thread with id, creating it if needed. An empty id
// generates a new one.
func (s *InMemoryStore) Create(_ context.Context, id string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = core.NewThreadID()
	}

	t, ok := s.threads[id]
	if !ok {
		t = s.createThreadLocked(id)
	}

	return t.Clone().Bind(s), nil
}

// Get returns a clone of an existing thread.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}

	return t.Clone().Bind(s), nil
}

// Append adds a message to an existing or newly created thread.
func (s *InMemoryStore) Append(ctx context.Context, threadID string, msg core.Message) error {
	if threadID == "" {
		return fmt.Errorf("%w %q", core.ErrInvalidThreadID, threadID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = s.createThreadLocked(threadID)
	}

	return t.AddMessage(ctx, msg)
}

// List returns all threads sorted by last update, newest first.
func (s *InMemoryStore) List(_ context.Context) ([]core.ThreadInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]core.ThreadInfo, 0, len(s.threads))
	for _, t := range s.threads {
		infos = append(infos, core.ThreadInfo{ID: t.ID, Created: t.Created, Updated: t.Updated, MessageCount: t.Len()})
	}

	sortInfos(infos)

	return infos, nil
}

// createThreadLocked allocates and stores a new unbound thread; caller must
// already hold the write lock.
func (s *InMemoryStore) createThreadLocked(id string) *core.Thread {
	t := core.NewThread(id)
	s.threads[id] = t

	return t
}

func sortInfos(infos []core.ThreadInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Updated.After(infos[j].Updated)
	})
}
