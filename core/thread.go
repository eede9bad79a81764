package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Thread is a handle to a conversation history. Appends go to the backing
// ThreadStore (if any) before they become visible on the handle, and are
// serialized so that messages appear in call order.
type Thread struct {
	ID       string            `json:"id"`
	Messages []Message         `json:"messages"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`

	mu    sync.RWMutex
	store ThreadStore
}

// NewThread creates an unbound thread. Pass an empty id to generate one.
func NewThread(id string) *Thread {
	if id == "" {
		id = NewThreadID()
	}

	now := time.Now().UTC()

	return &Thread{ID: id, Messages: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// NewThreadID generates a thread identifier.
func NewThreadID() string { return "thr_" + NewShortID() }

// Bind attaches the handle to a store so that future appends are persisted.
func (t *Thread) Bind(store ThreadStore) *Thread {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = store

	return t
}

// Store returns the backing store or nil for unbound threads.
func (t *Thread) Store() ThreadStore {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.store
}

// AddMessage appends msg to the thread.
func (t *Thread) AddMessage(ctx context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Append(ctx, t.ID, msg); err != nil {
			return fmt.Errorf("append to thread %s: %w", t.ID, err)
		}
	}

	t.Messages = append(t.Messages, msg)
	t.Updated = time.Now().UTC()

	return nil
}

// AddUserMessage appends a user text message.
func (t *Thread) AddUserMessage(ctx context.Context, text string) error {
	return t.AddMessage(ctx, NewUserMessage(text))
}

// AddAssistantMessage appends an assistant text message authored by author.
func (t *Thread) AddAssistantMessage(ctx context.Context, author, text string) error {
	return t.AddMessage(ctx, NewAssistantMessage(author, text))
}

// GetMessages returns a copy of the full history.
func (t *Thread) GetMessages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.Messages))
	copy(out, t.Messages)

	return out
}

// History returns the conversational messages (user, assistant and tool
// roles) suitable as model input. At most limit trailing messages are
// returned when limit > 0.
func (t *Thread) History(limit int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		switch m.Role() {
		case RoleUser, RoleAssistant, RoleTool:
			res = append(res, m)
		}
	}

	if limit > 0 && len(res) > limit {
		res = res[len(res)-limit:]
	}

	return res
}

// Len returns the number of messages.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.Messages)
}

// LastMessage returns the most recent message.
func (t *Thread) LastMessage() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.Messages) == 0 {
		return Message{}, false
	}

	return t.Messages[len(t.Messages)-1], true
}

// Clone returns a deep copy of the thread bound to the same store.
func (t *Thread) Clone() *Thread {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clone := &Thread{
		ID:       t.ID,
		Messages: make([]Message, len(t.Messages)),
		Created:  t.Created,
		Updated:  t.Updated,
		Metadata: make(map[string]string, len(t.Metadata)),
		store:    t.store,
	}
	copy(clone.Messages, t.Messages)

	for k, v := range t.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// ThreadInfo summarizes a stored thread.
type ThreadInfo struct {
	ID           string    `json:"id"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
	MessageCount int       `json:"message_count"`
}

// ThreadStore persists threads and their message history.
//
// Get returns ErrThreadNotFound (possibly wrapped) for unknown ids. Append
// creates the thread on first use and rejects the empty id with
// ErrInvalidThreadID. Returned threads are bound to the store.
type ThreadStore interface {
	Create(ctx context.Context, id string) (*Thread, error)
	Get(ctx context.Context, id string) (*Thread, error)
	Append(ctx context.Context, threadID string, msg Message) error
	List(ctx context.Context) ([]ThreadInfo, error)
}

type threadKey struct{}

// ContextWithThread attaches the thread in use to ctx.
func ContextWithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// ThreadFromContext returns the thread attached to ctx, or nil.
func ThreadFromContext(ctx context.Context) *Thread {
	t, _ := ctx.Value(threadKey{}).(*Thread)
	return t
}
