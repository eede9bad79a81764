package testutil

import (
	"context"

	"github.com/hupe1980/vexora/core"
)

// ThreadBuilder helps construct threads with fluent chaining for tests.
// Example:
//
//	th := NewThreadBuilder("thr_1").Meta("k", "v").User("hi").Assistant("Marvin", "hello").Build()
type ThreadBuilder struct {
	id       string
	metadata map[string]string
	messages []core.Message
	store    core.ThreadStore
}

// NewThreadBuilder creates a new builder for a thread with the given id.
func NewThreadBuilder(id string) *ThreadBuilder {
	return &ThreadBuilder{id: id, metadata: map[string]string{}}
}

// Meta sets a metadata key/value pair (chainable).
func (b *ThreadBuilder) Meta(key, val string) *ThreadBuilder {
	b.metadata[key] = val
	return b
}

// User appends a user text message (chainable).
func (b *ThreadBuilder) User(text string) *ThreadBuilder {
	b.messages = append(b.messages, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *ThreadBuilder) Assistant(author, text string) *ThreadBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(author, text))
	return b
}

// Messages appends prebuilt messages (chainable).
func (b *ThreadBuilder) Messages(msgs ...core.Message) *ThreadBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Store persists the built thread to store (chainable).
func (b *ThreadBuilder) Store(store core.ThreadStore) *ThreadBuilder {
	b.store = store
	return b
}

// Build returns the thread. When a store was given the messages are
// appended through it and the returned handle is bound to it.
func (b *ThreadBuilder) Build() *core.Thread {
	th := core.NewThread(b.id)
	for k, v := range b.metadata {
		th.Metadata[k] = v
	}

	if b.store != nil {
		created, err := b.store.Create(context.Background(), th.ID)
		if err != nil {
			panic(err)
		}
		th = created
	}

	for _, m := range b.messages {
		if err := th.AddMessage(context.Background(), m); err != nil {
			panic(err)
		}
	}

	return th
}
