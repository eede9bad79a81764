package testutil

import (
	"time"

	"github.com/hupe1980/vexora/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Author("Marvin").Run("run-1").AssistantText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	author        string
	runID         string
	id            string
	role          string
	timestamp     time.Time
	textParts     []string
	funcCalls     []core.FunctionCall
	funcResponses []core.FunctionResponse
	customParts   []core.Part
}

// NewMessageBuilder creates a builder with default author "agent".
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{author: "agent"} }

// Author sets the author name (chainable).
func (b *MessageBuilder) Author(a string) *MessageBuilder { b.author = a; return b }

// Run sets the run ID (chainable).
func (b *MessageBuilder) Run(id string) *MessageBuilder { b.runID = id; return b }

// ID overrides the generated message ID (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// At overrides the timestamp (chainable).
func (b *MessageBuilder) At(ts time.Time) *MessageBuilder { b.timestamp = ts; return b }

// UserText appends a user text part and sets role to user (chainable).
func (b *MessageBuilder) UserText(t string) *MessageBuilder {
	b.role = core.RoleUser
	b.author = core.RoleUser
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant text part and sets role to assistant (chainable).
func (b *MessageBuilder) AssistantText(t string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.textParts = append(b.textParts, t)
	return b
}

// FunctionCall appends a function call part (chainable).
func (b *MessageBuilder) FunctionCall(id, name, args string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.funcCalls = append(b.funcCalls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// FunctionResponse appends a function response part and sets role to tool (chainable).
func (b *MessageBuilder) FunctionResponse(id, name string, resp any) *MessageBuilder {
	b.role = core.RoleTool
	b.funcResponses = append(b.funcResponses, core.FunctionResponse{ID: id, Name: name, Response: resp})
	return b
}

// Part appends a custom part (chainable).
func (b *MessageBuilder) Part(p core.Part) *MessageBuilder {
	b.customParts = append(b.customParts, p)
	return b
}

// Build constructs the message.
func (b *MessageBuilder) Build() core.Message {
	role := b.role
	if role == "" {
		role = core.RoleAssistant
	}

	var parts []core.Part
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, fc := range b.funcCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	for _, fr := range b.funcResponses {
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	parts = append(parts, b.customParts...)

	msg := core.NewMessage(b.author, core.Content{Role: role, Parts: parts})
	msg.RunID = b.runID

	if b.id != "" {
		msg.ID = b.id
	}
	if !b.timestamp.IsZero() {
		msg.Timestamp = b.timestamp
	}

	return msg
}
