package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a thread's history. After it has been appended to
// a thread it should be treated as immutable.
type Message struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Content   Content   `json:"content"`
}

// NewMessage creates a message with a fresh id and the current UTC time.
func NewMessage(author string, content Content) Message {
	return Message{
		ID:        NewID(),
		Author:    author,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, Content{Role: RoleUser, Parts: []Part{TextPart{Text: text}}})
}

// NewAssistantMessage creates an assistant text message authored by author.
func NewAssistantMessage(author, text string) Message {
	return NewMessage(author, Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}})
}

// NewFunctionResponseMessage records the result (or error) of a tool call.
// If err is non-nil its message is copied into the response Error field.
func NewFunctionResponseMessage(author, id, name string, result any, err error) Message {
	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}

	return NewMessage(author, Content{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}})
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// NewShortID returns the first 8 hex characters of a random UUID.
func NewShortID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:8]
}

// Role returns the content role.
func (m Message) Role() string { return m.Content.Role }

// Text concatenates all text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}

	return b.String()
}

// FunctionCalls returns the function call parts in order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}

	return calls
}

// FunctionResponses returns the function response parts in order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}

	return responses
}

// IsFinal reports whether the message is an assistant reply without pending
// tool calls.
func (m Message) IsFinal() bool {
	return m.Role() == RoleAssistant && len(m.FunctionCalls()) == 0
}
