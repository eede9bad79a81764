package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/vexora/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ToolDefinitions converts tools into model declarations preserving order.
func ToolDefinitions(tools []core.Tool) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// Request captures the normalized model input produced by the engine.
// Instructions is the system prompt; providers also accept leading
// contents with the system role.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the engine to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns the final (non partial)
// response. onPartial, if set, receives every partial chunk.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error, onPartial func(Response)) (Response, error) {
	var (
		final    Response
		hasFinal bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				if onPartial != nil {
					onPartial(r)
				}
				continue
			}
			final, hasFinal = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !hasFinal {
		return Response{}, fmt.Errorf("model returned no final response")
	}

	return final, nil
}

// GenerateFinal runs a request against m and returns its final response.
func GenerateFinal(ctx context.Context, m Model, req Request, onPartial func(Response)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	return Collect(ctx, respCh, errCh, onPartial)
}

// Step produces one scripted reply for a request.
type Step func(req Request) (Response, error)

// ScriptedModel replays a fixed sequence of steps. It records every request
// and fails once the script is exhausted. Safe for concurrent use.
type ScriptedModel struct {
	info Info

	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// Then appends steps to the script.
func (m *ScriptedModel) Then(steps ...Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, steps...)

	return m
}

// Requests returns the requests seen so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Generate implements Model; in stream mode text is additionally emitted
// as one partial chunk per rune.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var step Step
	if len(m.steps) > 0 {
		step, m.steps = m.steps[0], m.steps[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step == nil {
			errCh <- fmt.Errorf("scripted model: no step left for request %d", len(m.Requests()))
			return
		}

		resp, err := step(req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, r := range (core.Message{Content: resp.Content}).Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: string(r)}}}}:
				}
			}
		}

		resp.Partial = false
		if resp.Content.Role == "" {
			resp.Content.Role = core.RoleAssistant
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- resp:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }

// Reply is a step answering with plain text.
func Reply(text string) Step {
	return func(Request) (Response, error) {
		return Response{
			Content:      core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: text}}},
			FinishReason: "stop",
		}, nil
	}
}

// Call is a step answering with a single tool call. args must be a JSON
// object literal.
func Call(name, args string) Step {
	return Calls(core.FunctionCall{Name: name, Arguments: args})
}

// Calls is a step answering with several tool calls. Missing ids are
// generated.
func Calls(calls ...core.FunctionCall) Step {
	return func(Request) (Response, error) {
		parts := make([]core.Part, 0, len(calls))
		for _, c := range calls {
			if c.ID == "" {
				c.ID = "call_" + core.NewShortID()
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: c})
		}

		return Response{
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: "tool_calls",
		}, nil
	}
}

// Fail is a step returning err.
func Fail(err error) Step {
	return func(Request) (Response, error) { return Response{}, err }
}
