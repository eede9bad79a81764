// Package openai adapts the OpenAI Chat Completions API to model.Model,
// including streaming and tool calling.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string // falls back to OPENAI_API_KEY
}

// Model talks to the Chat Completions endpoint.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a model with its own client.
func NewModel(optFns ...func(o *Options)) *Model {
	var preset Options
	for _, fn := range optFns {
		fn(&preset)
	}

	var reqOpts []option.RequestOption
	if preset.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(preset.APIKey))
	}

	client := openai.NewClient(reqOpts...)

	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a model sharing an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai", SupportsTools: true}
}

// Generate implements model.Model. Streaming requests emit partial text and
// tool call chunks before the final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.params(req)

		var err error
		if req.Stream {
			err = m.stream(ctx, params, out)
		} else {
			err = m.complete(ctx, params, out)
		}

		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (m *Model) params(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:               m.opts.Model,
		Messages:            toMessages(req),
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}

	if req.Stream {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	}

	return params
}

// toMessages converts the thread contents into chat messages. Each tool
// result directly follows the assistant message that requested it; results
// whose call is not part of the history are dropped since the API rejects
// them.
func toMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	results := toolResults(req.Contents)

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}

	for _, c := range req.Contents {
		text := textOf(c)

		switch c.Role {
		case core.RoleTool:
			// emitted after their calls
		case core.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(text))
		case core.RoleAssistant:
			calls := callsOf(c)
			if len(calls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(text))
				continue
			}

			assistant := &openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})

			for _, call := range calls {
				if res, ok := results[call.ID]; ok {
					msgs = append(msgs, openai.ToolMessage(res, call.ID))
					delete(results, call.ID)
				}
			}
		default:
			if text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}

	return msgs
}

// toolResults maps call ids to the rendered result. The first response for
// an id wins.
func toolResults(contents []core.Content) map[string]string {
	results := map[string]string{}

	for _, c := range contents {
		if c.Role != core.RoleTool {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			if _, seen := results[fr.FunctionResponse.ID]; !seen {
				results[fr.FunctionResponse.ID] = responseText(fr.FunctionResponse)
			}
		}
	}

	return results
}

func textOf(c core.Content) string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}

	return sb.String()
}

func callsOf(c core.Content) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
	}

	return calls
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return errors.New("openai: no choices returned")
	}

	choice := resp.Choices[0]

	var parts []core.Part
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	return send(ctx, out, model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: choice.FinishReason,
		Usage:        usage(resp.Usage),
	})
}

func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	s := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer s.Close()

	acc := newAccumulator()

	var final *model.Response

	for s.Next() {
		chunk := s.Current()

		for _, choice := range chunk.Choices {
			for _, p := range acc.add(choice.Delta) {
				if err := send(ctx, out, p); err != nil {
					return err
				}
			}

			if choice.FinishReason != "" {
				r := acc.final(chunk.ID, choice.FinishReason)
				final = &r
			}
		}

		// the usage chunk arrives after the finish reason
		if final != nil && chunk.Usage.TotalTokens > 0 {
			final.Usage = usage(chunk.Usage)
		}
	}

	if err := s.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}

	if final == nil {
		return errors.New("openai stream: ended without finish reason")
	}

	return send(ctx, out, *final)
}

// accumulator rebuilds text and tool calls from streamed deltas. Tool calls
// are keyed by their stream index.
type accumulator struct {
	text  strings.Builder
	calls map[int64]*core.FunctionCall
}

func newAccumulator() *accumulator {
	return &accumulator{calls: map[int64]*core.FunctionCall{}}
}

// add folds delta in and returns the partial responses to forward.
func (a *accumulator) add(delta openai.ChatCompletionChunkChoiceDelta) []model.Response {
	var partials []model.Response

	if delta.Content != "" {
		a.text.WriteString(delta.Content)
		partials = append(partials, partial(core.TextPart{Text: delta.Content}))
	}

	for _, tc := range delta.ToolCalls {
		call, ok := a.calls[tc.Index]
		if !ok {
			call = &core.FunctionCall{}
			a.calls[tc.Index] = call
		}

		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Function.Name != "" {
			call.Name = tc.Function.Name
		}
		call.Arguments += tc.Function.Arguments

		partials = append(partials, partial(core.FunctionCallPart{FunctionCall: *call}))
	}

	return partials
}

func (a *accumulator) final(id, reason string) model.Response {
	var parts []core.Part
	if a.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: a.text.String()})
	}

	indexes := make([]int64, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)

	for _, idx := range indexes {
		parts = append(parts, core.FunctionCallPart{FunctionCall: *a.calls[idx]})
	}

	return model.Response{
		ID:           id,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: reason,
	}
}

func partial(p core.Part) model.Response {
	return model.Response{
		Partial: true,
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{p}},
	}
}

func usage(u openai.CompletionUsage) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

func send(ctx context.Context, out chan<- model.Response, r model.Response) error {
	select {
	case out <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// responseText renders a tool result for the model: strings as is, errors
// prefixed, everything else as JSON.
func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}

	if s, ok := fr.Response.(string); ok {
		return s
	}

	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}

	return string(b)
}
