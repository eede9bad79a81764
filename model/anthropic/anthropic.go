// Package anthropic adapts the Anthropic Messages API to model.Model.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string // falls back to ANTHROPIC_API_KEY
}

// Model talks to the Messages endpoint.
type Model struct {
	client *anthropic.Client
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

	client := anthropic.NewClient(reqOpts...)

	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a model sharing an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic", SupportsTools: true}
}

// Generate implements model.Model. Streaming requests emit partial text
// chunks before the final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
			System:      system(req),
			Messages:    toMessages(req.Contents),
			Tools:       tools(req.Tools),
		}

		var (
			msg anthropic.Message
			err error
		)

		if req.Stream {
			err = m.stream(ctx, params, &msg, out)
		} else {
			var resp *anthropic.Message
			if resp, err = m.client.Messages.New(ctx, params); err == nil {
				msg = *resp
			}
		}

		if err != nil {
			errCh <- fmt.Errorf("anthropic: %w", err)
			return
		}

		select {
		case out <- fromMessage(msg):
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// stream accumulates the streamed events into msg and forwards text deltas.
func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, msg *anthropic.Message, out chan<- model.Response) error {
	s := m.client.Messages.NewStreaming(ctx, params)
	defer s.Close()

	for s.Next() {
		event := s.Current()
		if err := msg.Accumulate(event); err != nil {
			return err
		}

		if event.Type != "content_block_delta" {
			continue
		}

		delta := event.AsContentBlockDelta().Delta
		if delta.Type != "text_delta" || delta.Text == "" {
			continue
		}

		select {
		case out <- model.Response{
			Partial: true,
			Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: delta.Text}}},
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.Err()
}

// fromMessage converts a complete Anthropic message to a final response.
func fromMessage(msg anthropic.Message) model.Response {
	var parts []core.Part

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				parts = append(parts, core.TextPart{Text: text})
			}
		case "tool_use":
			use := block.AsToolUse()

			args := "{}"
			if use.Input != nil {
				if b, err := json.Marshal(use.Input); err == nil {
					args = string(b)
				}
			}

			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: use.ID, Name: use.Name, Arguments: args}})
		}
	}

	reason := string(msg.StopReason)
	if reason == "" {
		reason = "stop"
	}

	return model.Response{
		ID:           msg.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: reason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// system returns the instructions followed by the text of system contents.
func system(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam

	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}

	for _, c := range req.Contents {
		if c.Role != core.RoleSystem {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
				blocks = append(blocks, anthropic.TextBlockParam{Text: tp.Text})
			}
		}
	}

	return blocks
}

// toMessages converts the conversation into alternating messages. The
// tool_result blocks answering an assistant turn go into the user message
// right after it; results without a matching call are dropped.
func toMessages(contents []core.Content) []anthropic.MessageParam {
	results := map[string]core.FunctionResponse{}
	for _, c := range contents {
		if c.Role != core.RoleTool {
			continue
		}
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
				if _, seen := results[fr.FunctionResponse.ID]; !seen {
					results[fr.FunctionResponse.ID] = fr.FunctionResponse
				}
			}
		}
	}

	var msgs []anthropic.MessageParam

	for _, c := range contents {
		var blocks, answers []anthropic.ContentBlockParamUnion

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				}
			case core.FunctionCallPart:
				if c.Role != core.RoleAssistant {
					continue
				}

				blocks = append(blocks, toolUse(part.FunctionCall))

				if fr, ok := results[part.FunctionCall.ID]; ok {
					answers = append(answers, anthropic.NewToolResultBlock(fr.ID, responseText(fr), fr.Error != ""))
					delete(results, fr.ID)
				}
			}
		}

		switch c.Role {
		case core.RoleSystem, core.RoleTool:
			// sent as system blocks or as answers to their calls
		case core.RoleAssistant:
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}
			if len(answers) > 0 {
				msgs = append(msgs, anthropic.NewUserMessage(answers...))
			}
		default:
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	return msgs
}

func toolUse(fc core.FunctionCall) anthropic.ContentBlockParamUnion {
	var input any = map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
			input = fc.Arguments
		}
	}

	return anthropic.NewToolUseBlock(fc.ID, input, fc.Name)
}

func tools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}

	out := make([]anthropic.ToolUnionParam, 0, len(defs))

	for _, def := range defs {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := def.Function.Parameters; params != nil {
			schema.Properties = params["properties"]
			schema.Required = stringList(params["required"])
		}

		t := anthropic.ToolUnionParamOfTool(schema, def.Function.Name)
		if def.Function.Description != "" {
			t.OfTool.Description = anthropic.String(def.Function.Description)
		}

		out = append(out, t)
	}

	return out
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// responseText renders a tool result: errors and strings as is, everything
// else as JSON.
func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fr.Error
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
