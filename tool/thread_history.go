package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/vexora/core"
)

// ThreadHistoryTool lets an actor look back at the conversation of the
// running task beyond what fits in its prompt.
//
// Operations:
//   - recent_messages: the last N messages (default 10)
//   - message_count: number of messages in the thread
//   - search: case-insensitive substring search over message text
type ThreadHistoryTool struct {
	name        string
	description string
}

// NewThreadHistoryTool creates the thread history tool.
func NewThreadHistoryTool() *ThreadHistoryTool {
	return &ThreadHistoryTool{
		name: "thread_history",
		description: "Inspect the conversation thread of the current task. " +
			"Supports operations: recent_messages, message_count, search.",
	}
}

// Name returns the tool identifier.
func (t *ThreadHistoryTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *ThreadHistoryTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *ThreadHistoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{"recent_messages", "message_count", "search"},
				"description": "The history operation to perform",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of messages to return",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Text to search for (search operation)",
			},
		},
		"required": []string{"operation"},
	}
}

// Call executes the requested operation.
func (t *ThreadHistoryTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, NewToolError(t.name, "operation parameter is required and must be a string", CodeValidation)
	}

	th := toolCtx.Thread()
	if th == nil {
		return nil, NewToolError(t.name, "no thread attached to the current task", CodeExecution)
	}

	limit := 10
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	toolCtx.LogDebug("thread_history", "operation", operation, "thread_id", th.ID)

	switch operation {
	case "message_count":
		return map[string]any{"count": th.Len()}, nil

	case "recent_messages":
		return summarize(th.History(limit)), nil

	case "search":
		query, _ := args["query"].(string)
		if query == "" {
			return nil, NewToolError(t.name, "query is required for search", CodeValidation)
		}

		var hits []core.Message
		for _, m := range th.History(0) {
			if strings.Contains(strings.ToLower(m.Text()), strings.ToLower(query)) {
				hits = append(hits, m)
			}
		}

		if len(hits) > limit {
			hits = hits[len(hits)-limit:]
		}

		return summarize(hits), nil

	default:
		return nil, NewToolError(t.name, fmt.Sprintf("unknown operation: %s", operation), CodeValidation)
	}
}

func summarize(msgs []core.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"author": m.Author,
			"role":   m.Role(),
			"text":   m.Text(),
		})
	}

	return out
}
