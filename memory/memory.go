package memory

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/tool"
)

var keyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Memory is a named, searchable collection of facts an actor keeps across
// tasks.
type Memory struct {
	key          string
	instructions string
	store        core.MemoryStore
}

// Options configures a Memory.
type Options struct {
	Instructions string
	Store        core.MemoryStore
}

// New creates a memory. Keys may contain lowercase letters, digits and
// underscores since they become part of tool names.
func New(key string, optFns ...func(o *Options)) (*Memory, error) {
	if !keyRe.MatchString(key) {
		return nil, fmt.Errorf("invalid memory key %q: use lowercase letters, digits and underscores", key)
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = NewInMemoryStore()
	}

	return &Memory{key: key, instructions: opts.Instructions, store: opts.Store}, nil
}

// Key returns the memory key.
func (m *Memory) Key() string { return m.key }

// Instructions describes what the memory should be used for.
func (m *Memory) Instructions() string { return m.instructions }

// Add stores content and returns the new memory id.
func (m *Memory) Add(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	md := map[string]any{}
	if a := core.CurrentActor(ctx); a != nil {
		md["actor"] = a.Name()
	}
	if t := core.ThreadFromContext(ctx); t != nil {
		md["thread_id"] = t.ID
	}

	return m.store.Store(m.key, content, md)
}

// Search returns up to n memories relevant to query.
func (m *Memory) Search(ctx context.Context, query string, n int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.store.Search(m.key, query, n)
}

// Delete removes a memory by id.
func (m *Memory) Delete(id string) error {
	return m.store.Delete(m.key, id)
}

// Tools exposes mem to the model as a store and a search tool.
func Tools(mem core.Memory) []core.Tool {
	desc := mem.Instructions()
	if desc != "" {
		desc = " " + desc
	}

	store := tool.NewFunctionTool(
		"store_memory_"+mem.Key(),
		fmt.Sprintf("Store a fact in the %q memory.%s", mem.Key(), desc),
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{"type": "string", "description": "The fact to remember"},
			},
			"required": []string{"content"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			content, _ := args["content"].(string)
			id, err := mem.Add(tc.Context(), content)
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": id}, nil
		},
	)

	search := tool.NewFunctionTool(
		"search_memory_"+mem.Key(),
		fmt.Sprintf("Search the %q memory.%s", mem.Key(), desc),
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "What to look for"},
				"n":     map[string]any{"type": "integer", "description": "Maximum number of results (default 5)"},
			},
			"required": []string{"query"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			n := 5
			if v, ok := args["n"].(float64); ok && v > 0 {
				n = int(v)
			}
			query, _ := args["query"].(string)
			return mem.Search(tc.Context(), query, n)
		},
	)

	return []core.Tool{store, search}
}

// WithInstructions sets the memory instructions.
func WithInstructions(s string) func(o *Options) {
	return func(o *Options) { o.Instructions = s }
}

// WithStore sets the backing store.
func WithStore(s core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.Store = s }
}
