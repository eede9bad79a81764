package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/internal/util"
)

const taskTemplateName = "task"

const taskTemplate = `{{ .Prompt }}

## Task

You are working on task {{ .TaskID }}.
{{- if .Others }}
Other actors on this task: {{ join ", " .Others }}.
{{- end }}

### Instructions

{{ .Instructions }}
{{- range .Context }}

### {{ .Key }}

{{ .Value }}
{{- end }}
{{- if .ResultSchema }}

### Result

The result of the task must match this JSON schema:

{{ .ResultSchema }}
{{- end }}
{{- range .Memories }}

### Memory "{{ .Key }}"

{{ default "Remember relevant facts for future tasks." .Instructions }}
Use {{ .StoreTool }} to save facts and {{ .SearchTool }} to recall them.
{{- end }}

### Ending your turn

When you are done, call one of: {{ join ", " .EndTurnTools }}.
Do not end your turn with a plain message.`

type contextEntry struct {
	Key   string
	Value string
}

type memoryEntry struct {
	Key          string
	Instructions string
	StoreTool    string
	SearchTool   string
}

type promptData struct {
	Prompt       string
	TaskID       string
	Instructions string
	Context      []contextEntry
	ResultSchema string
	Memories     []memoryEntry
	EndTurnTools []any
	Others       []any
}

// buildPrompt renders the system prompt for actor: its own prompt followed
// by the task section.
func (r *run) buildPrompt(actor core.Actor, endTurn []core.EndTurn) (string, error) {
	own, err := actor.Prompt()
	if err != nil {
		return "", err
	}

	data := promptData{
		Prompt:       strings.TrimSpace(own),
		TaskID:       r.req.ID,
		Instructions: r.req.Instructions,
		Context:      contextEntries(r.req.Context),
	}

	if r.req.ResultSchema != nil {
		b, err := json.MarshalIndent(r.req.ResultSchema, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode result schema: %w", err)
		}
		data.ResultSchema = string(b)
	}

	for _, m := range actor.Memories() {
		data.Memories = append(data.Memories, memoryEntry{
			Key:          m.Key(),
			Instructions: m.Instructions(),
			StoreTool:    "store_memory_" + m.Key(),
			SearchTool:   "search_memory_" + m.Key(),
		})
	}

	for _, t := range endTurn {
		data.EndTurnTools = append(data.EndTurnTools, t.Name())
	}

	for _, a := range r.actors {
		if !core.SameActor(a, actor) {
			data.Others = append(data.Others, a.FriendlyName(false))
		}
	}

	out, err := util.RenderTemplate(taskTemplateName, taskTemplate, data)
	if err != nil {
		return "", &core.TemplateError{Name: taskTemplateName, Err: err}
	}

	return out, nil
}

// contextEntries flattens the task context into labelled blocks sorted by
// key. Strings are used as is, everything else is rendered as JSON.
func contextEntries(values map[string]any) []contextEntry {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	entries := make([]contextEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, contextEntry{Key: k, Value: formatValue(values[k])})
	}

	return entries
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	return string(b)
}
