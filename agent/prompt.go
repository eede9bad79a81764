package agent

import (
	"fmt"
	"os"
)

// DefaultPrompt is the prompt template used when an actor does not set one.
// It is rendered with the actor as data.
const DefaultPrompt = `You are an AI agent named "{{ .Name }}" (id {{ .ID }}).
{{- with .Description }}

Your description, visible to others: {{ . }}
{{- end }}
{{- with .Instructions }}

Your private instructions:
{{ . }}
{{- end }}`

// PromptSource supplies prompt template text at runtime.
type PromptSource interface {
	Template() (string, error)
}

// PromptFunc is a functional adapter to allow ordinary functions to be used
// as PromptSources.
type PromptFunc func() (string, error)

// Template implements PromptSource.
func (f PromptFunc) Template() (string, error) { return f() }

// Prompt is a template given inline, read from a file or supplied by a
// PromptSource.
type Prompt struct {
	text   string
	path   string
	source PromptSource
}

// PromptText creates a Prompt from template text.
func PromptText(text string) Prompt { return Prompt{text: text} }

// PromptFile creates a Prompt read from path on every render.
func PromptFile(path string) Prompt { return Prompt{path: path} }

// PromptFrom creates a Prompt from a dynamic source.
func PromptFrom(s PromptSource) Prompt { return Prompt{source: s} }

// IsZero reports whether no template was set.
func (p Prompt) IsZero() bool { return p.text == "" && p.path == "" && p.source == nil }

// Template returns the template text.
func (p Prompt) Template() (string, error) {
	switch {
	case p.source != nil:
		return p.source.Template()
	case p.path != "":
		b, err := os.ReadFile(p.path)
		if err != nil {
			return "", fmt.Errorf("read prompt %s: %w", p.path, err)
		}
		return string(b), nil
	default:
		return p.text, nil
	}
}

// Name identifies the template in errors.
func (p Prompt) Name() string {
	switch {
	case p.source != nil:
		return "dynamic"
	case p.path != "":
		return p.path
	default:
		return "inline"
	}
}
