package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/internal/testutil"
)

func TestParseContext(t *testing.T) {
	values, err := parseContext([]string{"tone=formal", "query=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tone": "formal", "query": "a=b"}, values)

	_, err = parseContext([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseContext([]string{"=x"})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	text := testutil.NewMessageBuilder().AssistantText("hello").Build()
	assert.Equal(t, "hello", describe(text))

	call := testutil.NewMessageBuilder().FunctionCall("c1", "search", `{"q":"go"}`).Build()
	assert.Equal(t, `search({"q":"go"})`, describe(call))

	resp := testutil.NewMessageBuilder().FunctionResponse("c1", "search", "found").Build()
	assert.Equal(t, "search -> found", describe(resp))

	assert.Equal(t, "-", describe(core.Message{}))
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0, len(root.Commands))
	for _, c := range root.Commands {
		names = append(names, c.Name)
	}

	assert.ElementsMatch(t, []string{"say", "run", "extract", "generate", "schema", "threads"}, names)
}
