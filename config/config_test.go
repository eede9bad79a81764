package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Setenv("VEXORA_HOME", "/tmp/vx")

	s := Default()
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 10, s.MaxTurns)
	assert.Equal(t, "openai", s.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", s.Model.Name)
	assert.Equal(t, BackendMemory, s.Threads.Backend)
	assert.Equal(t, filepath.Join("/tmp/vx", "threads"), s.Threads.Dir)
	require.NoError(t, s.Validate())
}

func TestLoad_FileEnvExpansionAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vexora.yaml")

	content := `
log_level: debug
max_turns: 4
model:
  provider: anthropic
  api_key: ${TEST_VEXORA_KEY}
threads:
  backend: sqlite
  dsn: ` + filepath.Join(dir, "t.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("TEST_VEXORA_KEY", "sk-test")
	t.Setenv("VEXORA_TOOL_PARALLELISM", "2")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 4, s.MaxTurns)
	assert.Equal(t, 2, s.ToolParallelism)
	assert.Equal(t, "anthropic", s.Model.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20241022", s.Model.Name)
	assert.Equal(t, "sk-test", s.Model.APIKey)
	assert.Equal(t, BackendSQLite, s.Threads.Backend)
}

func TestLoad_RejectsUnknownKeysAndBadValues(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_key: 1\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	path = filepath.Join(dir, "backend.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads:\n  backend: redis\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "redis")

	t.Setenv("VEXORA_MAX_TURNS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	var s Settings
	require.NoError(t, Parse(nil, &s))
}
