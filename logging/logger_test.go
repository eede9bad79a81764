package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "vexora"},
		{"vexora", "vexora"},
		{"engine", "vexora.engine"},
		{"vexora.engine", "vexora.engine"},
		{"vexoraish", "vexora.vexoraish"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, QualifiedName(tt.in), tt.in)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetup_ForcedJSONAndNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	Setup(LogLevelDebug, FormatJSON, &buf)

	GetLogger("fns").Info("delegate.start", "op", "say")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "vexora.fns", entry["logger"])
	assert.Equal(t, "say", entry["op"])
}

func TestSetup_AutoFallsBackToJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	Setup(LogLevelInfo, FormatAuto, &buf)
	GetLogger("x").Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	Setup(LogLevelInfo, FormatText, &buf)
	GetLogger("x").Info("hello")
	assert.Contains(t, buf.String(), "logger=vexora.x")
}

func TestVexoraLogger_KeyValuesAndContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Output = &buf
	cfg.AddSource = false
	cfg.Level = LogLevelDebug

	l := NewLogger(cfg).WithComponent("engine").WithRun("thr_1", "run_1")
	l.Debug("turn.start", "turn", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "turn.start", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "thr_1", entry["thread_id"])
	assert.Equal(t, "run_1", entry["run_id"])
	assert.EqualValues(t, 2, entry["turn"])
}

func TestVexoraLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Output = &buf
	cfg.Level = LogLevelWarn

	l := NewLogger(cfg)
	l.Info("hidden")
	assert.Empty(t, buf.String())

	ToolCall(l, "Marvin", "lookup", time.Millisecond, errors.New("boom"))
	assert.Contains(t, buf.String(), EventToolCall)
	assert.Contains(t, buf.String(), "boom")
}

func TestMaybeQuote(t *testing.T) {
	assert.Equal(t, "plain", MaybeQuote("plain"))
	assert.Equal(t, `"two words"`, MaybeQuote("two words"))
	assert.Equal(t, `""`, MaybeQuote(""))
	assert.Equal(t, "42", MaybeQuote(42))
}
