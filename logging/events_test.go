package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	level string
	msg   string
	args  []any
}

type recorder struct{ entries []entry }

func (r *recorder) add(level, msg string, args []any) {
	r.entries = append(r.entries, entry{level, msg, args})
}

func (r *recorder) Debug(msg string, args ...any) { r.add("debug", msg, args) }
func (r *recorder) Info(msg string, args ...any)  { r.add("info", msg, args) }
func (r *recorder) Warn(msg string, args ...any)  { r.add("warn", msg, args) }
func (r *recorder) Error(msg string, args ...any) { r.add("error", msg, args) }

func TestEvents_Levels(t *testing.T) {
	rec := &recorder{}

	ToolCall(rec, "Marvin", "search", time.Millisecond, nil)
	ToolCall(rec, "Marvin", "search", time.Millisecond, errors.New("boom"))
	ModelCall(rec, "gpt-4o-mini", "openai", 12, time.Second, nil)
	ModelCall(rec, "gpt-4o-mini", "openai", 0, time.Second, errors.New("rate limited"))
	TaskFinished(rec, 3, time.Second, nil)

	levels := make([]string, 0, len(rec.entries))
	for _, e := range rec.entries {
		levels = append(levels, e.level)
	}

	assert.Equal(t, []string{"info", "warn", "info", "error", "info"}, levels)
	assert.Equal(t, EventModelCall, rec.entries[2].msg)
	assert.Contains(t, rec.entries[1].args, "boom")
	assert.Contains(t, rec.entries[2].args, 12)
}

func TestWith(t *testing.T) {
	rec := &recorder{}

	l := With(rec, "run_id", "run_1")
	l.Info("hello", "k", "v")

	assert.Equal(t, []any{"run_id", "run_1", "k", "v"}, rec.entries[0].args)

	_, ok := With(NoOpLogger{}, "a", 1).(NoOpLogger)
	assert.True(t, ok)
}
