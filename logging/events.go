package logging

import "time"

// Event names shared by the task runner.
const (
	EventToolCall     = "tool.call"
	EventModelCall    = "model.call"
	EventTaskFinished = "task.finished"
)

// ToolCall logs one tool invocation. Failures are logged as warnings since
// the error is handed back to the model.
func ToolCall(l Logger, actor, tool string, dur time.Duration, err error) {
	args := []any{"actor", actor, "tool", tool, "duration_ms", dur.Milliseconds(), "success", err == nil}
	if err != nil {
		l.Warn(EventToolCall, append(args, "error", err.Error())...)
		return
	}

	l.Info(EventToolCall, args...)
}

// ModelCall logs one model round trip.
func ModelCall(l Logger, model, provider string, tokens int, dur time.Duration, err error) {
	args := []any{"model", model, "provider", provider, "tokens", tokens, "duration_ms", dur.Milliseconds(), "success", err == nil}
	if err != nil {
		l.Error(EventModelCall, append(args, "error", err.Error())...)
		return
	}

	l.Info(EventModelCall, args...)
}

// TaskFinished logs the end of a task run.
func TaskFinished(l Logger, turns int, dur time.Duration, err error) {
	args := []any{"turns", turns, "duration_ms", dur.Milliseconds(), "success", err == nil}
	if err != nil {
		l.Warn(EventTaskFinished, append(args, "error", err.Error())...)
		return
	}

	l.Info(EventTaskFinished, args...)
}
