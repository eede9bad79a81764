package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/logging"
)

// ErrNoRuntime is returned when a task runs without a configured runtime.
var ErrNoRuntime = errors.New("no task runtime configured")

// Request is what a Runner receives: the fully resolved task.
type Request struct {
	ID           string
	Instructions string
	Context      map[string]any
	ResultSchema map[string]any // nil accepts any JSON value
	Actors       []core.Actor
	Thread       *core.Thread
}

// Runner executes a task and returns its result as JSON. A task the actors
// marked as failed is reported as *core.TaskFailedError.
type Runner interface {
	RunTask(ctx context.Context, req *Request) (json.RawMessage, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

// RunTask implements Runner.
func (f RunnerFunc) RunTask(ctx context.Context, req *Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Runtime bundles the collaborators a task needs.
type Runtime struct {
	Runner  Runner
	Threads core.ThreadStore // nil uses a process wide in-memory store
	Logger  logging.Logger
}

var defaultRuntime atomic.Pointer[Runtime]

// Default returns the process wide runtime, or nil.
func Default() *Runtime { return defaultRuntime.Load() }

// SetDefault replaces the process wide runtime and returns the previous one.
func SetDefault(rt *Runtime) *Runtime { return defaultRuntime.Swap(rt) }

func (rt *Runtime) logger() logging.Logger {
	if rt.Logger == nil {
		return logging.NoOpLogger{}
	}

	return rt.Logger
}
