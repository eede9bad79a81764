package fns

import (
	"errors"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/thread"
)

// ErrInstructionsRequired is returned when a delegate has nothing to go on.
var ErrInstructionsRequired = errors.New("Instructions are required") //nolint:staticcheck // user facing message

// Context labels used by the delegates.
const (
	LabelInstructions = "Additional instructions"
	LabelData         = "Data to extract"
	LabelCount        = "Number of items to generate"
)

// Options configures a delegate call.
type Options struct {
	Instructions string
	Actor        core.Actor
	Thread       thread.Ref
	Context      map[string]any
	Runtime      *task.Runtime
}

// WithInstructions adds guidance for the actor.
func WithInstructions(s string) func(o *Options) {
	return func(o *Options) { o.Instructions = s }
}

// WithActor selects the actor; by default the runtime picks one.
func WithActor(a core.Actor) func(o *Options) {
	return func(o *Options) { o.Actor = a }
}

// WithThread runs the call in an existing thread.
func WithThread(t *core.Thread) func(o *Options) {
	return func(o *Options) { o.Thread = thread.Handle(t) }
}

// WithThreadID runs the call in the thread with the given id, creating it
// if needed.
func WithThreadID(id string) func(o *Options) {
	return func(o *Options) { o.Thread = thread.ByID(id) }
}

// WithContext adds labelled context values for the actor.
func WithContext(values map[string]any) func(o *Options) {
	return func(o *Options) {
		if o.Context == nil {
			o.Context = make(map[string]any, len(values))
		}
		for k, v := range values {
			o.Context[k] = v
		}
	}
}

// WithRuntime overrides the default runtime.
func WithRuntime(rt *task.Runtime) func(o *Options) {
	return func(o *Options) { o.Runtime = rt }
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// taskContext merges the caller's context with the additional instructions.
func (o Options) taskContext() map[string]any {
	ctx := make(map[string]any, len(o.Context)+1)
	for k, v := range o.Context {
		ctx[k] = v
	}

	if o.Instructions != "" {
		ctx[LabelInstructions] = o.Instructions
	}

	return ctx
}

func (o Options) runtime() (*task.Runtime, error) {
	rt := o.Runtime
	if rt == nil {
		rt = task.Default()
	}

	if rt == nil || rt.Runner == nil {
		return nil, task.ErrNoRuntime
	}

	return rt, nil
}

// taskOptions translates o into options for a task running in th.
func (o Options) taskOptions(rt *task.Runtime, th thread.Ref, extra map[string]any) []func(*task.Options) {
	ctx := o.taskContext()
	for k, v := range extra {
		ctx[k] = v
	}

	opts := []func(*task.Options){
		task.WithContext(ctx),
		task.WithThread(th),
		task.WithRuntime(rt),
	}

	if o.Actor != nil {
		opts = append(opts, task.WithActors(o.Actor))
	}

	return opts
}
