package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/internal/util"
	"github.com/hupe1980/vexora/thread"
)

// Options configures a task.
type Options struct {
	Context        map[string]any
	Actors         []core.Actor
	Thread         thread.Ref
	Runtime        *Runtime
	RaiseOnFailure bool

	// ResultSchema replaces the schema derived from the result type.
	ResultSchema map[string]any
}

// WithContext merges values into the task context.
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

// WithActors restricts the task to the given actors; the first one acts first.
func WithActors(actors ...core.Actor) func(o *Options) {
	return func(o *Options) { o.Actors = append(o.Actors, actors...) }
}

// WithThread selects the thread the task runs in.
func WithThread(ref thread.Ref) func(o *Options) {
	return func(o *Options) { o.Thread = ref }
}

// WithRuntime overrides the default runtime.
func WithRuntime(rt *Runtime) func(o *Options) {
	return func(o *Options) { o.Runtime = rt }
}

// WithResultSchema announces schema instead of the one derived from the
// result type. The result is still decoded into the result type.
func WithResultSchema(schema map[string]any) func(o *Options) {
	return func(o *Options) { o.ResultSchema = schema }
}

// WithRaiseOnFailure controls whether Wait reports errors the runner
// returns while executing the task (default true). Outcome always does.
// Errors raised before or after execution are reported either way.
func WithRaiseOnFailure(raise bool) func(o *Options) {
	return func(o *Options) { o.RaiseOnFailure = raise }
}

// Task is a unit of work with a declared result type T.
type Task[T any] struct {
	ID           string
	Instructions string
	Context      map[string]any
	Actors       []core.Actor

	thread         thread.Ref
	runtime        *Runtime
	raiseOnFailure bool
	schema         map[string]any
}

// New creates a task.
func New[T any](instructions string, optFns ...func(o *Options)) *Task[T] {
	opts := Options{RaiseOnFailure: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Context == nil {
		opts.Context = map[string]any{}
	}

	return &Task[T]{
		ID:             core.NewShortID(),
		Instructions:   instructions,
		Context:        opts.Context,
		Actors:         opts.Actors,
		thread:         opts.Thread,
		runtime:        opts.Runtime,
		raiseOnFailure: opts.RaiseOnFailure,
		schema:         opts.ResultSchema,
	}
}

// ResultSchema returns the schema announced to the actors: the override if
// set, else the schema of T (nil when T is any).
func (t *Task[T]) ResultSchema() map[string]any {
	if t.schema != nil {
		return t.schema
	}

	return SchemaOf[T]()
}

// RunAsync starts the task on its own goroutine.
func (t *Task[T]) RunAsync(ctx context.Context) *Pending[T] {
	p := Go(ctx, t.run)
	p.raiseOnFailed = t.raiseOnFailure

	return p
}

// Run starts the task and waits for its result.
func (t *Task[T]) Run(ctx context.Context) (T, error) {
	return t.RunAsync(ctx).Wait(ctx)
}

func (t *Task[T]) run(ctx context.Context) (T, error) {
	var zero T

	rt := t.runtime
	if rt == nil {
		rt = Default()
	}
	if rt == nil || rt.Runner == nil {
		return zero, ErrNoRuntime
	}

	logger := rt.logger()
	ctx = core.ContextWithLogger(ctx, logger)

	var result T

	err := thread.Use(ctx, rt.Threads, t.thread, func(ctx context.Context, th *core.Thread) error {
		req := &Request{
			ID:           t.ID,
			Instructions: t.Instructions,
			Context:      t.Context,
			ResultSchema: t.ResultSchema(),
			Actors:       t.Actors,
			Thread:       th,
		}

		logger.Debug("task.start", "task_id", t.ID, "thread_id", th.ID, "actors", len(t.Actors))

		exec := func(ctx context.Context) error {
			raw, err := rt.Runner.RunTask(ctx, req)
			if err != nil {
				logger.Warn("task.failed", "task_id", t.ID, "error", err.Error())
				return &executionFailure{err: err}
			}

			result, err = Decode[T](raw)
			if err != nil {
				return fmt.Errorf("task %s: %w", t.ID, err)
			}

			logger.Debug("task.done", "task_id", t.ID)

			return nil
		}

		// the lead actor is current while the runner works
		if len(t.Actors) > 0 {
			return core.WithActor(ctx, t.Actors[0], exec)
		}

		return exec(ctx)
	})
	if err != nil {
		return zero, err
	}

	return result, nil
}

// Run runs a task to completion.
func Run[T any](ctx context.Context, instructions string, optFns ...func(o *Options)) (T, error) {
	return New[T](instructions, optFns...).Run(ctx)
}

// RunAsync starts a task and returns immediately.
func RunAsync[T any](ctx context.Context, instructions string, optFns ...func(o *Options)) *Pending[T] {
	return New[T](instructions, optFns...).RunAsync(ctx)
}

// ResultError reports a result that does not match the declared type.
type ResultError struct {
	Type string
	Raw  json.RawMessage
	Err  error
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("result does not match %s: %v", e.Type, e.Err)
}

func (e *ResultError) Unwrap() error { return e.Err }

// Decode strictly decodes raw into T: unknown object fields and trailing
// data are rejected.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&v); err != nil {
		return v, &ResultError{Type: typeName[T](), Raw: raw, Err: err}
	}

	if dec.More() {
		return v, &ResultError{Type: typeName[T](), Raw: raw, Err: fmt.Errorf("trailing data")}
	}

	return v, nil
}

// SchemaOf returns the JSON schema describing T, or nil when T is an empty
// interface (no declared result type).
func SchemaOf[T any]() map[string]any {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if IsUntyped(rt) {
		return nil
	}

	return util.TypeSchema(rt)
}

// IsUntyped reports whether rt declares no result shape.
func IsUntyped(rt reflect.Type) bool {
	return rt.Kind() == reflect.Interface && rt.NumMethod() == 0
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
