package fns

import (
	"context"
	"reflect"

	"github.com/hupe1980/vexora/task"
)

// ExtractInstructions is the task given to the actor extracting values.
const ExtractInstructions = "Extract a list of values of the requested type from the provided data. " +
	"Only extract values that are present in the data."

// ExtractAsync pulls every value of type T out of data. With T = any the
// values are strings.
func ExtractAsync[T any](ctx context.Context, data any, optFns ...func(o *Options)) *task.Pending[[]T] {
	opts := newOptions(optFns)

	rt, err := opts.runtime()
	if err != nil {
		return task.Rejected[[]T](err)
	}

	taskOpts := append(
		opts.taskOptions(rt, opts.Thread, map[string]any{LabelData: data}),
		task.WithResultSchema(listSchema[T]()),
	)

	return task.RunAsync[[]T](ctx, ExtractInstructions, taskOpts...)
}

// Extract is the synchronous form of ExtractAsync.
func Extract[T any](ctx context.Context, data any, optFns ...func(o *Options)) ([]T, error) {
	return ExtractAsync[T](ctx, data, optFns...).Wait(ctx)
}

// listSchema describes a list of T; untyped items are strings.
func listSchema[T any]() map[string]any {
	if task.IsUntyped(reflect.TypeOf((*T)(nil)).Elem()) {
		return task.SchemaOf[[]string]()
	}

	return task.SchemaOf[[]T]()
}
