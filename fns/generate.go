package fns

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hupe1980/vexora/task"
)

// GenerateAsync produces n values of type T (n < 1 means 1). With T = any
// the values are strings and instructions are required: without them the
// call fails with ErrInstructionsRequired before anything runs.
func GenerateAsync[T any](ctx context.Context, n int, optFns ...func(o *Options)) *task.Pending[[]T] {
	opts := newOptions(optFns)

	if task.IsUntyped(reflect.TypeOf((*T)(nil)).Elem()) && opts.Instructions == "" {
		return task.Rejected[[]T](ErrInstructionsRequired)
	}

	if n < 1 {
		n = 1
	}

	rt, err := opts.runtime()
	if err != nil {
		return task.Rejected[[]T](err)
	}

	instructions := fmt.Sprintf("Generate a list of %d diverse, high quality values of the requested type.", n)
	if n == 1 {
		instructions = "Generate a list containing exactly 1 high quality value of the requested type."
	}

	taskOpts := append(
		opts.taskOptions(rt, opts.Thread, map[string]any{LabelCount: n}),
		task.WithResultSchema(listSchema[T]()),
	)

	return task.RunAsync[[]T](ctx, instructions, taskOpts...)
}

// Generate is the synchronous form of GenerateAsync.
func Generate[T any](ctx context.Context, n int, optFns ...func(o *Options)) ([]T, error) {
	return GenerateAsync[T](ctx, n, optFns...).Wait(ctx)
}

// GenerateSchemaInstructions is the task given to the actor writing a schema.
const GenerateSchemaInstructions = "Generate a JSON schema that describes the values in the additional instructions. " +
	"Use only standard JSON schema keywords."

// GenerateSchemaAsync produces a JSON schema from a description.
func GenerateSchemaAsync(ctx context.Context, instructions string, optFns ...func(o *Options)) *task.Pending[map[string]any] {
	if instructions == "" {
		return task.Rejected[map[string]any](ErrInstructionsRequired)
	}

	opts := newOptions(append(optFns, WithInstructions(instructions)))

	rt, err := opts.runtime()
	if err != nil {
		return task.Rejected[map[string]any](err)
	}

	return task.RunAsync[map[string]any](ctx, GenerateSchemaInstructions, opts.taskOptions(rt, opts.Thread, nil)...)
}

// GenerateSchema is the synchronous form of GenerateSchemaAsync.
func GenerateSchema(ctx context.Context, instructions string, optFns ...func(o *Options)) (map[string]any, error) {
	return GenerateSchemaAsync(ctx, instructions, optFns...).Wait(ctx)
}
