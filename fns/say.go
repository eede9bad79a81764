package fns

import (
	"context"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/thread"
)

// SayInstructions is the task given to the actor answering a user.
const SayInstructions = "Respond to the user"

// SayAsync appends message to the thread as a user message and lets the
// actor respond to it.
func SayAsync(ctx context.Context, message string, optFns ...func(o *Options)) *task.Pending[string] {
	opts := newOptions(optFns)

	rt, err := opts.runtime()
	if err != nil {
		return task.Rejected[string](err)
	}

	return task.Go(ctx, func(ctx context.Context) (string, error) {
		var reply string

		err := thread.Use(ctx, rt.Threads, opts.Thread, func(ctx context.Context, th *core.Thread) error {
			if err := th.AddUserMessage(ctx, message); err != nil {
				return err
			}

			var err error
			reply, err = task.Run[string](ctx, SayInstructions, opts.taskOptions(rt, thread.Handle(th), nil)...)

			return err
		})

		return reply, err
	})
}

// Say is the synchronous form of SayAsync.
func Say(ctx context.Context, message string, optFns ...func(o *Options)) (string, error) {
	return SayAsync(ctx, message, optFns...).Wait(ctx)
}
