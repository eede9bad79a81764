package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Status is the final state of a task.
type Status string

// Task states.
const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// Outcome is the non-raising view of a finished task.
type Outcome[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Failed reports whether the task failed.
func (o Outcome[T]) Failed() bool { return o.Status == StatusFailed }

// Pending is a task running on its own goroutine.
type Pending[T any] struct {
	done          chan struct{}
	value         T
	err           error
	raiseOnFailed bool
}

// Go runs fn on a new goroutine. Panics are converted to errors.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{}), raiseOnFailed: true}

	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
			}
		}()

		p.value, p.err = fn(ctx)
	}()

	return p
}

// Done is closed once the task finished.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the task finished or ctx is done. With raise on failure
// disabled a task the runner failed yields the zero value and a nil error.
// Cancellation, missing runtimes, thread store errors and results that do
// not match T are always reported.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-p.done:
	}

	if !p.raiseOnFailed && isExecutionFailure(p.err) {
		var zero T
		return zero, nil
	}

	return p.value, unwrapFailure(p.err)
}

// Outcome blocks like Wait but never returns an error.
func (p *Pending[T]) Outcome(ctx context.Context) Outcome[T] {
	select {
	case <-ctx.Done():
		return Outcome[T]{Status: StatusFailed, Err: ctx.Err()}
	case <-p.done:
	}

	if p.err != nil {
		return Outcome[T]{Status: StatusFailed, Err: unwrapFailure(p.err)}
	}

	return Outcome[T]{Status: StatusSuccessful, Value: p.value}
}

// executionFailure marks an error the runner reported while executing the
// task. Only these are subject to raise on failure.
type executionFailure struct {
	err error
}

func (f *executionFailure) Error() string { return f.err.Error() }

func (f *executionFailure) Unwrap() error { return f.err }

func isExecutionFailure(err error) bool {
	var f *executionFailure
	return errors.As(err, &f) && !isCancellation(err)
}

func unwrapFailure(err error) error {
	if f, ok := err.(*executionFailure); ok {
		return f.err
	}

	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Rejected returns an already finished Pending holding err.
func Rejected[T any](err error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{}), err: err, raiseOnFailed: true}
	close(p.done)

	return p
}
