package core

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfOrderRelease is returned when an activation is released while a
	// nested activation derived from it is still active.
	ErrOutOfOrderRelease = errors.New("actor activation released out of order")

	// ErrThreadNotFound is returned by ThreadStore.Get for unknown ids.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrInvalidThreadID is returned by ThreadStore.Append for ids no thread
	// can be stored under, the empty id included.
	ErrInvalidThreadID = errors.New("invalid thread id")

	// ErrMaxTurnsExceeded is returned when a task does not finish within the
	// configured number of turns.
	ErrMaxTurnsExceeded = errors.New("exceeded max turns")

	// ErrNoActor is returned when a task has no actor to run it.
	ErrNoActor = errors.New("no actor available")
)

// TemplateError reports a prompt template that could not be rendered.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// TaskFailedError reports a task that an actor explicitly marked as failed.
type TaskFailedError struct {
	TaskID string
	Reason string
}

func (e *TaskFailedError) Error() string {
	if e.TaskID == "" {
		return "task failed: " + e.Reason
	}

	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}
