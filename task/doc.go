// Package task describes units of work handed to a Runner and the typed
// entry points used to run them.
//
// A Task[T] carries instructions, a context mapping, the candidate actors and
// a thread reference. T declares the result shape; the result returned by the
// runner is decoded strictly into T. Leave T as any for tasks that declare no
// result type.
//
// Every task runs on its own goroutine (RunAsync returns a Pending[T]); Run is
// RunAsync followed by Wait, so both entry points behave identically.
package task
