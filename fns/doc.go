// Package fns provides the task delegates: ready made tasks for the common
// cases of answering a user (Say), pulling typed values out of text
// (Extract) and producing typed values from instructions (Generate,
// GenerateSchema).
//
// Every delegate has an async form returning *task.Pending and a sync form
// that waits on it; both behave identically. Delegates run on the runtime
// passed with WithRuntime or on task.Default().
//
//	answer, err := fns.Say(ctx, "Hello!", fns.WithThreadID("thr_support"))
//
//	cities, err := fns.Extract[string](ctx, "I flew from Paris to Rome", fns.WithInstructions("city names"))
package fns
