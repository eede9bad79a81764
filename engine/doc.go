// Package engine implements the default task runner.
//
// An Engine executes a task.Request by letting the task's actors take turns
// against a model. Each turn:
//
//  1. calls the actor's StartTurn hook
//  2. renders the system prompt (actor prompt plus the task section)
//  3. sends the thread history and the actor's tools to the model
//  4. appends the response to the thread and executes requested tool calls
//     in parallel, appending one tool response per call in call order
//  5. calls the actor's EndTurn hook
//
// The tools offered to an actor are its own tools, two tools per memory
// (store_memory_<key>, search_memory_<key>) and its end-turn tools, which
// default to mark_task_successful and mark_task_failed. A task ends when an
// end-turn tool records an outcome; an end-turn tool that records none
// hands the next turn to the following actor.
//
// # Configuration
//
//	e := engine.New(
//	    engine.WithModel(m),
//	    engine.WithMaxTurns(20),
//	    engine.WithToolParallelism(8),
//	    engine.WithLogger(logger),
//	)
//	task.SetDefault(&task.Runtime{Runner: e, Threads: store})
//
// # Callbacks
//
// A CallbackManager observes the run at task, turn, model and tool
// boundaries. Errors returned by callbacks abort the task, except for
// OnError callbacks which are only logged.
package engine
