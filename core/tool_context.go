package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/vexora/logging"
)

// TurnActions encodes orchestration signals raised by tools during a turn.
// Absence is distinguished from zero values through pointers.
type TurnActions struct {
	EndTurn    bool            `json:"end_turn,omitempty"`
	TaskResult json.RawMessage `json:"task_result,omitempty"`
	TaskFailed *string         `json:"task_failed,omitempty"`
}

// Merge folds other into a. The first recorded outcome wins.
func (a *TurnActions) Merge(other TurnActions) {
	a.EndTurn = a.EndTurn || other.EndTurn
	if a.TaskResult == nil && a.TaskFailed == nil {
		a.TaskResult = other.TaskResult
		a.TaskFailed = other.TaskFailed
	}
}

// Completed reports whether a task outcome was recorded.
func (a TurnActions) Completed() bool { return a.TaskResult != nil || a.TaskFailed != nil }

// ToolContext provides a constrained surface for tool implementations invoked
// by an actor. It accumulates TurnActions without touching the orchestrator
// state until the orchestrator merges them.
type ToolContext struct {
	ctx            context.Context
	orch           Orchestrator
	functionCallID string
	actor          Actor
	actions        TurnActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a running task and a
// function call id. The acting actor is taken from ctx.
func NewToolContext(ctx context.Context, orch Orchestrator, functionCallID string) *ToolContext {
	var l logging.Logger
	if orch != nil {
		l = orch.Logger()
	}

	return &ToolContext{
		ctx:            ctx,
		orch:           orch,
		functionCallID: functionCallID,
		actor:          CurrentActor(ctx),
		loggerAdapter:  newLoggerAdapter(l),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Orchestrator returns the running task view, possibly nil in tests.
func (tc *ToolContext) Orchestrator() Orchestrator { return tc.orch }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Actor returns the actor that issued the call.
func (tc *ToolContext) Actor() Actor { return tc.actor }

// ActorName returns the name of the calling actor or "".
func (tc *ToolContext) ActorName() string {
	if tc.actor == nil {
		return ""
	}

	return tc.actor.Name()
}

// Thread returns the thread of the running task.
func (tc *ToolContext) Thread() *Thread {
	if tc.orch != nil {
		return tc.orch.Thread()
	}

	return ThreadFromContext(tc.ctx)
}

// RunID returns the run ID, or "" outside a run.
func (tc *ToolContext) RunID() string {
	if tc.orch == nil {
		return ""
	}

	return tc.orch.RunID()
}

// Actions returns the actions accumulated so far.
func (tc *ToolContext) Actions() *TurnActions { return &tc.actions }

// EndTurn requests that the actor's turn ends after the current batch of
// tool calls.
func (tc *ToolContext) EndTurn() {
	tc.actions.EndTurn = true
}

// CompleteTask records the task result and ends the turn. The result must be
// valid JSON.
func (tc *ToolContext) CompleteTask(result json.RawMessage) error {
	if !json.Valid(result) {
		return fmt.Errorf("task result is not valid JSON")
	}

	if tc.actions.Completed() {
		return fmt.Errorf("task outcome already recorded")
	}

	tc.actions.TaskResult = result
	tc.actions.EndTurn = true
	tc.LogInfo("tool.task.completed", "actor", tc.ActorName(), "function_call_id", tc.functionCallID)

	return nil
}

// FailTask records a task failure with reason and ends the turn.
func (tc *ToolContext) FailTask(reason string) error {
	if tc.actions.Completed() {
		return fmt.Errorf("task outcome already recorded")
	}

	tc.actions.TaskFailed = &reason
	tc.actions.EndTurn = true
	tc.LogInfo("tool.task.failed", "actor", tc.ActorName(), "function_call_id", tc.functionCallID, "reason", reason)

	return nil
}
