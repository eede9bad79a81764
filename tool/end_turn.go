package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/vexora/core"
)

// Names of the built-in end-turn tools.
const (
	MarkTaskSuccessfulName = "mark_task_successful"
	MarkTaskFailedName     = "mark_task_failed"
)

// endTurnTool wraps a FunctionTool and marks it as turn ending.
type endTurnTool struct {
	*FunctionTool
}

func (endTurnTool) EndsTurn() {}

// NewEndTurnTool builds a custom end-turn tool. The function usually records
// an outcome via toolCtx.CompleteTask or toolCtx.FailTask; if it records
// nothing the turn still ends and the next actor (or turn) takes over.
func NewEndTurnTool(name, description string, parameters map[string]any, fn Func) EndTurn {
	return endTurnTool{FunctionTool: NewFunctionTool(name, description, parameters, func(tc *core.ToolContext, args map[string]any) (any, error) {
		res, err := fn(tc, args)
		if err != nil {
			return nil, err
		}

		tc.EndTurn()

		return res, nil
	})}
}

// NewMarkTaskSuccessful returns the tool an actor calls to deliver the task
// result. resultSchema describes the "result" argument; nil accepts any value.
func NewMarkTaskSuccessful(resultSchema map[string]any) EndTurn {
	if resultSchema == nil {
		resultSchema = map[string]any{}
	}

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": resultSchema,
		},
		"required": []string{"result"},
	}

	return NewEndTurnTool(
		MarkTaskSuccessfulName,
		"Mark the task as successful and provide its result. Call this exactly once, when the task is complete.",
		params,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			raw, err := json.Marshal(args["result"])
			if err != nil {
				return nil, NewToolError(MarkTaskSuccessfulName, fmt.Sprintf("encode result: %v", err), CodeValidation)
			}

			if err := tc.CompleteTask(raw); err != nil {
				return nil, NewToolError(MarkTaskSuccessfulName, err.Error(), CodeOutcome)
			}

			return map[string]any{"status": "successful"}, nil
		},
	)
}

// NewMarkTaskFailed returns the tool an actor calls when it cannot complete
// the task.
func NewMarkTaskFailed() EndTurn {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{"type": "string", "description": "Why the task could not be completed"},
		},
		"required": []string{"reason"},
	}

	return NewEndTurnTool(
		MarkTaskFailedName,
		"Mark the task as failed. Only use this if the task is impossible to complete.",
		params,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			reason, _ := args["reason"].(string)
			if reason == "" {
				return nil, NewToolError(MarkTaskFailedName, "field 'reason' must be a non-empty string", CodeValidation)
			}

			if err := tc.FailTask(reason); err != nil {
				return nil, NewToolError(MarkTaskFailedName, err.Error(), CodeOutcome)
			}

			return map[string]any{"status": "failed"}, nil
		},
	)
}
