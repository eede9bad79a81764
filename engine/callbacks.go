package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/vexora/core"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Available callback types:
//   - BeforeTask/AfterTask: around a complete task run
//   - BeforeTurn/AfterTurn: around one actor turn
//   - BeforeModel/AfterModel: around model interactions
//   - BeforeTool/AfterTool: around individual tool executions
//   - OnError: when a task run fails
//
// Callbacks are executed synchronously. An error returned from a Before*
// or After* callback aborts the task.
type CallbackType string

const (
	// CallbackBeforeTask is triggered before the first turn of a task.
	CallbackBeforeTask CallbackType = "before_task"

	// CallbackAfterTask is triggered after a task produced its result.
	CallbackAfterTask CallbackType = "after_task"

	// CallbackBeforeTurn is triggered after the actor's StartTurn hook.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn is triggered after the actor's EndTurn hook.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackBeforeModel is triggered before the model is called.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel is triggered once the final model response arrived.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool is triggered before tool execution.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered after tool execution.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError is triggered when a task run fails. Its own errors are
	// logged and otherwise ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a lifecycle point.
// Fields that do not apply to the callback type are left empty.
type CallbackContext struct {
	// Orchestrator is the view of the running task.
	Orchestrator core.Orchestrator

	// Actor is the acting actor; nil for task level callbacks.
	Actor core.Actor

	// Message is the model response (AfterModel) or the tool response
	// (AfterTool).
	Message *core.Message

	// Call is the tool call being executed (BeforeTool, AfterTool).
	Call *core.FunctionCall

	// Result is the raw task result (AfterTask).
	Result json.RawMessage

	// Err is the failure (OnError) or the tool error (AfterTool).
	Err error

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// ActorName returns the name of the acting actor, or "".
func (cc *CallbackContext) ActorName() string {
	if cc.Actor == nil {
		return ""
	}

	return cc.Actor.Name()
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast (they run synchronously) and must be safe
// for concurrent use: tool callbacks of one turn run in parallel.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackBeforeTurn,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("turn of %s", cc.ActorName())
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is the registry of callbacks. Callbacks run in
// registration order and the first error stops the chain. Registration and
// execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
//
// Example:
//
//	manager := NewCallbackManager()
//	manager.RegisterCallback(loggingCallback)
//	manager.RegisterCallback(validationCallback)
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type
// and returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackBeforeTurn, func(message string) {
//	    log.Printf("[ENGINE] %s", message)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event with the task, actor and call involved.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	taskID := ""
	if callbackCtx.Orchestrator != nil {
		taskID = callbackCtx.Orchestrator.TaskID()
	}

	message := fmt.Sprintf("[%s] Task: %s, Actor: %s", c.callbackType, taskID, callbackCtx.ActorName())
	if callbackCtx.Call != nil {
		message += ", Tool: " + callbackCtx.Call.Name
	}
	if callbackCtx.Err != nil {
		message += ", Error: " + callbackCtx.Err.Error()
	}

	c.logger(message)

	return nil
}

// ResultValidationCallback checks the raw result of every successful task.
// A validation error turns the task into a failure.
//
// Example:
//
//	validator := func(raw json.RawMessage) error {
//	    if string(raw) == `""` {
//	        return errors.New("empty answer")
//	    }
//	    return nil
//	}
//	callback := NewResultValidationCallback(validator)
type ResultValidationCallback struct {
	validator func(result json.RawMessage) error
}

// NewResultValidationCallback creates a new result validation callback.
func NewResultValidationCallback(validator func(result json.RawMessage) error) *ResultValidationCallback {
	return &ResultValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackAfterTask).
func (c *ResultValidationCallback) Type() CallbackType {
	return CallbackAfterTask
}

// Execute validates the task result.
func (c *ResultValidationCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Result != nil {
		return c.validator(callbackCtx.Result)
	}

	return nil
}
