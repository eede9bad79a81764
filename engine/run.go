package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/logging"
	"github.com/hupe1980/vexora/memory"
	"github.com/hupe1980/vexora/model"
	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/tool"
)

// reminder is sent when the thread ends with an assistant message so the
// model continues instead of repeating itself.
const reminder = "Continue working on the task. When you are done, end your turn by calling one of the end-turn tools."

// run is the state of one task execution. It implements core.Orchestrator.
type run struct {
	id      string
	req     *task.Request
	engine  *Engine
	actors  []core.Actor
	limiter *core.TurnLimiter
	turn    atomic.Int32
	logger  logging.Logger
}

var _ core.Orchestrator = (*run)(nil)

func newRun(e *Engine, id string, req *task.Request) *run {
	actors := core.NewActorSet(req.Actors...).Actors()
	if len(actors) == 0 && e.defaultActor != nil {
		actors = []core.Actor{e.defaultActor}
	}

	return &run{
		id:      id,
		req:     req,
		engine:  e,
		actors:  actors,
		limiter: core.NewTurnLimiter(e.config.MaxTurns),
		logger:  logging.With(e.logger, "run_id", id, "task_id", req.ID, "thread_id", req.Thread.ID),
	}
}

// RunID implements core.Orchestrator.
func (r *run) RunID() string { return r.id }

// TaskID implements core.Orchestrator.
func (r *run) TaskID() string { return r.req.ID }

// Thread implements core.Orchestrator.
func (r *run) Thread() *core.Thread { return r.req.Thread }

// Turn implements core.Orchestrator.
func (r *run) Turn() int { return int(r.turn.Load()) }

// Logger implements core.Orchestrator.
func (r *run) Logger() logging.Logger { return r.logger }

func (r *run) callbackContext(t CallbackType, actor core.Actor) *CallbackContext {
	return &CallbackContext{
		Orchestrator: r,
		Actor:        actor,
		CallbackType: t,
		Metadata:     map[string]any{},
	}
}

// execute lets the actors take turns until one of them records an outcome.
// A turn that ends without an outcome hands over to the next actor.
func (r *run) execute(ctx context.Context) (json.RawMessage, error) {
	if len(r.actors) == 0 {
		return nil, core.ErrNoActor
	}

	r.logger.Debug("engine.task.start", "actors", len(r.actors), "max_turns", r.engine.config.MaxTurns)

	next := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.limiter.Increment(); err != nil {
			return nil, fmt.Errorf("task %s: %w", r.req.ID, err)
		}

		actor := r.actors[next]

		var actions core.TurnActions

		err := core.WithActor(ctx, actor, func(ctx context.Context) error {
			var err error
			actions, err = r.takeTurn(ctx, actor)
			return err
		})
		if err != nil {
			return nil, err
		}

		switch {
		case actions.TaskFailed != nil:
			return nil, &core.TaskFailedError{TaskID: r.req.ID, Reason: *actions.TaskFailed}
		case actions.TaskResult != nil:
			return actions.TaskResult, nil
		case actions.EndTurn:
			next = (next + 1) % len(r.actors)
		}
	}
}

func (r *run) takeTurn(ctx context.Context, actor core.Actor) (core.TurnActions, error) {
	turn := int(r.turn.Add(1))
	logger := logging.With(r.logger, "actor", actor.Name(), "turn", turn)

	if err := actor.StartTurn(ctx, r); err != nil {
		return core.TurnActions{}, fmt.Errorf("%s start turn: %w", actor.FriendlyName(true), err)
	}

	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, r.callbackContext(CallbackBeforeTurn, actor)); err != nil {
		return core.TurnActions{}, err
	}

	endTurn := r.endTurnTools(actor)
	tools := r.toolsFor(actor, endTurn)

	prompt, err := r.buildPrompt(actor, endTurn)
	if err != nil {
		return core.TurnActions{}, err
	}

	m, err := r.engine.modelFor(actor)
	if err != nil {
		return core.TurnActions{}, err
	}

	req := model.Request{
		Instructions: prompt,
		Contents:     r.contents(),
		Tools:        model.ToolDefinitions(tools),
		Stream:       r.engine.config.Stream,
	}

	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, r.callbackContext(CallbackBeforeModel, actor)); err != nil {
		return core.TurnActions{}, err
	}

	var onPartial func(model.Response)
	if r.engine.onPartial != nil {
		onPartial = func(resp model.Response) { r.engine.onPartial(actor, resp) }
	}

	start := time.Now()
	resp, err := model.GenerateFinal(ctx, m, req, onPartial)

	tokens := 0
	if err == nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	logging.ModelCall(logger, m.Info().Name, m.Info().Provider, tokens, time.Since(start), err)

	if err != nil {
		return core.TurnActions{}, fmt.Errorf("%s model call: %w", actor.FriendlyName(true), err)
	}

	content := resp.Content
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}

	msg := core.NewMessage(actor.Name(), content)
	msg.RunID = r.id

	cc := r.callbackContext(CallbackAfterModel, actor)
	cc.Message = &msg
	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackAfterModel, cc); err != nil {
		return core.TurnActions{}, err
	}

	if len(msg.Content.Parts) > 0 {
		if err := r.req.Thread.AddMessage(ctx, msg); err != nil {
			return core.TurnActions{}, err
		}
	}

	result := core.TurnResult{
		Turn:     turn,
		Actor:    actor.Name(),
		Response: msg,
		Calls:    msg.FunctionCalls(),
	}
	result.Usage = tokens

	var actions core.TurnActions

	if len(result.Calls) == 0 {
		if raw, ok := r.textResult(msg); ok {
			actions.TaskResult = raw
			actions.EndTurn = true
			result.EndedBy = "text"
		}
	} else {
		registry := make(map[string]core.Tool, len(tools))
		for _, t := range tools {
			registry[t.Name()] = t
		}

		outcomes := r.engine.executor.Execute(ctx, actor, result.Calls, func(ctx context.Context, fc core.FunctionCall) CallOutcome {
			return r.callTool(ctx, actor, registry, fc)
		})

		for _, o := range outcomes {
			respMsg := core.NewFunctionResponseMessage(actor.Name(), o.Call.ID, o.Call.Name, o.Result, o.Err)
			respMsg.RunID = r.id

			if err := r.req.Thread.AddMessage(ctx, respMsg); err != nil {
				return core.TurnActions{}, err
			}

			result.Responses = append(result.Responses, respMsg.FunctionResponses()...)

			actions.Merge(o.Actions)
			if o.Actions.EndTurn && result.EndedBy == "" {
				result.EndedBy = o.Call.Name
			}
		}
	}

	logger.Debug("engine.turn.done",
		"calls", len(result.Calls),
		"ended_by", result.EndedBy,
		"completed", actions.Completed(),
	)

	if err := actor.EndTurn(ctx, r, result); err != nil {
		return core.TurnActions{}, fmt.Errorf("%s end turn: %w", actor.FriendlyName(true), err)
	}

	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, r.callbackContext(CallbackAfterTurn, actor)); err != nil {
		return core.TurnActions{}, err
	}

	return actions, nil
}

// callTool runs one tool call with its callbacks. The returned outcome
// carries the actions the tool recorded.
func (r *run) callTool(ctx context.Context, actor core.Actor, registry map[string]core.Tool, fc core.FunctionCall) CallOutcome {
	cc := r.callbackContext(CallbackBeforeTool, actor)
	cc.Call = &fc
	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTool, cc); err != nil {
		return CallOutcome{Call: fc, Err: err}
	}

	toolCtx := core.NewToolContext(ctx, r, fc.ID)
	res, err := executeTool(registry, toolCtx, fc.Name, fc.Arguments)

	out := CallOutcome{Call: fc, Result: res, Err: err}
	if err == nil {
		out.Actions = *toolCtx.Actions()
	}

	cc = r.callbackContext(CallbackAfterTool, actor)
	cc.Call = &fc
	cc.Err = err
	if cbErr := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackAfterTool, cc); cbErr != nil {
		out.Err = cbErr
		out.Actions = core.TurnActions{}
	}

	return out
}

// endTurnTools returns the actor's end-turn tools, or the default pair
// recording success or failure of the task.
func (r *run) endTurnTools(actor core.Actor) []core.EndTurn {
	if custom := actor.EndTurnTools(); len(custom) > 0 {
		return custom
	}

	return []core.EndTurn{
		tool.NewMarkTaskSuccessful(r.req.ResultSchema),
		tool.NewMarkTaskFailed(),
	}
}

func (r *run) toolsFor(actor core.Actor, endTurn []core.EndTurn) []core.Tool {
	var tools []core.Tool

	tools = append(tools, actor.Tools()...)

	for _, m := range actor.Memories() {
		tools = append(tools, memory.Tools(m)...)
	}

	for _, t := range endTurn {
		tools = append(tools, t)
	}

	return tools
}

// contents converts the thread history into model input. Leading tool
// responses whose call fell outside the history window are dropped, and a
// reminder is added when the model would otherwise see its own last word.
func (r *run) contents() []core.Content {
	history := r.req.Thread.History(r.engine.config.HistoryLimit)

	for len(history) > 0 && history[0].Role() == core.RoleTool {
		history = history[1:]
	}

	contents := make([]core.Content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, m.Content)
	}

	if len(contents) == 0 || contents[len(contents)-1].Role == core.RoleAssistant {
		contents = append(contents, core.Content{
			Role:  core.RoleUser,
			Parts: []core.Part{core.TextPart{Text: reminder}},
		})
	}

	return contents
}

// textResult accepts a plain text reply as the result of tasks whose result
// is a string.
func (r *run) textResult(msg core.Message) (json.RawMessage, bool) {
	if r.req.ResultSchema == nil || r.req.ResultSchema["type"] != "string" {
		return nil, false
	}

	text := msg.Text()
	if text == "" {
		return nil, false
	}

	raw, err := json.Marshal(text)
	if err != nil {
		return nil, false
	}

	return raw, true
}
