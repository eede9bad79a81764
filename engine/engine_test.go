package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/memory"
	"github.com/hupe1980/vexora/model"
	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/tool"
)

// testActor is a minimal core.Actor recording its hook invocations.
type testActor struct {
	id      string
	name    string
	tools   []core.Tool
	endTurn []core.EndTurn
	mems    []core.Memory
	model   model.Model

	mu      sync.Mutex
	started []int
	ended   []core.TurnResult
	seen    []string // current actor names observed in StartTurn
}

func newTestActor(name string) *testActor {
	return &testActor{id: "id-" + strings.ToLower(name), name: name}
}

func (a *testActor) ID() string                   { return a.id }
func (a *testActor) Name() string                 { return a.name }
func (a *testActor) Instructions() string         { return "" }
func (a *testActor) Description() string          { return "" }
func (a *testActor) Prompt() (string, error)      { return "You are " + a.name + ".", nil }
func (a *testActor) FriendlyName(bool) string     { return a.name }
func (a *testActor) Tools() []core.Tool           { return a.tools }
func (a *testActor) EndTurnTools() []core.EndTurn { return a.endTurn }
func (a *testActor) Memories() []core.Memory      { return a.mems }
func (a *testActor) Model() model.Model           { return a.model }

func (a *testActor) StartTurn(ctx context.Context, o core.Orchestrator) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.started = append(a.started, o.Turn())
	if cur := core.CurrentActor(ctx); cur != nil {
		a.seen = append(a.seen, cur.Name())
	}

	return nil
}

func (a *testActor) EndTurn(_ context.Context, _ core.Orchestrator, res core.TurnResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ended = append(a.ended, res)

	return nil
}

func newRequest(instructions string, schema map[string]any, actors ...core.Actor) *task.Request {
	return &task.Request{
		ID:           "tsk_test",
		Instructions: instructions,
		Context:      map[string]any{},
		ResultSchema: schema,
		Actors:       actors,
		Thread:       core.NewThread(""),
	}
}

var stringSchema = map[string]any{"type": "string"}

func TestRunTask_MarkTaskSuccessful(t *testing.T) {
	m := model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, `{"result":"Paris"}`))
	actor := newTestActor("Marvin")
	e := New(WithModel(m))

	req := newRequest("What is the capital of France?", stringSchema, actor)
	req.Context["Additional instructions"] = "Answer with one word"

	raw, err := e.RunTask(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `"Paris"`, string(raw))

	msgs := req.Thread.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Marvin", msgs[0].Author)
	assert.Len(t, msgs[0].FunctionCalls(), 1)
	assert.Len(t, msgs[1].FunctionResponses(), 1)
	assert.Equal(t, msgs[0].RunID, msgs[1].RunID)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "You are Marvin.")
	assert.Contains(t, reqs[0].Instructions, "What is the capital of France?")
	assert.Contains(t, reqs[0].Instructions, "### Additional instructions")
	assert.Contains(t, reqs[0].Instructions, `"type": "string"`)

	var names []string
	for _, d := range reqs[0].Tools {
		names = append(names, d.Function.Name)
	}
	assert.Equal(t, []string{tool.MarkTaskSuccessfulName, tool.MarkTaskFailedName}, names)

	// empty thread: the model gets a user reminder to work with
	require.Len(t, reqs[0].Contents, 1)
	assert.Equal(t, core.RoleUser, reqs[0].Contents[0].Role)

	require.Len(t, actor.ended, 1)
	assert.Equal(t, tool.MarkTaskSuccessfulName, actor.ended[0].EndedBy)
	assert.Equal(t, []string{"Marvin"}, actor.seen)
}

func TestRunTask_MarkTaskFailed(t *testing.T) {
	m := model.NewScriptedModel(model.Call(tool.MarkTaskFailedName, `{"reason":"no data"}`))
	e := New(WithModel(m))

	_, err := e.RunTask(context.Background(), newRequest("x", nil, newTestActor("Marvin")))

	var failed *core.TaskFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "no data", failed.Reason)
	assert.Equal(t, "tsk_test", failed.TaskID)
}

func TestRunTask_PlainTextForStringResult(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("Hello there"))
	e := New(WithModel(m))

	raw, err := e.RunTask(context.Background(), newRequest("Respond to the user", stringSchema, newTestActor("Marvin")))
	require.NoError(t, err)
	assert.JSONEq(t, `"Hello there"`, string(raw))
}

func TestRunTask_PlainTextIsNotAResultForObjects(t *testing.T) {
	m := model.NewScriptedModel(
		model.Reply("thinking..."),
		model.Call(tool.MarkTaskSuccessfulName, `{"result":{"n":1}}`),
	)
	e := New(WithModel(m))

	raw, err := e.RunTask(context.Background(), newRequest("count", map[string]any{"type": "object"}, newTestActor("Marvin")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(raw))

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Contents[len(reqs[1].Contents)-1]
	assert.Equal(t, core.RoleUser, last.Role, "reminder follows the assistant reply")
}

func TestRunTask_MaxTurns(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("a"), model.Reply("b"), model.Reply("c"))
	e := New(WithModel(m), WithMaxTurns(2))

	_, err := e.RunTask(context.Background(), newRequest("x", nil, newTestActor("Marvin")))
	assert.ErrorIs(t, err, core.ErrMaxTurnsExceeded)
	assert.Len(t, m.Requests(), 2)
}

func TestRunTask_NoActor(t *testing.T) {
	e := New(WithModel(model.NewScriptedModel()))

	_, err := e.RunTask(context.Background(), newRequest("x", nil))
	assert.ErrorIs(t, err, core.ErrNoActor)
}

func TestRunTask_DefaultActor(t *testing.T) {
	marvin := newTestActor("Marvin")
	e := New(
		WithModel(model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, `{"result":1}`))),
		WithDefaultActor(marvin),
	)

	_, err := e.RunTask(context.Background(), newRequest("x", nil))
	require.NoError(t, err)
	assert.Len(t, marvin.ended, 1)
}

func TestRunTask_NoModel(t *testing.T) {
	e := New()

	_, err := e.RunTask(context.Background(), newRequest("x", nil, newTestActor("Marvin")))
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestRunTask_ActorModelWins(t *testing.T) {
	own := model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, `{"result":"own"}`))
	actor := newTestActor("Marvin")
	actor.model = own

	e := New(WithModel(model.NewScriptedModel()))

	raw, err := e.RunTask(context.Background(), newRequest("x", nil, actor))
	require.NoError(t, err)
	assert.JSONEq(t, `"own"`, string(raw))
}

func TestRunTask_ModelError(t *testing.T) {
	boom := errors.New("rate limited")
	e := New(WithModel(model.NewScriptedModel(model.Fail(boom))))

	_, err := e.RunTask(context.Background(), newRequest("x", nil, newTestActor("Marvin")))
	assert.ErrorIs(t, err, boom)
}

func TestRunTask_ToolsThenResult(t *testing.T) {
	lookup := tool.NewFunctionTool("lookup", "Look up a city", nil, func(tc *core.ToolContext, args map[string]any) (any, error) {
		return map[string]any{"city": "Paris", "actor": tc.ActorName()}, nil
	})

	actor := newTestActor("Marvin")
	actor.tools = []core.Tool{lookup}

	m := model.NewScriptedModel(
		model.Calls(
			core.FunctionCall{ID: "c1", Name: "lookup", Arguments: `{}`},
			core.FunctionCall{ID: "c2", Name: "missing", Arguments: `{}`},
		),
		model.Call(tool.MarkTaskSuccessfulName, `{"result":"Paris"}`),
	)
	e := New(WithModel(m))

	req := newRequest("x", stringSchema, actor)
	raw, err := e.RunTask(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `"Paris"`, string(raw))

	msgs := req.Thread.GetMessages()
	require.Len(t, msgs, 5)

	first := msgs[1].FunctionResponses()[0]
	assert.Equal(t, "c1", first.ID)
	assert.Equal(t, "Marvin", first.Response.(map[string]any)["actor"])

	second := msgs[2].FunctionResponses()[0]
	assert.Equal(t, "c2", second.ID)
	assert.Contains(t, second.Error, "not found")

	// the second request sees the tool responses
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Contents, 3)
	assert.Equal(t, 2, actor.started[1])
}

func TestRunTask_EndTurnRotatesActors(t *testing.T) {
	handoff := tool.NewEndTurnTool("hand_off", "Pass the turn", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "ok", nil
	})

	alice := newTestActor("Alice")
	alice.endTurn = []core.EndTurn{handoff}

	bob := newTestActor("Bob")

	m := model.NewScriptedModel(
		model.Call("hand_off", `{}`),
		model.Call(tool.MarkTaskSuccessfulName, `{"result":"done"}`),
	)
	e := New(WithModel(m))

	raw, err := e.RunTask(context.Background(), newRequest("x", stringSchema, alice, bob, alice))
	require.NoError(t, err)
	assert.JSONEq(t, `"done"`, string(raw))

	assert.Equal(t, []string{"Alice"}, alice.seen)
	assert.Equal(t, []string{"Bob"}, bob.seen)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "Other actors on this task: Bob.")
	assert.Contains(t, reqs[1].Instructions, "call one of: mark_task_successful, mark_task_failed")
}

func TestRunTask_MemoryTools(t *testing.T) {
	mem, err := memory.New("facts", memory.WithInstructions("Remember user facts."))
	require.NoError(t, err)

	actor := newTestActor("Marvin")
	actor.mems = []core.Memory{mem}

	m := model.NewScriptedModel(
		model.Call("store_memory_facts", `{"content":"The user likes tea"}`),
		model.Call(tool.MarkTaskSuccessfulName, `{"result":"ok"}`),
	)
	e := New(WithModel(m))

	_, err = e.RunTask(context.Background(), newRequest("x", nil, actor))
	require.NoError(t, err)

	hits, err := mem.Search(context.Background(), "tea", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Marvin", hits[0].Metadata["actor"])

	reqs := m.Requests()
	assert.Contains(t, reqs[0].Instructions, `### Memory "facts"`)

	var names []string
	for _, d := range reqs[0].Tools {
		names = append(names, d.Function.Name)
	}
	assert.Contains(t, names, "search_memory_facts")
}

func TestRunTask_Callbacks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)

	cm := NewCallbackManager()
	for _, ct := range []CallbackType{
		CallbackBeforeTask, CallbackBeforeTurn, CallbackBeforeModel, CallbackAfterModel,
		CallbackBeforeTool, CallbackAfterTool, CallbackAfterTurn, CallbackAfterTask,
	} {
		cm.RegisterCallback(NewLoggingCallback(ct, func(message string) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, message)
		}))
	}

	e := New(
		WithModel(model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, `{"result":"x"}`))),
		WithCallbacks(cm),
	)

	_, err := e.RunTask(context.Background(), newRequest("x", nil, newTestActor("Marvin")))
	require.NoError(t, err)

	require.Len(t, events, 8)
	assert.True(t, strings.HasPrefix(events[0], "[before_task] Task: tsk_test"))
	assert.Contains(t, events[4], "Tool: mark_task_successful")
	assert.True(t, strings.HasPrefix(events[7], "[after_task]"))
}

func TestRunTask_ResultValidationCallback(t *testing.T) {
	cm := NewCallbackManager()
	cm.RegisterCallback(NewResultValidationCallback(func(raw json.RawMessage) error {
		if string(raw) == `""` {
			return errors.New("empty answer")
		}
		return nil
	}))

	var onError int
	cm.RegisterCallback(NewFunctionCallback(CallbackOnError, func(context.Context, *CallbackContext) error {
		onError++
		return nil
	}))

	e := New(
		WithModel(model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, `{"result":""}`))),
		WithCallbacks(cm),
	)

	_, err := e.RunTask(context.Background(), newRequest("x", stringSchema, newTestActor("Marvin")))
	assert.ErrorContains(t, err, "empty answer")
	assert.Equal(t, 0, onError, "after_task errors are returned, not reported")
}

func TestRunTask_BeforeToolVeto(t *testing.T) {
	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTool, func(_ context.Context, cc *CallbackContext) error {
		if cc.Call.Name == tool.MarkTaskSuccessfulName && cc.Orchestrator.Turn() == 1 {
			return errors.New("not yet")
		}
		return nil
	}))

	m := model.NewScriptedModel(
		model.Call(tool.MarkTaskSuccessfulName, `{"result":"early"}`),
		model.Call(tool.MarkTaskSuccessfulName, `{"result":"late"}`),
	)
	e := New(WithModel(m), WithCallbacks(cm))

	req := newRequest("x", stringSchema, newTestActor("Marvin"))
	raw, err := e.RunTask(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `"late"`, string(raw))

	fr := req.Thread.GetMessages()[1].FunctionResponses()[0]
	assert.Contains(t, fr.Error, "not yet")
}

func TestRunTask_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(WithModel(model.NewScriptedModel(model.Reply("x"))))

	_, err := e.RunTask(ctx, newRequest("x", nil, newTestActor("Marvin")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTask_ConcurrentTasksKeepTheirActor(t *testing.T) {
	e := New(
		WithModel(model.NewScriptedModel()),
		WithConfig(Config{MaxConcurrentTasks: 2, MaxTurns: 3}),
	)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			name := fmt.Sprintf("Actor%d", i)
			actor := newTestActor(name)
			actor.model = model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, fmt.Sprintf(`{"result":%q}`, name)))

			raw, err := e.RunTask(context.Background(), newRequest("x", stringSchema, actor))
			assert.NoError(t, err)
			assert.JSONEq(t, fmt.Sprintf("%q", name), string(raw))
			assert.Equal(t, []string{name}, actor.seen)
		}()
	}
	wg.Wait()

	assert.Empty(t, e.ActiveRuns())
}

func TestRunTask_NestedTaskSharesSlot(t *testing.T) {
	e := New(WithConfig(Config{MaxConcurrentTasks: 1, MaxTurns: 3}))

	inner := newTestActor("Helper")
	inner.model = model.NewScriptedModel(model.Call(tool.MarkTaskSuccessfulName, `{"result":"inner"}`))

	delegate := tool.NewFunctionTool("delegate", "Runs a subtask", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		raw, err := e.RunTask(tc.Context(), newRequest("sub", stringSchema, inner))
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	})

	outer := newTestActor("Marvin")
	outer.tools = []core.Tool{delegate}
	outer.model = model.NewScriptedModel(
		model.Call("delegate", `{}`),
		model.Call(tool.MarkTaskSuccessfulName, `{"result":"outer"}`),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := newRequest("x", stringSchema, outer)
	raw, err := e.RunTask(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `"outer"`, string(raw))

	resp := req.Thread.GetMessages()[1].FunctionResponses()[0]
	assert.Empty(t, resp.Error)
	assert.Equal(t, `"inner"`, resp.Response)
}

func TestCancel(t *testing.T) {
	started := make(chan string, 1)

	slow := tool.NewFunctionTool("wait", "Waits", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		started <- tc.RunID()
		<-tc.Context().Done()
		return nil, tc.Context().Err()
	})

	actor := newTestActor("Marvin")
	actor.tools = []core.Tool{slow}

	e := New(WithModel(model.NewScriptedModel(model.Call("wait", `{}`))))

	done := make(chan error, 1)
	go func() {
		_, err := e.RunTask(context.Background(), newRequest("x", nil, actor))
		done <- err
	}()

	runID := <-started
	assert.Equal(t, []string{runID}, e.ActiveRuns())
	assert.True(t, e.Cancel(runID))

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, e.Cancel(runID))
}
