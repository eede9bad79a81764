package fns_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vexora/agent"
	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/fns"
	"github.com/hupe1980/vexora/internal/testutil"
	"github.com/hupe1980/vexora/task"
)

func TestSay_AppendsUserMessage(t *testing.T) {
	stub := testutil.NewStubRunner("Hi there")

	reply, err := fns.Say(context.Background(), "Hello", fns.WithRuntime(stub.Runtime()))
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	inv, ok := stub.Last()
	require.True(t, ok)
	assert.Equal(t, fns.SayInstructions, inv.Request.Instructions)
	assert.Equal(t, map[string]any{"type": "string"}, inv.Request.ResultSchema)
	assert.Equal(t, 1, inv.ThreadLen)

	last, ok := inv.Request.Thread.LastMessage()
	require.True(t, ok)
	assert.Equal(t, core.RoleUser, last.Role())
	assert.Equal(t, "Hello", last.Text())
}

func TestSay_InstructionsBecomeContext(t *testing.T) {
	stub := testutil.NewStubRunner("ok")

	_, err := fns.Say(context.Background(), "Hello",
		fns.WithRuntime(stub.Runtime()),
		fns.WithInstructions("Answer in French"),
		fns.WithContext(map[string]any{"tone": "formal"}),
	)
	require.NoError(t, err)

	inv, _ := stub.Last()
	assert.Equal(t, "Answer in French", inv.Request.Context[fns.LabelInstructions])
	assert.Equal(t, "formal", inv.Request.Context["tone"])
}

func TestSay_ReusesThread(t *testing.T) {
	stub := testutil.NewStubRunner("ok")
	rt := stub.Runtime()
	ctx := context.Background()

	_, err := fns.Say(ctx, "first", fns.WithRuntime(rt), fns.WithThreadID("thr_support"))
	require.NoError(t, err)

	_, err = fns.Say(ctx, "second", fns.WithRuntime(rt), fns.WithThreadID("thr_support"))
	require.NoError(t, err)

	invs := stub.Invocations()
	require.Len(t, invs, 2)
	assert.Equal(t, "thr_support", invs[1].Request.Thread.ID)
	assert.Equal(t, 2, invs[1].ThreadLen)

	th, err := rt.Threads.Get(ctx, "thr_support")
	require.NoError(t, err)
	assert.Equal(t, 2, th.Len())
}

func TestSay_ReusesThreadWithoutStore(t *testing.T) {
	stub := testutil.NewStubRunner("ok")
	rt := &task.Runtime{Runner: stub}
	ctx := context.Background()

	id := core.NewThreadID()

	_, err := fns.Say(ctx, "first", fns.WithRuntime(rt), fns.WithThreadID(id))
	require.NoError(t, err)

	_, err = fns.Say(ctx, "second", fns.WithRuntime(rt), fns.WithThreadID(id))
	require.NoError(t, err)

	invs := stub.Invocations()
	require.Len(t, invs, 2)
	assert.Equal(t, id, invs[1].Request.Thread.ID)
	assert.Equal(t, 2, invs[1].ThreadLen)
}

func TestSay_ExistingThread(t *testing.T) {
	stub := testutil.NewStubRunner("ok")
	th := testutil.NewThreadBuilder("thr_x").User("earlier").Build()

	_, err := fns.Say(context.Background(), "now", fns.WithRuntime(stub.Runtime()), fns.WithThread(th))
	require.NoError(t, err)

	assert.Equal(t, 2, th.Len())
}

func TestSay_SyncMatchesAsync(t *testing.T) {
	stub := testutil.NewStubRunner("same")
	rt := stub.Runtime()
	ctx := context.Background()

	syncOut, err := fns.Say(ctx, "Hello", fns.WithRuntime(rt))
	require.NoError(t, err)

	asyncOut, err := fns.SayAsync(ctx, "Hello", fns.WithRuntime(rt)).Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, syncOut, asyncOut)
}

func TestSay_NoRuntime(t *testing.T) {
	prev := task.SetDefault(nil)
	t.Cleanup(func() { task.SetDefault(prev) })

	_, err := fns.Say(context.Background(), "Hello")
	require.ErrorIs(t, err, task.ErrNoRuntime)
}

func TestSay_ActorsStayIsolated(t *testing.T) {
	stub := testutil.NewStubRunnerFunc(func(ctx context.Context, _ *task.Request) (json.RawMessage, error) {
		return json.Marshal("I am " + core.CurrentActor(ctx).Name())
	}).WithDelay(20 * time.Millisecond)
	rt := stub.Runtime()

	alice := agent.New("Alice")
	bob := agent.New("Bob")

	replies := make([]string, 2)

	g, ctx := errgroup.WithContext(context.Background())
	for i, a := range []core.Actor{alice, bob} {
		g.Go(func() error {
			var err error
			replies[i], err = fns.Say(ctx, "Who are you?", fns.WithRuntime(rt), fns.WithActor(a))
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, []string{"I am Alice", "I am Bob"}, replies)
}

type city struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

func TestExtract_Typed(t *testing.T) {
	stub := testutil.NewStubRunner([]city{{Name: "Paris", Country: "France"}, {Name: "Rome", Country: "Italy"}})

	cities, err := fns.Extract[city](context.Background(), "I flew from Paris to Rome", fns.WithRuntime(stub.Runtime()))
	require.NoError(t, err)
	assert.Equal(t, []city{{"Paris", "France"}, {"Rome", "Italy"}}, cities)

	inv, _ := stub.Last()
	assert.Equal(t, fns.ExtractInstructions, inv.Request.Instructions)
	assert.Equal(t, "I flew from Paris to Rome", inv.Request.Context[fns.LabelData])
	assert.Equal(t, "array", inv.Request.ResultSchema["type"])
	assert.Equal(t, "object", inv.Request.ResultSchema["items"].(map[string]any)["type"])
}

func TestExtract_UntypedUsesStrings(t *testing.T) {
	stub := testutil.NewStubRunner([]string{"Paris", "Rome"})

	out, err := fns.Extract[any](context.Background(), "I flew from Paris to Rome",
		fns.WithRuntime(stub.Runtime()),
		fns.WithInstructions("city names"),
	)
	require.NoError(t, err)
	assert.Equal(t, []any{"Paris", "Rome"}, out)

	inv, _ := stub.Last()
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, inv.Request.ResultSchema)
	assert.Equal(t, "city names", inv.Request.Context[fns.LabelInstructions])
}

func TestExtract_ResultMismatch(t *testing.T) {
	stub := testutil.NewStubRunner([]map[string]any{{"unknown": 1}})

	_, err := fns.Extract[city](context.Background(), "data", fns.WithRuntime(stub.Runtime()))

	var re *task.ResultError
	require.ErrorAs(t, err, &re)
}

func TestGenerate_UntypedRequiresInstructions(t *testing.T) {
	stub := testutil.NewStubRunner([]string{"x"})

	_, err := fns.Generate[any](context.Background(), 3, fns.WithRuntime(stub.Runtime()))
	require.ErrorIs(t, err, fns.ErrInstructionsRequired)
	assert.Equal(t, "Instructions are required", err.Error())
	assert.Equal(t, 0, stub.Calls())

	p := fns.GenerateAsync[any](context.Background(), 3, fns.WithRuntime(stub.Runtime()))
	o := p.Outcome(context.Background())
	assert.True(t, o.Failed())
	assert.ErrorIs(t, o.Err, fns.ErrInstructionsRequired)
	assert.Equal(t, 0, stub.Calls())
}

func TestGenerate_UntypedFailsBeforeRuntimeLookup(t *testing.T) {
	prev := task.SetDefault(nil)
	t.Cleanup(func() { task.SetDefault(prev) })

	_, err := fns.Generate[any](context.Background(), 1)
	require.ErrorIs(t, err, fns.ErrInstructionsRequired)
}

func TestGenerate_UntypedWithInstructions(t *testing.T) {
	stub := testutil.NewStubRunner([]string{"red", "green"})

	out, err := fns.Generate[any](context.Background(), 2,
		fns.WithRuntime(stub.Runtime()),
		fns.WithInstructions("colors"),
	)
	require.NoError(t, err)
	assert.Equal(t, []any{"red", "green"}, out)

	inv, _ := stub.Last()
	assert.Equal(t, 2, inv.Request.Context[fns.LabelCount])
	assert.Equal(t, "colors", inv.Request.Context[fns.LabelInstructions])
	assert.Equal(t, "string", inv.Request.ResultSchema["items"].(map[string]any)["type"])
}

func TestGenerate_TypedNeedsNoInstructions(t *testing.T) {
	stub := testutil.NewStubRunner([]int{4, 8, 15})

	out, err := fns.Generate[int](context.Background(), 3, fns.WithRuntime(stub.Runtime()))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8, 15}, out)
}

func TestGenerate_CountDefaultsToOne(t *testing.T) {
	stub := testutil.NewStubRunner([]int{7})

	_, err := fns.Generate[int](context.Background(), 0, fns.WithRuntime(stub.Runtime()))
	require.NoError(t, err)

	inv, _ := stub.Last()
	assert.Equal(t, 1, inv.Request.Context[fns.LabelCount])
}

func TestGenerateSchema(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{"name": map[string]any{"type": "string"}}}
	stub := testutil.NewStubRunner(schema)

	out, err := fns.GenerateSchema(context.Background(), "a person with a name", fns.WithRuntime(stub.Runtime()))
	require.NoError(t, err)
	assert.Equal(t, "object", out["type"])

	inv, _ := stub.Last()
	assert.Equal(t, "a person with a name", inv.Request.Context[fns.LabelInstructions])

	_, err = fns.GenerateSchema(context.Background(), "", fns.WithRuntime(stub.Runtime()))
	require.ErrorIs(t, err, fns.ErrInstructionsRequired)
	assert.Equal(t, 1, stub.Calls())
}
