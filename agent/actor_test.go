package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vexora/agent"
	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/internal/testutil"
	"github.com/hupe1980/vexora/task"
)

func TestNew_Identity(t *testing.T) {
	a := agent.New("Alice", agent.WithInstructions("Be terse."), agent.WithDescription("Answers questions"))

	assert.Len(t, a.ID(), 8)
	assert.Equal(t, "Alice", a.Name())
	assert.Equal(t, "Be terse.", a.Instructions())
	assert.Equal(t, "Answers questions", a.Description())
	assert.Nil(t, a.Model())

	b := agent.New("Alice")
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestFriendlyName(t *testing.T) {
	a := agent.New("Alice")

	assert.Equal(t, "Alice", a.FriendlyName(false))
	assert.Equal(t, fmt.Sprintf(`Agent "Alice" (%s)`, a.ID()), a.FriendlyName(true))
	assert.Equal(t, a.FriendlyName(true), a.String())

	p := agent.NewActor("Bob")
	assert.Equal(t, fmt.Sprintf(`Actor "Bob" (%s)`, p.ID()), p.FriendlyName(true))
}

func TestEqual_ByID(t *testing.T) {
	a := agent.New("Alice", agent.WithInstructions("one"))
	b := agent.New("Alice", agent.WithInstructions("one"))

	clone := *a

	assert.True(t, a.Equal(&clone))
	assert.True(t, core.SameActor(a, &clone))
	assert.False(t, a.Equal(b))

	set := core.NewActorSet(a, &clone, b)
	assert.Equal(t, 2, set.Len())
}

func TestPrompt_Default(t *testing.T) {
	a := agent.New("Alice", agent.WithInstructions("Be terse."))

	p, err := a.Prompt()
	require.NoError(t, err)

	assert.Contains(t, p, `named "Alice"`)
	assert.Contains(t, p, a.ID())
	assert.Contains(t, p, "Be terse.")
	assert.NotContains(t, p, "description")
}

func TestPrompt_CustomTemplate(t *testing.T) {
	a := agent.New("Alice",
		agent.WithDescription("Researcher"),
		agent.WithPrompt(agent.PromptText("{{ upper .Name }} / {{ .Description }}")),
	)

	p, err := a.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "ALICE / Researcher", p)
}

func TestPrompt_TemplateError(t *testing.T) {
	a := agent.New("Alice", agent.WithPrompt(agent.PromptText("{{ .Missing }}")))

	_, err := a.Prompt()
	require.Error(t, err)

	var te *core.TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "inline", te.Name)
}

func TestPrompt_SeesEmbeddingActor(t *testing.T) {
	r := newReviewer("Rita")

	p, err := r.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "Rita reviews strictly", p)
}

// reviewer embeds an Agent and extends the template data.
type reviewer struct {
	*agent.Agent
}

func (r *reviewer) Strictness() string { return "strictly" }

func newReviewer(name string) *reviewer {
	r := &reviewer{Agent: agent.New(name, agent.WithPrompt(agent.PromptText("{{ .Name }} reviews {{ .Strictness }}")))}
	r.Bind(r)

	return r
}

func TestHooks(t *testing.T) {
	var started, ended int

	a := agent.New("Alice",
		agent.WithStartTurn(func(context.Context, core.Orchestrator) error { started++; return nil }),
		agent.WithEndTurn(func(context.Context, core.Orchestrator, core.TurnResult) error { ended++; return nil }),
	)

	require.NoError(t, a.StartTurn(context.Background(), nil))
	require.NoError(t, a.EndTurn(context.Background(), nil, core.TurnResult{}))
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, ended)

	plain := agent.New("Bob")
	assert.NoError(t, plain.StartTurn(context.Background(), nil))
	assert.NoError(t, plain.EndTurn(context.Background(), nil, core.TurnResult{}))
}

func TestRun_AssignsOnlySelf(t *testing.T) {
	stub := testutil.NewStubRunner("done")
	a := agent.New("Alice", agent.WithRuntime(stub.Runtime()))
	other := agent.New("Bob")

	out, err := a.Run(context.Background(), "Write a haiku", task.WithActors(other))
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	inv, ok := stub.Last()
	require.True(t, ok)
	require.Len(t, inv.Request.Actors, 1)
	assert.True(t, a.Equal(inv.Request.Actors[0]))
	assert.Equal(t, "Write a haiku", inv.Request.Instructions)
	assert.Nil(t, inv.Request.ResultSchema)
	assert.Equal(t, "Alice", inv.CurrentActor)
}

func TestRun_MatchesRunAsync(t *testing.T) {
	stub := testutil.NewStubRunner(map[string]any{"n": 3})
	a := agent.New("Alice", agent.WithRuntime(stub.Runtime()))

	ctx := context.Background()

	syncOut, err := a.Run(ctx, "count")
	require.NoError(t, err)

	asyncOut, err := a.RunAsync(ctx, "count").Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, syncOut, asyncOut)
	assert.Equal(t, 2, stub.Calls())
}

func TestRun_RaiseOnFailure(t *testing.T) {
	stub := testutil.NewStubRunnerFunc(func(context.Context, *task.Request) (json.RawMessage, error) {
		return nil, &core.TaskFailedError{Reason: "no idea"}
	})
	a := agent.New("Alice", agent.WithRuntime(stub.Runtime()))

	ctx := context.Background()

	_, err := a.Run(ctx, "guess")
	var tf *core.TaskFailedError
	require.ErrorAs(t, err, &tf)

	out, err := a.Run(ctx, "guess", task.WithRaiseOnFailure(false))
	require.NoError(t, err)
	assert.Nil(t, out)

	o := a.RunAsync(ctx, "guess", task.WithRaiseOnFailure(false)).Outcome(ctx)
	assert.True(t, o.Failed())
	assert.True(t, errors.As(o.Err, &tf))
}

func TestSay(t *testing.T) {
	stub := testutil.NewStubRunner("Paris")
	a := agent.New("Alice", agent.WithRuntime(stub.Runtime()))

	reply, err := a.Say(context.Background(), "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", reply)

	inv, ok := stub.Last()
	require.True(t, ok)
	assert.Equal(t, "Alice", inv.CurrentActor)
	assert.Equal(t, 1, inv.ThreadLen)

	last, ok := inv.Request.Thread.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Capital of France?", last.Text())
}

func TestConcurrentActorsKeepTheirContext(t *testing.T) {
	stub := testutil.NewStubRunnerFunc(func(ctx context.Context, _ *task.Request) (json.RawMessage, error) {
		return json.Marshal(core.CurrentActor(ctx).Name())
	}).WithDelay(20 * time.Millisecond)
	rt := stub.Runtime()

	alice := agent.New("Alice", agent.WithRuntime(rt))
	bob := agent.New("Bob", agent.WithRuntime(rt))

	var aliceOut, bobOut string

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		aliceOut, err = alice.Say(ctx, "hi")
		return err
	})
	g.Go(func() error {
		var err error
		bobOut, err = bob.Say(ctx, "hi")
		return err
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, "Alice", aliceOut)
	assert.Equal(t, "Bob", bobOut)
	assert.Equal(t, 2, stub.Calls())
}

func TestDefault(t *testing.T) {
	d := agent.Default()

	assert.Equal(t, agent.DefaultName, d.Name())
	assert.True(t, d.Equal(agent.Default()))
	assert.True(t, strings.HasPrefix(d.FriendlyName(true), `Agent "Marvin"`))
}
