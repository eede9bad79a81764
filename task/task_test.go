package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/thread"
)

type location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

func staticRuntime(result string, calls *int32, seen **Request) *Runtime {
	return &Runtime{
		Runner: RunnerFunc(func(ctx context.Context, req *Request) (json.RawMessage, error) {
			if calls != nil {
				atomic.AddInt32(calls, 1)
			}
			if seen != nil {
				*seen = req
			}
			return json.RawMessage(result), nil
		}),
		Threads: thread.NewInMemoryStore(),
	}
}

func TestRun_DecodesTypedResult(t *testing.T) {
	var req *Request
	rt := staticRuntime(`{"city":"Paris","country":"France"}`, nil, &req)

	loc, err := Run[location](context.Background(), "Where is the Eiffel tower?",
		WithRuntime(rt),
		WithContext(map[string]any{"hint": "Europe"}),
	)
	require.NoError(t, err)
	assert.Equal(t, location{City: "Paris", Country: "France"}, loc)

	require.NotNil(t, req)
	assert.Equal(t, "Where is the Eiffel tower?", req.Instructions)
	assert.Equal(t, "Europe", req.Context["hint"])
	assert.Equal(t, "object", req.ResultSchema["type"])
	require.NotNil(t, req.Thread)
}

func TestRun_StrictDecoding(t *testing.T) {
	rt := staticRuntime(`{"city":"Paris","country":"France","population":2}`, nil, nil)

	_, err := Run[location](context.Background(), "x", WithRuntime(rt))

	var resErr *ResultError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "task.location", resErr.Type)
}

func TestRun_UntypedResult(t *testing.T) {
	var req *Request
	rt := staticRuntime(`[1,"two"]`, nil, &req)

	v, err := Run[any](context.Background(), "x", WithRuntime(rt))
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, "two"}, v)
	assert.Nil(t, req.ResultSchema)
}

func TestRunAndRunAsyncAgree(t *testing.T) {
	var calls int32
	rt := staticRuntime(`"hello"`, &calls, nil)
	ctx := context.Background()

	syncVal, syncErr := Run[string](ctx, "greet", WithRuntime(rt))
	asyncVal, asyncErr := RunAsync[string](ctx, "greet", WithRuntime(rt)).Wait(ctx)

	assert.Equal(t, syncVal, asyncVal)
	assert.Equal(t, syncErr, asyncErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRun_NoRuntime(t *testing.T) {
	prev := SetDefault(nil)
	defer SetDefault(prev)

	_, err := Run[string](context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoRuntime)
}

func TestRun_DefaultRuntime(t *testing.T) {
	prev := SetDefault(staticRuntime(`42`, nil, nil))
	defer SetDefault(prev)

	n, err := Run[int](context.Background(), "answer")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestRaiseOnFailure(t *testing.T) {
	failing := &Runtime{Runner: RunnerFunc(func(context.Context, *Request) (json.RawMessage, error) {
		return nil, &core.TaskFailedError{Reason: "no data"}
	})}
	ctx := context.Background()

	_, err := Run[string](ctx, "x", WithRuntime(failing))
	var failed *core.TaskFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "no data", failed.Reason)

	v, err := Run[string](ctx, "x", WithRuntime(failing), WithRaiseOnFailure(false))
	require.NoError(t, err)
	assert.Empty(t, v)

	out := RunAsync[string](ctx, "x", WithRuntime(failing), WithRaiseOnFailure(false)).Outcome(ctx)
	assert.True(t, out.Failed())
	assert.ErrorAs(t, out.Err, &failed)
}

func TestRaiseOnFailure_OnlyCoversExecution(t *testing.T) {
	ctx := context.Background()

	t.Run("NoRuntime", func(t *testing.T) {
		prev := SetDefault(nil)
		defer SetDefault(prev)

		_, err := Run[int](ctx, "x", WithRaiseOnFailure(false))
		assert.ErrorIs(t, err, ErrNoRuntime)
	})

	t.Run("ResultMismatch", func(t *testing.T) {
		rt := staticRuntime(`"not an int"`, nil, nil)

		v, err := Run[int](ctx, "x", WithRuntime(rt), WithRaiseOnFailure(false))
		var resErr *ResultError
		require.ErrorAs(t, err, &resErr)
		assert.Zero(t, v)
	})

	t.Run("RunnerErrorIsSuppressed", func(t *testing.T) {
		boom := errors.New("provider unavailable")
		rt := &Runtime{Runner: RunnerFunc(func(context.Context, *Request) (json.RawMessage, error) {
			return nil, boom
		})}

		_, err := Run[int](ctx, "x", WithRuntime(rt), WithRaiseOnFailure(false))
		require.NoError(t, err)

		_, err = Run[int](ctx, "x", WithRuntime(rt))
		assert.Same(t, boom, err)

		out := RunAsync[int](ctx, "x", WithRuntime(rt), WithRaiseOnFailure(false)).Outcome(ctx)
		assert.Same(t, boom, out.Err)
	})
}

func TestRun_ReusesNamedThread(t *testing.T) {
	store := thread.NewInMemoryStore()
	var seen []*core.Thread

	rt := &Runtime{
		Threads: store,
		Runner: RunnerFunc(func(ctx context.Context, req *Request) (json.RawMessage, error) {
			seen = append(seen, req.Thread)
			if err := req.Thread.AddUserMessage(ctx, req.Instructions); err != nil {
				return nil, err
			}
			return json.RawMessage(`"ok"`), nil
		}),
	}

	ctx := context.Background()
	_, err := Run[string](ctx, "first", WithRuntime(rt), WithThread(thread.ByID("thr_shared")))
	require.NoError(t, err)
	_, err = Run[string](ctx, "second", WithRuntime(rt), WithThread(thread.ByID("thr_shared")))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "thr_shared", seen[1].ID)

	th, err := store.Get(ctx, "thr_shared")
	require.NoError(t, err)
	assert.Equal(t, 2, th.Len())
}

func TestPending_CancelledWait(t *testing.T) {
	release := make(chan struct{})
	rt := &Runtime{Runner: RunnerFunc(func(ctx context.Context, _ *Request) (json.RawMessage, error) {
		select {
		case <-release:
			return json.RawMessage(`"late"`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})}

	ctx, cancel := context.WithCancel(context.Background())
	p := RunAsync[string](ctx, "slow", WithRuntime(rt), WithRaiseOnFailure(false))

	cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled, "cancellation is never suppressed")

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after cancellation")
	}
	close(release)
}

func TestGo_RecoversPanics(t *testing.T) {
	p := Go(context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})

	_, err := p.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDecode(t *testing.T) {
	_, err := Decode[int](json.RawMessage(`1 2`))
	assert.Error(t, err)

	_, err = Decode[int](json.RawMessage(`"x"`))
	assert.True(t, errors.As(err, new(*ResultError)))

	s, err := Decode[[]string](json.RawMessage(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s)
}

func TestSchemaOf(t *testing.T) {
	assert.Nil(t, SchemaOf[any]())
	assert.Equal(t, map[string]any{"type": "string"}, SchemaOf[string]())
	assert.Equal(t, "array", SchemaOf[[]int]()["type"])
}
