package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/thread"
)

// Invocation is one call recorded by a StubRunner.
type Invocation struct {
	Request *task.Request

	// CurrentActor is the name of the actor current in the runner's context
	// at invocation time, "" if none.
	CurrentActor string

	// ThreadLen is the number of messages in the thread at invocation time.
	ThreadLen int
}

// StubRunner is a task.Runner returning canned results. It records every
// invocation. Safe for concurrent use.
type StubRunner struct {
	mu          sync.Mutex
	respond     func(ctx context.Context, req *task.Request) (json.RawMessage, error)
	delay       time.Duration
	invocations []Invocation
}

// NewStubRunner returns a runner that answers every task with result
// encoded as JSON.
func NewStubRunner(result any) *StubRunner {
	return &StubRunner{respond: func(context.Context, *task.Request) (json.RawMessage, error) {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("stub runner: %w", err)
		}
		return b, nil
	}}
}

// NewStubRunnerFunc returns a runner that delegates to fn.
func NewStubRunnerFunc(fn func(ctx context.Context, req *task.Request) (json.RawMessage, error)) *StubRunner {
	return &StubRunner{respond: fn}
}

// WithDelay makes every invocation wait d (or until ctx is done) before
// answering (chainable).
func (s *StubRunner) WithDelay(d time.Duration) *StubRunner {
	s.delay = d
	return s
}

// RunTask implements task.Runner.
func (s *StubRunner) RunTask(ctx context.Context, req *task.Request) (json.RawMessage, error) {
	inv := Invocation{Request: req}
	if a := core.CurrentActor(ctx); a != nil {
		inv.CurrentActor = a.Name()
	}
	if req.Thread != nil {
		inv.ThreadLen = req.Thread.Len()
	}

	s.mu.Lock()
	s.invocations = append(s.invocations, inv)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// the actor must still be current after waiting
	if a := core.CurrentActor(ctx); a != nil && a.Name() != inv.CurrentActor {
		return nil, fmt.Errorf("stub runner: current actor changed from %q to %q", inv.CurrentActor, a.Name())
	}

	return s.respond(ctx, req)
}

// Calls returns the number of invocations.
func (s *StubRunner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.invocations)
}

// Invocations returns a copy of the recorded invocations.
func (s *StubRunner) Invocations() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Invocation, len(s.invocations))
	copy(out, s.invocations)

	return out
}

// Last returns the most recent invocation.
func (s *StubRunner) Last() (Invocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.invocations) == 0 {
		return Invocation{}, false
	}

	return s.invocations[len(s.invocations)-1], true
}

// Runtime wraps the runner in a runtime backed by an in-memory thread store.
func (s *StubRunner) Runtime() *task.Runtime {
	return &task.Runtime{Runner: s, Threads: thread.NewInMemoryStore()}
}
