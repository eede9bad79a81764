package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/logging"
)

// CallOutcome is the result of one tool call.
type CallOutcome struct {
	Call     core.FunctionCall
	Result   any
	Err      error
	Actions  core.TurnActions
	Duration time.Duration
}

// CallFunc executes a single tool call.
type CallFunc func(ctx context.Context, fc core.FunctionCall) CallOutcome

// FunctionExecutor executes a batch of tool calls, possibly in parallel.
// Implementations must:
//   - return exactly one outcome per call, in call order
//   - never panic (recover and report the panic as the call's error)
//   - report calls skipped because ctx was cancelled with ctx.Err()
type FunctionExecutor interface {
	Execute(ctx context.Context, actor core.Actor, calls []core.FunctionCall, call CallFunc) []CallOutcome
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	ctx context.Context,
	actor core.Actor,
	calls []core.FunctionCall,
	call CallFunc,
) []CallOutcome {
	n := len(calls)
	if n == 0 {
		return nil
	}

	log := core.LoggerFromContext(ctx)
	outcomes := make([]CallOutcome, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		outcomes[0] = e.executeSingle(ctx, actor, calls[0], call)
		return outcomes
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	var g errgroup.Group
	g.SetLimit(maxPar)

	for i := range calls {
		g.Go(func() error {
			outcomes[i] = e.executeSingle(ctx, actor, calls[i], call)
			return nil
		})
	}

	_ = g.Wait()

	log.Debug(
		"actor.functions.batch.complete",
		"actor", actor.Name(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return outcomes
}

func (e *parallelFunctionExecutor) executeSingle(
	ctx context.Context,
	actor core.Actor,
	fc core.FunctionCall,
	call CallFunc,
) (out CallOutcome) {
	log := core.LoggerFromContext(ctx)

	if err := ctx.Err(); err != nil {
		return CallOutcome{Call: fc, Err: err}
	}

	if e.cfg.LogStartEvents {
		log.Info("actor.function.start", "actor", actor.Name(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("actor.function.panic", "actor", actor.Name(), "function", fc.Name, "recover", r)
			out = CallOutcome{Call: fc, Err: panicError(r)}
		}

		out.Duration = time.Since(start)

		logging.ToolCall(log, actor.Name(), fc.Name, out.Duration, out.Err)
	}()

	return call(ctx, fc)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup & execution.
func executeTool(tools map[string]core.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := tools[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	var argMap map[string]any
	if args == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	if argMap == nil {
		argMap = map[string]any{}
	}

	return impl.Call(toolCtx, argMap)
}
