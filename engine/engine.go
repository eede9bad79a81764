package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/logging"
	"github.com/hupe1980/vexora/model"
	"github.com/hupe1980/vexora/task"
)

// ErrNoModel is returned when neither the acting actor nor the engine
// provides a model.
var ErrNoModel = errors.New("no model configured")

// Config defines tuning parameters for the Engine's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    MaxConcurrentTasks: 50,
//	    MaxTurns:           20,
//	    ToolParallelism:    8,
//	}
type Config struct {
	// MaxConcurrentTasks limits the number of tasks that execute at the
	// same time. Additional tasks wait for a free slot. Tasks started from
	// within a running task (for example by a tool) share their parent's
	// slot. 0 means unlimited.
	MaxConcurrentTasks int

	// MaxTurns bounds the number of actor turns per task. 0 means unlimited.
	MaxTurns int

	// ToolParallelism bounds the tool calls of one turn that run at once.
	// 0 runs every call of a batch concurrently.
	ToolParallelism int

	// HistoryLimit is the number of most recent thread messages sent to the
	// model. 0 sends the whole thread.
	HistoryLimit int

	// Stream requests streamed model output. Partial chunks are delivered
	// to Options.OnPartial.
	Stream bool
}

// DefaultConfig provides the default configuration values.
//
// Configuration values:
//   - MaxConcurrentTasks: 10
//   - MaxTurns: 10
//   - ToolParallelism: 4
var DefaultConfig = Config{
	MaxConcurrentTasks: 10,
	MaxTurns:           10,
	ToolParallelism:    4,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	Config Config

	// Model drives every actor that does not bring its own model.
	Model model.Model

	// DefaultActor runs tasks that name no actors.
	DefaultActor core.Actor

	// Callbacks receives lifecycle notifications. Optional.
	Callbacks *CallbackManager

	// OnPartial receives streamed model chunks when Config.Stream is set.
	OnPartial func(actor core.Actor, resp model.Response)

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithModel sets the default model.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithDefaultActor sets the actor used when a task names none.
func WithDefaultActor(a core.Actor) func(o *Options) {
	return func(o *Options) { o.DefaultActor = a }
}

// WithCallbacks sets the callback manager.
func WithCallbacks(cm *CallbackManager) func(o *Options) {
	return func(o *Options) { o.Callbacks = cm }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithMaxTurns overrides Config.MaxTurns.
func WithMaxTurns(n int) func(o *Options) {
	return func(o *Options) { o.Config.MaxTurns = n }
}

// WithToolParallelism overrides Config.ToolParallelism.
func WithToolParallelism(n int) func(o *Options) {
	return func(o *Options) { o.Config.ToolParallelism = n }
}

// WithStreaming enables streamed model output delivered to fn.
func WithStreaming(fn func(actor core.Actor, resp model.Response)) func(o *Options) {
	return func(o *Options) {
		o.Config.Stream = true
		o.OnPartial = fn
	}
}

// ModelProvider is implemented by actors that bring their own model.
type ModelProvider interface {
	Model() model.Model
}

// Engine runs tasks by letting actors take turns against a model until one
// of them records an outcome with an end-turn tool. It implements
// task.Runner and is safe for concurrent use.
type Engine struct {
	config       Config
	model        model.Model
	defaultActor core.Actor
	callbacks    *CallbackManager
	onPartial    func(core.Actor, model.Response)
	executor     FunctionExecutor
	logger       logging.Logger

	slots chan struct{} // nil when MaxConcurrentTasks is 0

	// Active run tracking
	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex
}

var _ task.Runner = (*Engine)(nil)

// New creates a new Engine.
//
// Examples:
//
//	e := engine.New(engine.WithModel(m))
//
//	e := engine.New(
//	    engine.WithModel(m),
//	    engine.WithMaxTurns(20),
//	    engine.WithLogger(logger),
//	)
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := &Engine{
		config:       opts.Config,
		model:        opts.Model,
		defaultActor: opts.DefaultActor,
		callbacks:    opts.Callbacks,
		onPartial:    opts.OnPartial,
		logger:       opts.Logger,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{
			MaxParallel:    opts.Config.ToolParallelism,
			LogStartEvents: true,
		}),
		activeRuns: make(map[string]context.CancelFunc),
	}

	if opts.Config.MaxConcurrentTasks > 0 {
		e.slots = make(chan struct{}, opts.Config.MaxConcurrentTasks)
	}

	return e
}

// Callbacks returns the engine's callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// RunTask implements task.Runner.
func (e *Engine) RunTask(ctx context.Context, req *task.Request) (json.RawMessage, error) {
	if req.Thread == nil {
		return nil, fmt.Errorf("task %s: no thread", req.ID)
	}

	if !e.nested(ctx) {
		if err := e.acquire(ctx); err != nil {
			return nil, err
		}
		defer e.release()
	}

	runID := "run_" + core.NewShortID()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()

	defer func() {
		e.runsMu.Lock()
		delete(e.activeRuns, runID)
		e.runsMu.Unlock()
	}()

	r := newRun(e, runID, req)
	runCtx = context.WithValue(runCtx, engineKey{}, e)
	runCtx = core.ContextWithLogger(runCtx, r.logger)
	runCtx = core.ContextWithThread(runCtx, req.Thread)

	start := time.Now()

	if err := e.callbacks.ExecuteCallbacks(runCtx, CallbackBeforeTask, r.callbackContext(CallbackBeforeTask, nil)); err != nil {
		return nil, err
	}

	result, err := r.execute(runCtx)
	if err != nil {
		cc := r.callbackContext(CallbackOnError, nil)
		cc.Err = err
		if cbErr := e.callbacks.ExecuteCallbacks(runCtx, CallbackOnError, cc); cbErr != nil {
			r.logger.Warn("engine.callback.error", "type", CallbackOnError, "error", cbErr.Error())
		}

		logging.TaskFinished(r.logger, r.limiter.Count(), time.Since(start), err)

		return nil, err
	}

	cc := r.callbackContext(CallbackAfterTask, nil)
	cc.Result = result
	if err := e.callbacks.ExecuteCallbacks(runCtx, CallbackAfterTask, cc); err != nil {
		return nil, err
	}

	logging.TaskFinished(r.logger, r.limiter.Count(), time.Since(start), nil)

	return result, nil
}

// Cancel stops a running task. It reports whether the run was active.
func (e *Engine) Cancel(runID string) bool {
	e.runsMu.RLock()
	cancel, ok := e.activeRuns[runID]
	e.runsMu.RUnlock()

	if ok {
		cancel()
		e.logger.Info("engine.run.cancelled", "run_id", runID)
	}

	return ok
}

// ActiveRuns returns the ids of the tasks currently executing.
func (e *Engine) ActiveRuns() []string {
	e.runsMu.RLock()
	defer e.runsMu.RUnlock()

	ids := make([]string, 0, len(e.activeRuns))
	for id := range e.activeRuns {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

type engineKey struct{}

// nested reports whether ctx belongs to a run of e.
func (e *Engine) nested(ctx context.Context) bool {
	owner, _ := ctx.Value(engineKey{}).(*Engine)
	return owner == e
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.slots == nil {
		return nil
	}

	select {
	case e.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	if e.slots != nil {
		<-e.slots
	}
}

func (e *Engine) modelFor(actor core.Actor) (model.Model, error) {
	if mp, ok := actor.(ModelProvider); ok {
		if m := mp.Model(); m != nil {
			return m, nil
		}
	}

	if e.model == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoModel, actor.FriendlyName(true))
	}

	return e.model, nil
}
