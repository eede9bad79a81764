// Package vexora wires the orchestration layer together: a model, a thread
// store and the engine, installed as the process wide task runtime.
//
// Most applications call New once at startup:
//
//	v, err := vexora.New(vexora.WithSettings(settings))
//	if err != nil { ... }
//	defer v.Close()
//	v.Install()
//
//	answer, err := vexora.Say(ctx, "Hello!")
//	cities, err := vexora.Extract[string](ctx, "I flew from Paris to Rome")
//	ok, err := vexora.Run[bool](ctx, "Is 17 prime?")
//
// Anything left unset falls back to a default: settings from config.Default,
// the model named in the settings, the configured thread store and the
// default agent.
package vexora

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/vexora/agent"
	"github.com/hupe1980/vexora/config"
	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/engine"
	"github.com/hupe1980/vexora/fns"
	"github.com/hupe1980/vexora/logging"
	"github.com/hupe1980/vexora/model"
	anthropicmodel "github.com/hupe1980/vexora/model/anthropic"
	openaimodel "github.com/hupe1980/vexora/model/openai"
	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/thread"
)

// Options configures a Vexora instance.
type Options struct {
	// Settings defaults to config.Default().
	Settings *config.Settings

	// Model overrides the model described by Settings.Model.
	Model model.Model

	// Threads overrides the store described by Settings.Threads.
	Threads core.ThreadStore

	// DefaultActor runs tasks that name no actors. Defaults to agent.Default().
	DefaultActor core.Actor

	// Callbacks are handed to the engine.
	Callbacks *engine.CallbackManager

	// EngineOptions are applied after the settings derived ones.
	EngineOptions []func(o *engine.Options)

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// WithSettings sets the configuration.
func WithSettings(s *config.Settings) func(o *Options) {
	return func(o *Options) { o.Settings = s }
}

// WithModel overrides the configured model.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithThreadStore overrides the configured thread store.
func WithThreadStore(s core.ThreadStore) func(o *Options) {
	return func(o *Options) { o.Threads = s }
}

// WithDefaultActor sets the actor used when a task names none.
func WithDefaultActor(a core.Actor) func(o *Options) {
	return func(o *Options) { o.DefaultActor = a }
}

// WithCallbacks sets the engine callbacks.
func WithCallbacks(cm *engine.CallbackManager) func(o *Options) {
	return func(o *Options) { o.Callbacks = cm }
}

// WithEngineOptions passes options through to engine.New.
func WithEngineOptions(optFns ...func(o *engine.Options)) func(o *Options) {
	return func(o *Options) { o.EngineOptions = append(o.EngineOptions, optFns...) }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Vexora is the assembled runtime.
type Vexora struct {
	settings *config.Settings
	engine   *engine.Engine
	runtime  *task.Runtime
	closers  []io.Closer

	mu       sync.Mutex
	previous *task.Runtime
	closed   bool
}

// New assembles a runtime. It does not install it; call Install for that.
func New(optFns ...func(o *Options)) (*Vexora, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Settings == nil {
		opts.Settings = config.Default()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.DefaultActor == nil {
		opts.DefaultActor = agent.Default()
	}

	v := &Vexora{settings: opts.Settings}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = NewModel(opts.Settings.Model); err != nil {
			return nil, err
		}
	}

	store := opts.Threads
	if store == nil {
		s, closer, err := OpenThreadStore(context.Background(), opts.Settings.Threads)
		if err != nil {
			return nil, err
		}

		store = s
		if closer != nil {
			v.closers = append(v.closers, closer)
		}
	}

	engineOpts := []func(o *engine.Options){
		engine.WithModel(m),
		engine.WithDefaultActor(opts.DefaultActor),
		engine.WithLogger(logging.With(opts.Logger, "component", "engine")),
		func(o *engine.Options) {
			o.Config.MaxTurns = opts.Settings.MaxTurns
			o.Config.ToolParallelism = opts.Settings.ToolParallelism
			o.Config.HistoryLimit = opts.Settings.HistoryLimit
		},
	}

	if opts.Callbacks != nil {
		engineOpts = append(engineOpts, engine.WithCallbacks(opts.Callbacks))
	}

	engineOpts = append(engineOpts, opts.EngineOptions...)

	v.engine = engine.New(engineOpts...)
	v.runtime = &task.Runtime{
		Runner:  v.engine,
		Threads: store,
		Logger:  opts.Logger,
	}

	opts.Logger.Debug("vexora.ready",
		"model", m.Info().Name,
		"provider", m.Info().Provider,
		"threads", opts.Settings.Threads.Backend,
	)

	return v, nil
}

// Settings returns the configuration in use.
func (v *Vexora) Settings() *config.Settings { return v.settings }

// Engine returns the task runner.
func (v *Vexora) Engine() *engine.Engine { return v.engine }

// Runtime returns the task runtime.
func (v *Vexora) Runtime() *task.Runtime { return v.runtime }

// Threads returns the thread store.
func (v *Vexora) Threads() core.ThreadStore { return v.runtime.Threads }

// Install makes v the process wide runtime used by tasks, delegates and
// actors that have none of their own. Close restores the previous one.
func (v *Vexora) Install() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.previous = task.SetDefault(v.runtime)
}

// Close restores the runtime replaced by Install and releases the thread
// store.
func (v *Vexora) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true

	if task.Default() == v.runtime {
		task.SetDefault(v.previous)
	}

	var errs []error
	for _, c := range v.closers {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

// NewModel creates the model described by cfg.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = cfg.Name
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(cfg.Name)
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// OpenThreadStore opens the store described by cfg. The returned closer is
// nil for stores that hold no resources.
func OpenThreadStore(ctx context.Context, cfg config.ThreadsConfig) (core.ThreadStore, io.Closer, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return thread.NewInMemoryStore(), nil, nil
	case config.BackendFile:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create thread dir: %w", err)
		}
		return thread.NewFileStore(cfg.Dir), nil, nil
	case config.BackendSQLite:
		s, err := thread.OpenSQLiteStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown thread backend %q", cfg.Backend)
	}
}

// Say answers message on the default runtime. See fns.Say.
func Say(ctx context.Context, message string, optFns ...func(o *fns.Options)) (string, error) {
	return fns.Say(ctx, message, optFns...)
}

// Extract pulls values of type T out of data. See fns.Extract.
func Extract[T any](ctx context.Context, data any, optFns ...func(o *fns.Options)) ([]T, error) {
	return fns.Extract[T](ctx, data, optFns...)
}

// Generate produces n values of type T. See fns.Generate.
func Generate[T any](ctx context.Context, n int, optFns ...func(o *fns.Options)) ([]T, error) {
	return fns.Generate[T](ctx, n, optFns...)
}

// Run runs a task with result type T. See task.Run.
func Run[T any](ctx context.Context, instructions string, optFns ...func(o *task.Options)) (T, error) {
	return task.Run[T](ctx, instructions, optFns...)
}
