package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/fns"
	"github.com/hupe1980/vexora/internal/util"
	"github.com/hupe1980/vexora/model"
	"github.com/hupe1980/vexora/task"
)

// Options configures an actor.
type Options struct {
	// Instructions are private guidance rendered only into the actor's own
	// prompt.
	Instructions string

	// Description is public and visible to other actors.
	Description string

	// Prompt replaces DefaultPrompt.
	Prompt Prompt

	Tools        []core.Tool
	EndTurnTools []core.EndTurn
	Memories     []core.Memory

	// Model drives the actor; nil defers to the runner's default model.
	Model model.Model

	// Runtime runs the actor's own tasks; nil uses task.Default().
	Runtime *task.Runtime

	// OnStartTurn and OnEndTurn replace the no-op turn hooks.
	OnStartTurn func(ctx context.Context, o core.Orchestrator) error
	OnEndTurn   func(ctx context.Context, o core.Orchestrator, result core.TurnResult) error
}

// WithInstructions sets the private instructions.
func WithInstructions(s string) func(o *Options) {
	return func(o *Options) { o.Instructions = s }
}

// WithDescription sets the public description.
func WithDescription(s string) func(o *Options) {
	return func(o *Options) { o.Description = s }
}

// WithPrompt sets the prompt template.
func WithPrompt(p Prompt) func(o *Options) {
	return func(o *Options) { o.Prompt = p }
}

// WithTools adds tools.
func WithTools(tools ...core.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithEndTurnTools replaces the default end-turn tools.
func WithEndTurnTools(tools ...core.EndTurn) func(o *Options) {
	return func(o *Options) { o.EndTurnTools = append(o.EndTurnTools, tools...) }
}

// WithMemories adds memories.
func WithMemories(memories ...core.Memory) func(o *Options) {
	return func(o *Options) { o.Memories = append(o.Memories, memories...) }
}

// WithModel sets the model.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithRuntime sets the runtime used by Run and Say.
func WithRuntime(rt *task.Runtime) func(o *Options) {
	return func(o *Options) { o.Runtime = rt }
}

// WithStartTurn sets the hook called before each of the actor's turns.
func WithStartTurn(fn func(ctx context.Context, o core.Orchestrator) error) func(o *Options) {
	return func(o *Options) { o.OnStartTurn = fn }
}

// WithEndTurn sets the hook called after each of the actor's turns.
func WithEndTurn(fn func(ctx context.Context, o core.Orchestrator, result core.TurnResult) error) func(o *Options) {
	return func(o *Options) { o.OnEndTurn = fn }
}

// BaseActor implements core.Actor. Embed it to build custom actors and call
// Bind with the embedding value so prompts and tasks see the outer type.
type BaseActor struct {
	id           string
	kind         string
	name         string
	instructions string
	description  string
	prompt       Prompt
	tools        []core.Tool
	endTurnTools []core.EndTurn
	memories     []core.Memory
	runtime      *task.Runtime
	onStartTurn  func(ctx context.Context, o core.Orchestrator) error
	onEndTurn    func(ctx context.Context, o core.Orchestrator, result core.TurnResult) error

	self core.Actor
}

var _ core.Actor = (*BaseActor)(nil)

// NewActor creates a plain actor.
func NewActor(name string, optFns ...func(o *Options)) *BaseActor {
	opts := newOptions(optFns)

	a := newBase("Actor", name, opts)
	a.self = a

	return a
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

func newBase(kind, name string, opts Options) *BaseActor {
	return &BaseActor{
		id:           core.NewShortID(),
		kind:         kind,
		name:         name,
		instructions: opts.Instructions,
		description:  opts.Description,
		prompt:       opts.Prompt,
		tools:        opts.Tools,
		endTurnTools: opts.EndTurnTools,
		memories:     opts.Memories,
		runtime:      opts.Runtime,
		onStartTurn:  opts.OnStartTurn,
		onEndTurn:    opts.OnEndTurn,
	}
}

// Bind makes self the actor that prompts are rendered with and tasks are
// assigned to. Its id must be a's id.
func (a *BaseActor) Bind(self core.Actor) {
	a.self = self
}

func (a *BaseActor) actor() core.Actor {
	if a.self == nil {
		return a
	}

	return a.self
}

// ID implements core.Actor.
func (a *BaseActor) ID() string { return a.id }

// Name implements core.Actor.
func (a *BaseActor) Name() string { return a.name }

// Instructions implements core.Actor.
func (a *BaseActor) Instructions() string { return a.instructions }

// Description implements core.Actor.
func (a *BaseActor) Description() string { return a.description }

// Kind returns the display kind used by FriendlyName.
func (a *BaseActor) Kind() string { return a.kind }

// Prompt implements core.Actor.
func (a *BaseActor) Prompt() (string, error) {
	name := "prompt"
	text := DefaultPrompt

	if !a.prompt.IsZero() {
		name = a.prompt.Name()

		var err error
		if text, err = a.prompt.Template(); err != nil {
			return "", &core.TemplateError{Name: name, Err: err}
		}
	}

	out, err := util.RenderTemplate(name, text, a.actor())
	if err != nil {
		return "", &core.TemplateError{Name: name, Err: err}
	}

	return out, nil
}

// FriendlyName implements core.Actor.
func (a *BaseActor) FriendlyName(verbose bool) string {
	if !verbose {
		return a.name
	}

	return fmt.Sprintf("%s %q (%s)", a.kind, a.name, a.id)
}

// Tools implements core.Actor.
func (a *BaseActor) Tools() []core.Tool { return a.tools }

// EndTurnTools implements core.Actor.
func (a *BaseActor) EndTurnTools() []core.EndTurn { return a.endTurnTools }

// Memories implements core.Actor.
func (a *BaseActor) Memories() []core.Memory { return a.memories }

// StartTurn implements core.Actor.
func (a *BaseActor) StartTurn(ctx context.Context, o core.Orchestrator) error {
	if a.onStartTurn == nil {
		return nil
	}

	return a.onStartTurn(ctx, o)
}

// EndTurn implements core.Actor.
func (a *BaseActor) EndTurn(ctx context.Context, o core.Orchestrator, result core.TurnResult) error {
	if a.onEndTurn == nil {
		return nil
	}

	return a.onEndTurn(ctx, o, result)
}

// Equal reports whether other is the same actor.
func (a *BaseActor) Equal(other core.Actor) bool {
	return core.SameActor(a, other)
}

// String implements fmt.Stringer.
func (a *BaseActor) String() string { return a.FriendlyName(true) }

// RunAsync starts a task assigned to this actor alone. Actors passed in
// optFns are ignored.
func (a *BaseActor) RunAsync(ctx context.Context, instructions string, optFns ...func(o *task.Options)) *task.Pending[any] {
	opts := make([]func(o *task.Options), 0, len(optFns)+2)

	if a.runtime != nil {
		opts = append(opts, task.WithRuntime(a.runtime))
	}

	opts = append(opts, optFns...)
	opts = append(opts, func(o *task.Options) { o.Actors = []core.Actor{a.actor()} })

	return task.RunAsync[any](ctx, instructions, opts...)
}

// Run runs a task assigned to this actor and waits for its result.
func (a *BaseActor) Run(ctx context.Context, instructions string, optFns ...func(o *task.Options)) (any, error) {
	return a.RunAsync(ctx, instructions, optFns...).Wait(ctx)
}

// SayAsync sends message to this actor.
func (a *BaseActor) SayAsync(ctx context.Context, message string, optFns ...func(o *fns.Options)) *task.Pending[string] {
	opts := make([]func(o *fns.Options), 0, len(optFns)+2)

	if a.runtime != nil {
		opts = append(opts, fns.WithRuntime(a.runtime))
	}

	opts = append(opts, optFns...)
	opts = append(opts, fns.WithActor(a.actor()))

	return fns.SayAsync(ctx, message, opts...)
}

// Say sends message to this actor and waits for the reply.
func (a *BaseActor) Say(ctx context.Context, message string, optFns ...func(o *fns.Options)) (string, error) {
	return a.SayAsync(ctx, message, optFns...).Wait(ctx)
}
