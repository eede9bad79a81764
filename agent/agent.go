package agent

import (
	"sync"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/model"
)

// Agent is an actor driven by a language model.
type Agent struct {
	BaseActor

	model model.Model
}

var _ core.Actor = (*Agent)(nil)

// New creates an agent.
//
// Example:
//
//	researcher := agent.New("Researcher",
//	    agent.WithDescription("Finds sources"),
//	    agent.WithInstructions("Cite every claim."),
//	    agent.WithTools(search),
//	    agent.WithModel(m),
//	)
func New(name string, optFns ...func(o *Options)) *Agent {
	opts := newOptions(optFns)

	a := &Agent{
		BaseActor: *newBase("Agent", name, opts),
		model:     opts.Model,
	}
	a.self = a

	return a
}

// Model returns the agent's model, or nil when the runner's default applies.
func (a *Agent) Model() model.Model { return a.model }

// DefaultName is the name of the default agent.
const DefaultName = "Marvin"

// DefaultDescription describes the default agent.
const DefaultDescription = "A helpful AI assistant that completes tasks carefully and reports results precisely."

var (
	defaultOnce  sync.Once
	defaultAgent *Agent
)

// Default returns the process wide default agent.
func Default() *Agent {
	defaultOnce.Do(func() {
		defaultAgent = New(DefaultName, WithDescription(DefaultDescription))
	})

	return defaultAgent
}
