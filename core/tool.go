package core

// Tool is a capability an actor can invoke during its turn.
//
// Parameters returns a JSON schema describing the expected arguments; it is
// exposed to the model and used for argument validation. Call receives the
// decoded arguments together with a ToolContext bound to the running task.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(toolCtx *ToolContext, args map[string]any) (any, error)
}

// EndTurn is a tool whose successful invocation ends the acting actor's
// turn. Implementations typically record the task outcome on the
// ToolContext (CompleteTask / FailTask).
type EndTurn interface {
	Tool

	// EndsTurn marks the tool as turn ending.
	EndsTurn()
}

// IsEndTurn reports whether t ends the turn when called.
func IsEndTurn(t Tool) bool {
	_, ok := t.(EndTurn)
	return ok
}
