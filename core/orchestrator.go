package core

import "github.com/hupe1980/vexora/logging"

// Orchestrator is the view of a running task handed to actor hooks and
// tools.
type Orchestrator interface {
	RunID() string
	TaskID() string
	Thread() *Thread
	Turn() int
	Logger() logging.Logger
}

// TurnResult summarizes one completed actor turn.
type TurnResult struct {
	Turn      int
	Actor     string
	Response  Message
	Calls     []FunctionCall
	Responses []FunctionResponse
	EndedBy   string // name of the end-turn tool, empty if the turn did not end the task
	Usage     int    // total tokens reported by the model, 0 if unknown
}
