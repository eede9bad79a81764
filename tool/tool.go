// Package tool implements the function / tool calling subsystem that lets actors
// invoke structured capabilities (APIs, computations, side‑effects) with schema
// validated arguments and consistent error handling. It also provides the
// end-turn tools an actor uses to report the outcome of a task.
package tool

import (
	"fmt"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/internal/util"
)

// Tool is the capability interface actors expose to the model.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names)
//   - Define proper JSON schema for parameters
//   - Be safe for concurrent use; calls of one turn may run in parallel
type Tool = core.Tool

// EndTurn is a tool that ends the actor's turn when called.
type EndTurn = core.EndTurn

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeOutcome    = "OUTCOME_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
