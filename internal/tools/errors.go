package tools

import (
	"encoding/json"
	"fmt"
)

// ToolErrorType classifies tool errors for retry decisions
type ToolErrorType int

const (
	// ToolErrorRuntime - tool executed but failed (file not found, command error, etc.)
	// The error goes to history so the LLM can see and handle it.
	ToolErrorRuntime ToolErrorType = iota

	// ToolErrorSemantic - the LLM misused the tool (bad arguments, invalid state).
	// The runner may append corrective guidance instead of the raw failure.
	ToolErrorSemantic
)

// ToolError is an error type that classifies errors as runtime or semantic
type ToolError struct {
	Type    ToolErrorType
	Message string
	Details map[string]any // Optional structured data for LLM
}

func (e *ToolError) Error() string {
	return e.Message
}

// ToJSON implements JSONError interface for structured output
func (e *ToolError) ToJSON() map[string]any {
	result := map[string]any{
		"success": false,
		"error":   e.Message,
	}
	for k, v := range e.Details {
		result[k] = v
	}
	return result
}

// RuntimeError creates a runtime error
// Use for: file system errors, command failures, external failures
func RuntimeError(msg string) *ToolError {
	return &ToolError{Type: ToolErrorRuntime, Message: msg}
}

// RuntimeErrorf creates a formatted runtime error
func RuntimeErrorf(format string, args ...any) *ToolError {
	return &ToolError{Type: ToolErrorRuntime, Message: fmt.Sprintf(format, args...)}
}

// RuntimeErrorWithDetails creates a runtime error with structured details
func RuntimeErrorWithDetails(msg string, details map[string]any) *ToolError {
	return &ToolError{Type: ToolErrorRuntime, Message: msg, Details: details}
}

// SemanticError creates a semantic error
// Use for: LLM misuse, malformed arguments, invalid state, unknown tools
func SemanticError(msg string) *ToolError {
	return &ToolError{Type: ToolErrorSemantic, Message: msg}
}

// SemanticErrorf creates a formatted semantic error
func SemanticErrorf(format string, args ...any) *ToolError {
	return &ToolError{Type: ToolErrorSemantic, Message: fmt.Sprintf(format, args...)}
}

// SemanticErrorWithDetails creates a semantic error with structured details
func SemanticErrorWithDetails(msg string, details map[string]any) *ToolError {
	return &ToolError{Type: ToolErrorSemantic, Message: msg, Details: details}
}

// IsSemantic reports whether err is a semantic tool error
func IsSemantic(err error) bool {
	if te, ok := err.(*ToolError); ok {
		return te.Type == ToolErrorSemantic
	}
	return false
}

// WrapAsRuntime wraps any error as a runtime error
func WrapAsRuntime(err error) *ToolError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*ToolError); ok {
		return te // Already a ToolError, preserve its type
	}
	return RuntimeError(err.Error())
}

// JSONError is an interface for errors that can provide structured JSON output
type JSONError interface {
	error
	ToJSON() map[string]any
}

// FormatError checks if an error implements JSONError and returns JSON, otherwise returns plain text
func FormatError(err error) string {
	if jsonErr, ok := err.(JSONError); ok {
		jsonBytes, marshalErr := json.MarshalIndent(jsonErr.ToJSON(), "", "  ")
		if marshalErr == nil {
			return string(jsonBytes)
		}
	}
	return fmt.Sprintf("Error: %v", err)
}
