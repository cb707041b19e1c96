package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Tool defines the interface for all tools.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Declaration returns the function declaration for this tool.
	Declaration() *genai.FunctionDeclaration

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)

	// Validate validates the arguments before execution.
	Validate(args map[string]any) error
}

// TerminalTool marks a tool whose successful call ends the turn loop.
// The dispatcher stops generating once a terminal tool has fired; its
// captured value is read from the tool's result slot afterwards.
type TerminalTool interface {
	Tool
	Terminal() bool
}

// Status classifies a tool outcome.
type Status string

const (
	// StatusOK means the tool succeeded.
	StatusOK Status = "ok"
	// StatusError means the tool failed technically; the payload carries
	// enough context for the model to self-correct.
	StatusError Status = "error"
	// StatusCanceled means the user explicitly refused the mutation.
	// Distinct from StatusError so the model does not retry the same change.
	StatusCanceled Status = "canceled"
)

// ToolResult represents the result of a tool execution. Tools report
// failures in-band through the result payload rather than returning errors,
// so the model can observe and recover from them.
type ToolResult struct {
	// Status is the outcome class.
	Status Status

	// Content is the main result text (the "message" of the payload).
	Content string

	// Data contains structured extras merged into the response payload.
	Data map[string]any
}

// OK creates a successful tool result.
func OK(content string) ToolResult {
	return ToolResult{Status: StatusOK, Content: content}
}

// OKWithData creates a successful tool result with extra payload fields.
func OKWithData(content string, data map[string]any) ToolResult {
	return ToolResult{Status: StatusOK, Content: content, Data: data}
}

// Errorf creates a failed tool result.
func Errorf(format string, args ...any) ToolResult {
	return ToolResult{Status: StatusError, Content: fmt.Sprintf(format, args...)}
}

// ErrorWithData creates a failed tool result carrying recovery data,
// such as the unmodified file content after a failed patch.
func ErrorWithData(content string, data map[string]any) ToolResult {
	return ToolResult{Status: StatusError, Content: content, Data: data}
}

// Canceled creates a result for a user-rejected mutation.
func Canceled(content string) ToolResult {
	return ToolResult{Status: StatusCanceled, Content: content}
}

// IsOK reports whether the result is successful.
func (r ToolResult) IsOK() bool {
	return r.Status == StatusOK
}

// ToMap converts the result to a function-response payload.
func (r ToolResult) ToMap() map[string]any {
	out := map[string]any{
		"status":  string(r.Status),
		"message": r.Content,
	}
	for k, v := range r.Data {
		out[k] = v
	}
	return out
}

// ValidationError represents a tool argument validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ApprovalRequest describes a proposed file mutation awaiting approval.
type ApprovalRequest struct {
	Tool       string
	Path       string
	OldContent string
	NewContent string
	IsNewFile  bool
}

// Approver decides whether mutations and untrusted commands may proceed.
// Implemented by the terminal UI; tests supply fakes.
type Approver interface {
	// ApproveMutation shows the proposed change and waits for a decision.
	ApproveMutation(ctx context.Context, req ApprovalRequest) (bool, error)

	// ApproveCommand asks whether an untrusted shell command may run.
	ApproveCommand(ctx context.Context, command, reason string) (bool, error)
}

// UserPrompter relays model questions to the human.
type UserPrompter interface {
	Ask(ctx context.Context, questions []string, background string) ([]Answer, error)
}

// Answer pairs a question with the user's reply.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GetString extracts a string argument from the args map.
func GetString(args map[string]any, key string) (string, bool) {
	val, ok := args[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetStringDefault extracts a string argument with a default value.
func GetStringDefault(args map[string]any, key, defaultVal string) string {
	if val, ok := GetString(args, key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetInt extracts an integer argument from the args map.
func GetInt(args map[string]any, key string) (int, bool) {
	val, ok := args[key]
	if !ok {
		return 0, false
	}
	// Models may return numbers as float64
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// GetIntDefault extracts an integer argument with a default value.
func GetIntDefault(args map[string]any, key string, defaultVal int) int {
	if val, ok := GetInt(args, key); ok {
		return val
	}
	return defaultVal
}

// GetBool extracts a boolean argument from the args map.
func GetBool(args map[string]any, key string) (bool, bool) {
	val, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetBoolDefault extracts a boolean argument with a default value.
func GetBoolDefault(args map[string]any, key string, defaultVal bool) bool {
	if val, ok := GetBool(args, key); ok {
		return val
	}
	return defaultVal
}

// GetStringSlice extracts a []string argument from the args map.
func GetStringSlice(args map[string]any, key string) ([]string, bool) {
	val, ok := args[key]
	if !ok {
		return nil, false
	}
	switch v := val.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
