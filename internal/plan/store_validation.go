package plan

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"kodo/internal/tools"
)

// StoreValidationTool is the terminal tool of the validation loop. The model
// records its verdict here; the validation engine reads it from the slot
// after the loop ends.
type StoreValidationTool struct {
	result *ValidationResult
}

// NewStoreValidationTool creates a StoreValidationTool.
func NewStoreValidationTool() *StoreValidationTool {
	return &StoreValidationTool{}
}

func (t *StoreValidationTool) Name() string {
	return "store_validation_result"
}

func (t *StoreValidationTool) Description() string {
	return "Stores the final validation verdict. Call this exactly once when the checks are complete; it ends the validation session."
}

// Terminal marks this tool as ending the turn loop on success.
func (t *StoreValidationTool) Terminal() bool {
	return true
}

// Result returns the stored verdict, or nil if the model never called the tool.
func (t *StoreValidationTool) Result() *ValidationResult {
	return t.result
}

func (t *StoreValidationTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"status": {
					Type:        genai.TypeString,
					Description: "PASSED or FAILED",
					Enum:        []string{"PASSED", "FAILED"},
				},
				"message": {
					Type:        genai.TypeString,
					Description: "Short explanation of the verdict",
				},
				"failedTasks": {
					Type:        genai.TypeArray,
					Description: "IDs of subtasks whose work did not hold up",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"suggestedFixes": {
					Type:        genai.TypeArray,
					Description: "Concrete fixes for the failures",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"status", "message"},
		},
	}
}

func (t *StoreValidationTool) Validate(args map[string]any) error {
	status, ok := tools.GetString(args, "status")
	if !ok {
		return tools.NewValidationError("status", "is required")
	}
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case string(ValidationPassed), string(ValidationFailed):
		return nil
	default:
		return tools.NewValidationError("status", "must be PASSED or FAILED")
	}
}

func (t *StoreValidationTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	status, _ := tools.GetString(args, "status")
	message := tools.GetStringDefault(args, "message", "")
	failed, _ := tools.GetStringSlice(args, "failedTasks")
	fixes, _ := tools.GetStringSlice(args, "suggestedFixes")

	t.result = &ValidationResult{
		Status:         ValidationStatus(strings.ToUpper(strings.TrimSpace(status))),
		Message:        message,
		FailedTasks:    failed,
		SuggestedFixes: fixes,
	}
	return tools.OK("Validation result stored"), nil
}
