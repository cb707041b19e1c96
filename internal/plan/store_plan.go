package plan

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"kodo/internal/tools"
)

// StorePlanTool is the terminal tool of the planning loop. The model calls
// it once with the finished plan; the planner reads the result from the
// tool's slot after the loop ends instead of parsing free-form text.
type StorePlanTool struct {
	originalRequest string
	plan            *TaskPlan
}

// NewStorePlanTool creates a StorePlanTool bound to the request being planned.
func NewStorePlanTool(originalRequest string) *StorePlanTool {
	return &StorePlanTool{originalRequest: originalRequest}
}

func (t *StorePlanTool) Name() string {
	return "store_plan"
}

func (t *StorePlanTool) Description() string {
	return "Stores the finished task plan. Call this exactly once, after all analysis is done; it ends the planning session."
}

// Terminal marks this tool as ending the turn loop on success.
func (t *StorePlanTool) Terminal() bool {
	return true
}

// Plan returns the stored plan, or nil if the model never called the tool.
func (t *StorePlanTool) Plan() *TaskPlan {
	return t.plan
}

func (t *StorePlanTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"subtasks": {
					Type:        genai.TypeArray,
					Description: "The units of work the request decomposes into",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"id": {
								Type:        genai.TypeString,
								Description: "Stable identifier for this subtask",
							},
							"specification": {
								Type:        genai.TypeString,
								Description: "What this subtask must accomplish",
							},
							"complexity": {
								Type:        genai.TypeString,
								Description: "LOW, MEDIUM, or HIGH",
								Enum:        []string{"LOW", "MEDIUM", "HIGH"},
							},
							"dependencies": {
								Type:        genai.TypeArray,
								Description: "IDs of subtasks that must finish first",
								Items:       &genai.Schema{Type: genai.TypeString},
							},
							"filesToRead": {
								Type:        genai.TypeArray,
								Description: "Files the executor should read before working",
								Items:       &genai.Schema{Type: genai.TypeString},
							},
						},
						Required: []string{"specification", "complexity"},
					},
				},
				"executionOrder": {
					Type:        genai.TypeArray,
					Description: "Subtask ids in the order they should run",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"overallComplexity": {
					Type:        genai.TypeString,
					Description: "LOW, MEDIUM, or HIGH for the request as a whole",
					Enum:        []string{"LOW", "MEDIUM", "HIGH"},
				},
				"validationInstructions": {
					Type:        genai.TypeString,
					Description: "How to verify the finished work",
				},
			},
			Required: []string{"subtasks"},
		},
	}
}

func (t *StorePlanTool) Validate(args map[string]any) error {
	raw, ok := args["subtasks"]
	if !ok {
		return tools.NewValidationError("subtasks", "is required")
	}
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return tools.NewValidationError("subtasks", "at least one subtask is required")
	}
	return nil
}

func (t *StorePlanTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	p, err := planFromArgs(t.originalRequest, args)
	if err != nil {
		return tools.Errorf("invalid plan: %s", err), nil
	}

	Normalize(p)
	t.plan = p
	return tools.OK(fmt.Sprintf("Plan stored with %d subtask(s)", len(p.Subtasks))), nil
}

func planFromArgs(originalRequest string, args map[string]any) (*TaskPlan, error) {
	items, _ := args["subtasks"].([]any)
	subtasks := make([]Subtask, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("subtask %d is not an object", i+1)
		}
		spec, _ := m["specification"].(string)
		if strings.TrimSpace(spec) == "" {
			return nil, fmt.Errorf("subtask %d has no specification", i+1)
		}
		id, _ := m["id"].(string)
		complexity, _ := m["complexity"].(string)
		deps, _ := tools.GetStringSlice(m, "dependencies")
		files, _ := tools.GetStringSlice(m, "filesToRead")
		subtasks = append(subtasks, Subtask{
			ID:            id,
			Specification: spec,
			Complexity:    ComplexityLevel(complexity),
			Dependencies:  deps,
			FilesToRead:   files,
		})
	}

	order, _ := tools.GetStringSlice(args, "executionOrder")
	instructions, _ := args["validationInstructions"].(string)

	return &TaskPlan{
		OriginalRequest:        originalRequest,
		Subtasks:               subtasks,
		ExecutionOrder:         order,
		ValidationInstructions: instructions,
	}, nil
}
