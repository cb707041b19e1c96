package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePlanCapturesNormalizedPlan(t *testing.T) {
	tool := NewStorePlanTool("add a healthcheck endpoint")

	res, err := tool.Execute(context.Background(), map[string]any{
		"subtasks": []any{
			map[string]any{
				"id":            "t1",
				"specification": "add the handler",
				"complexity":    "high",
			},
			map[string]any{
				"specification": "register the route",
				"complexity":    "nonsense",
				"dependencies":  []any{"t1", "ghost"},
			},
		},
		"executionOrder":         []any{"t1"},
		"validationInstructions": "curl the endpoint",
	})
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Content)

	p := tool.Plan()
	require.NotNil(t, p)
	assert.Equal(t, "add a healthcheck endpoint", p.OriginalRequest)
	require.Len(t, p.Subtasks, 2)

	assert.Equal(t, ComplexityHigh, p.Subtasks[0].Complexity)
	assert.Equal(t, LLMRemote, p.Subtasks[0].LLMType)

	// Invalid complexity clamps, missing id is filled, ghost deps drop.
	assert.Equal(t, ComplexityMedium, p.Subtasks[1].Complexity)
	assert.NotEmpty(t, p.Subtasks[1].ID)
	assert.Equal(t, []string{"t1"}, p.Subtasks[1].Dependencies)

	assert.Len(t, p.ExecutionOrder, 2)
	assert.Equal(t, ComplexityHigh, p.OverallComplexity)
	assert.Equal(t, "curl the endpoint", p.ValidationInstructions)
}

func TestStorePlanRejectsEmptySpecification(t *testing.T) {
	tool := NewStorePlanTool("req")

	res, err := tool.Execute(context.Background(), map[string]any{
		"subtasks": []any{
			map[string]any{"specification": "   ", "complexity": "LOW"},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.IsOK())
	assert.Nil(t, tool.Plan())
}

func TestStorePlanSlotEmptyUntilCalled(t *testing.T) {
	tool := NewStorePlanTool("req")
	assert.Nil(t, tool.Plan())
	assert.True(t, tool.Terminal())
}

func TestStoreValidationCapturesVerdict(t *testing.T) {
	tool := NewStoreValidationTool()
	require.Nil(t, tool.Result())

	res, err := tool.Execute(context.Background(), map[string]any{
		"status":         "failed",
		"message":        "tests are red",
		"failedTasks":    []any{"t2"},
		"suggestedFixes": []any{"fix the import cycle"},
	})
	require.NoError(t, err)
	require.True(t, res.IsOK())

	verdict := tool.Result()
	require.NotNil(t, verdict)
	assert.Equal(t, ValidationFailed, verdict.Status)
	assert.Equal(t, "tests are red", verdict.Message)
	assert.Equal(t, []string{"t2"}, verdict.FailedTasks)
	assert.Equal(t, []string{"fix the import cycle"}, verdict.SuggestedFixes)
	assert.False(t, verdict.Passed())
}

func TestStoreValidationRejectsUnknownStatus(t *testing.T) {
	tool := NewStoreValidationTool()
	assert.Error(t, tool.Validate(map[string]any{"status": "MAYBE"}))
	assert.NoError(t, tool.Validate(map[string]any{"status": "passed"}))
}

func TestFallbackPlanRestatesRequestVerbatim(t *testing.T) {
	request := "rename the Widget type to Gadget across the project"
	p := FallbackPlan(request)

	require.Len(t, p.Subtasks, 1)
	assert.Equal(t, request, p.Subtasks[0].Specification)
	assert.Equal(t, request, p.OriginalRequest)
	assert.Equal(t, ComplexityMedium, p.Subtasks[0].Complexity)
	assert.Equal(t, LLMRemote, p.Subtasks[0].LLMType)
	assert.Equal(t, []string{p.Subtasks[0].ID}, p.ExecutionOrder)
	assert.NotEmpty(t, p.ValidationInstructions)
}
