package plan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kodo/internal/project"
)

func testProfile() *project.ContextProfile {
	return &project.ContextProfile{
		ProjectRoot:     "/work",
		TechnologyStack: []string{"Go"},
	}
}

func TestPlanningInputFoldsInRecentHistory(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), 10)
	p := FallbackPlan("add a healthcheck endpoint")
	p.Subtasks[0].ImplementationDetails = "added /healthz to the mux"
	require.NoError(t, h.Append(p))

	recent, err := h.Recent(maxHistoryContext)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	input := buildPlanningInput("extend the healthcheck", testProfile(), "", recent)
	assert.Contains(t, input, "Recently completed work")
	assert.Contains(t, input, "add a healthcheck endpoint")
	assert.Contains(t, input, "added /healthz to the mux")
}

func TestPlanningInputWithoutHistory(t *testing.T) {
	input := buildPlanningInput("do the thing", testProfile(), "", nil)
	assert.Contains(t, input, "Request:\ndo the thing")
	assert.NotContains(t, input, "Recently completed work")
}

func TestPlanningInputKeepsNewestPlans(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), 10)
	requests := []string{"req-1", "req-2", "req-3", "req-4", "req-5"}
	for _, req := range requests {
		require.NoError(t, h.Append(FallbackPlan(req)))
	}

	recent, err := h.Recent(maxHistoryContext)
	require.NoError(t, err)

	input := buildPlanningInput("next", testProfile(), "", recent)
	assert.NotContains(t, input, "req-1")
	assert.NotContains(t, input, "req-2")
	for _, req := range []string{"req-3", "req-4", "req-5"} {
		assert.Contains(t, input, req)
	}
}
