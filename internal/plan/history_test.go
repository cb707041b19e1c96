package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyAt(t *testing.T, maxEntries int) *History {
	t.Helper()
	return NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), maxEntries)
}

func completedPlan(request string, passed bool) *TaskPlan {
	status := ValidationFailed
	if passed {
		status = ValidationPassed
	}
	return &TaskPlan{
		OriginalRequest:  request,
		Subtasks:         []Subtask{{ID: "s1", Specification: request}},
		ExecutionOrder:   []string{"s1"},
		ValidationResult: &ValidationResult{Status: status, Message: "done"},
	}
}

func TestHistoryAppendAndRecent(t *testing.T) {
	h := historyAt(t, 10)

	require.NoError(t, h.Append(completedPlan("first", true)))
	require.NoError(t, h.Append(completedPlan("second", false)))

	entries, err := h.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].OriginalRequest)
	assert.Equal(t, "second", entries[1].OriginalRequest)
	assert.False(t, entries[0].CompletedAt.IsZero())
}

func TestHistoryTruncatesToMaxEntries(t *testing.T) {
	h := historyAt(t, 3)

	for i := 0; i < 7; i++ {
		require.NoError(t, h.Append(completedPlan(fmt.Sprintf("req-%d", i), true)))
	}

	entries, err := h.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Only the most recent plans survive.
	assert.Equal(t, "req-4", entries[0].OriginalRequest)
	assert.Equal(t, "req-6", entries[2].OriginalRequest)
}

func TestHistorySuccessRate(t *testing.T) {
	h := historyAt(t, 10)

	_, ok := h.SuccessRate()
	assert.False(t, ok, "no history yet")

	require.NoError(t, h.Append(completedPlan("a", true)))
	require.NoError(t, h.Append(completedPlan("b", true)))
	require.NoError(t, h.Append(completedPlan("c", false)))
	require.NoError(t, h.Append(completedPlan("d", false)))

	rate, ok := h.SuccessRate()
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 0.001)
}

func TestHistorySurvivesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), 0600))

	h := NewHistory(path, 5)
	require.NoError(t, h.Append(completedPlan("fresh", true)))

	entries, err := h.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].OriginalRequest)
}
