package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kodo/internal/config"
	"kodo/internal/plan"
)

func defaultAssessor() *Assessor {
	return NewAssessor(config.DefaultConfig().Complexity)
}

func TestAssessKnownScore(t *testing.T) {
	a := defaultAssessor()

	// 80*.2 + 50*.3 + 10*.2 + 30*.2 + 50*.1 = 44
	got := a.Assess(Factors{
		TaskType:     TaskGeneration,
		ScopeSize:    5,
		Dependencies: 2,
		Technologies: 3,
	})

	assert.InDelta(t, 44.0, got.Score, 0.001)
	assert.Equal(t, plan.ComplexityMedium, got.Level)
}

func TestAssessExplainsContributions(t *testing.T) {
	a := defaultAssessor()

	got := a.Assess(Factors{
		TaskType:     TaskGeneration,
		ScopeSize:    5,
		Dependencies: 2,
		Technologies: 3,
	})

	require.NotEmpty(t, got.Explanation)
	for _, factor := range []string{"taskType", "scopeSize", "dependencies", "technology", "priorSuccess"} {
		assert.Contains(t, got.Explanation, factor)
	}
	assert.Contains(t, got.Explanation, "taskType 80×0.20")
	assert.Contains(t, got.Explanation, "= 44.0 (MEDIUM)")
}

func TestAssessTaskTypeScores(t *testing.T) {
	a := defaultAssessor()

	cases := []struct {
		taskType TaskType
		want     float64
	}{
		{TaskGeneration, 80},
		{TaskRefactoring, 60},
		{TaskExplanation, 30},
		{TaskType("generation"), 80}, // case-insensitive
		{TaskType("SOMETHING_ELSE"), 50},
		{TaskType(""), 50},
	}
	for _, tc := range cases {
		got := a.Assess(Factors{TaskType: tc.taskType})
		assert.Equal(t, tc.want, got.FactorScores["taskType"], "task type %q", tc.taskType)
	}
}

func TestAssessFactorCaps(t *testing.T) {
	a := defaultAssessor()

	got := a.Assess(Factors{
		TaskType:     TaskGeneration,
		ScopeSize:    50,  // 500 uncapped
		Dependencies: 100, // 500 uncapped
		Technologies: 25,  // 250 uncapped
	})

	assert.Equal(t, 100.0, got.FactorScores["scopeSize"])
	assert.Equal(t, 100.0, got.FactorScores["dependencies"])
	assert.Equal(t, 100.0, got.FactorScores["technology"])
}

func TestAssessPriorSuccessInverts(t *testing.T) {
	a := defaultAssessor()

	perfect := 1.0
	got := a.Assess(Factors{PriorSuccess: &perfect})
	assert.Equal(t, 0.0, got.FactorScores["priorSuccess"])

	poor := 0.2
	got = a.Assess(Factors{PriorSuccess: &poor})
	assert.InDelta(t, 80.0, got.FactorScores["priorSuccess"], 0.001)

	// Unknown history sits in the middle.
	got = a.Assess(Factors{})
	assert.Equal(t, 50.0, got.FactorScores["priorSuccess"])
}

func TestAssessThresholds(t *testing.T) {
	a := defaultAssessor()

	low := a.Assess(Factors{TaskType: TaskExplanation})
	assert.Equal(t, plan.ComplexityLow, low.Level)

	high := a.Assess(Factors{
		TaskType:     TaskGeneration,
		ScopeSize:    10,
		Dependencies: 20,
		Technologies: 10,
	})
	assert.Equal(t, plan.ComplexityHigh, high.Level)
}
