// Package complexity scores how demanding a coding request is so the
// session can route it to an appropriate model tier.
package complexity

import (
	"fmt"
	"strings"

	"kodo/internal/config"
	"kodo/internal/plan"
)

// TaskType is the broad category of a request.
type TaskType string

const (
	TaskGeneration  TaskType = "GENERATION"
	TaskRefactoring TaskType = "REFACTORING"
	TaskExplanation TaskType = "EXPLANATION"
)

// Factors are the raw inputs to an assessment.
type Factors struct {
	TaskType     TaskType
	ScopeSize    int      // files or components the request touches
	Dependencies int      // external libraries involved
	Technologies int      // distinct languages and frameworks involved
	PriorSuccess *float64 // historical success rate in [0,1]; nil when unknown
}

// Assessment is the scored outcome.
type Assessment struct {
	Score        float64
	Level        plan.ComplexityLevel
	FactorScores map[string]float64
	Explanation  string
}

// Assessor computes weighted complexity scores.
type Assessor struct {
	cfg config.ComplexityConfig
}

// NewAssessor creates an Assessor with the given weights and thresholds.
func NewAssessor(cfg config.ComplexityConfig) *Assessor {
	return &Assessor{cfg: cfg}
}

// Assess scores the factors. Each factor is normalized to [0,100], the
// weighted sum is the overall score, and the thresholds grade it.
func (a *Assessor) Assess(f Factors) Assessment {
	scores := map[string]float64{
		"taskType":     taskTypeScore(f.TaskType),
		"scopeSize":    capped(float64(f.ScopeSize) * 10),
		"dependencies": capped(float64(f.Dependencies) * 5),
		"technology":   capped(float64(f.Technologies) * 10),
		"priorSuccess": priorSuccessScore(f.PriorSuccess),
	}

	w := a.cfg.Weights
	score := scores["taskType"]*w.TaskType +
		scores["scopeSize"]*w.ScopeSize +
		scores["dependencies"]*w.Dependencies +
		scores["technology"]*w.Technology +
		scores["priorSuccess"]*w.PriorSuccess

	level := a.grade(score)
	return Assessment{
		Score:        score,
		Level:        level,
		FactorScores: scores,
		Explanation:  explain(scores, w, score, level),
	}
}

// explain renders the per-factor contributions so the user can see what
// drove the grade.
func explain(scores map[string]float64, w config.ComplexityWeights, score float64, level plan.ComplexityLevel) string {
	parts := []struct {
		name   string
		weight float64
	}{
		{"taskType", w.TaskType},
		{"scopeSize", w.ScopeSize},
		{"dependencies", w.Dependencies},
		{"technology", w.Technology},
		{"priorSuccess", w.PriorSuccess},
	}

	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s %.0f×%.2f", p.name, scores[p.name], p.weight)
	}
	fmt.Fprintf(&sb, " = %.1f (%s)", score, level)
	return sb.String()
}

func (a *Assessor) grade(score float64) plan.ComplexityLevel {
	switch {
	case score >= a.cfg.Thresholds.High:
		return plan.ComplexityHigh
	case score >= a.cfg.Thresholds.Medium:
		return plan.ComplexityMedium
	default:
		return plan.ComplexityLow
	}
}

func taskTypeScore(t TaskType) float64 {
	switch TaskType(strings.ToUpper(strings.TrimSpace(string(t)))) {
	case TaskGeneration:
		return 80
	case TaskRefactoring:
		return 60
	case TaskExplanation:
		return 30
	default:
		return 50
	}
}

// priorSuccessScore inverts the success rate: work that has failed before
// scores as more complex. Unknown history sits in the middle.
func priorSuccessScore(rate *float64) float64 {
	if rate == nil {
		return 50
	}
	return 100 - capped(*rate*100)
}

func capped(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
