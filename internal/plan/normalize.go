package plan

import (
	"strings"

	"github.com/google/uuid"
)

// Normalize repairs a plan produced by a model so that downstream code can
// rely on its shape: every subtask has an id and a valid complexity, the
// llm tier is derived from complexity, dependencies reference real subtasks,
// and the execution order is a valid ordering of exactly the known ids.
func Normalize(p *TaskPlan) {
	assignIDs(p)

	known := make(map[string]bool, len(p.Subtasks))
	for i := range p.Subtasks {
		known[p.Subtasks[i].ID] = true
	}

	for i := range p.Subtasks {
		st := &p.Subtasks[i]
		st.Complexity = clampComplexity(string(st.Complexity))
		st.LLMType = TierFor(st.Complexity)
		st.Dependencies = filterDependencies(st.ID, st.Dependencies, known)
	}

	p.ExecutionOrder = normalizeOrder(p)
	p.OverallComplexity = overallComplexity(p.Subtasks)
}

// TierFor maps a complexity level to the model tier that should handle it.
// The mapping is total: every level has a tier.
func TierFor(c ComplexityLevel) LLMType {
	switch c {
	case ComplexityHigh:
		return LLMRemote
	case ComplexityLow:
		return LLMLocal
	default:
		return LLMHybrid
	}
}

func assignIDs(p *TaskPlan) {
	for i := range p.Subtasks {
		if strings.TrimSpace(p.Subtasks[i].ID) == "" {
			p.Subtasks[i].ID = uuid.NewString()
		}
	}
}

func clampComplexity(raw string) ComplexityLevel {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ComplexityLow):
		return ComplexityLow
	case string(ComplexityHigh):
		return ComplexityHigh
	case string(ComplexityMedium):
		return ComplexityMedium
	default:
		return ComplexityMedium
	}
}

func filterDependencies(self string, deps []string, known map[string]bool) []string {
	if len(deps) == 0 {
		return nil
	}
	out := deps[:0]
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		if d == self || !known[d] || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeOrder filters the declared order to known ids, appends any
// subtasks the order omitted, and falls back to a dependency-respecting
// order when the declared one schedules a subtask before its dependencies.
func normalizeOrder(p *TaskPlan) []string {
	known := make(map[string]bool, len(p.Subtasks))
	for i := range p.Subtasks {
		known[p.Subtasks[i].ID] = true
	}

	order := make([]string, 0, len(p.Subtasks))
	seen := make(map[string]bool, len(p.Subtasks))
	for _, id := range p.ExecutionOrder {
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}
	for i := range p.Subtasks {
		if id := p.Subtasks[i].ID; !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	if respectsDependencies(p, order) {
		return order
	}
	return topologicalOrder(p)
}

func respectsDependencies(p *TaskPlan, order []string) bool {
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for i := range p.Subtasks {
		st := &p.Subtasks[i]
		for _, dep := range st.Dependencies {
			if position[dep] > position[st.ID] {
				return false
			}
		}
	}
	return true
}

// topologicalOrder runs Kahn's algorithm over the dependency graph, breaking
// ties by declaration order. Subtasks stuck in a dependency cycle are
// appended at the end in declaration order rather than dropped.
func topologicalOrder(p *TaskPlan) []string {
	indegree := make(map[string]int, len(p.Subtasks))
	dependents := make(map[string][]string, len(p.Subtasks))
	for i := range p.Subtasks {
		st := &p.Subtasks[i]
		indegree[st.ID] += 0
		for _, dep := range st.Dependencies {
			indegree[st.ID]++
			dependents[dep] = append(dependents[dep], st.ID)
		}
	}

	order := make([]string, 0, len(p.Subtasks))
	placed := make(map[string]bool, len(p.Subtasks))
	for len(order) < len(p.Subtasks) {
		progressed := false
		for i := range p.Subtasks {
			id := p.Subtasks[i].ID
			if placed[id] || indegree[id] != 0 {
				continue
			}
			placed[id] = true
			order = append(order, id)
			for _, dep := range dependents[id] {
				indegree[dep]--
			}
			progressed = true
		}
		if !progressed {
			for i := range p.Subtasks {
				if id := p.Subtasks[i].ID; !placed[id] {
					placed[id] = true
					order = append(order, id)
				}
			}
		}
	}
	return order
}

func overallComplexity(subtasks []Subtask) ComplexityLevel {
	var medium, low int
	for i := range subtasks {
		switch subtasks[i].Complexity {
		case ComplexityHigh:
			return ComplexityHigh
		case ComplexityMedium:
			medium++
		case ComplexityLow:
			low++
		}
	}
	if medium >= low && medium > 0 {
		return ComplexityMedium
	}
	if low > 0 {
		return ComplexityLow
	}
	return ComplexityMedium
}
