// Package plan defines the task plan model produced by the planner and
// consumed by the executor and validation engine.
package plan

import "time"

// ComplexityLevel grades how demanding a task or subtask is.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "LOW"
	ComplexityMedium ComplexityLevel = "MEDIUM"
	ComplexityHigh   ComplexityLevel = "HIGH"
)

// LLMType names which model tier should execute a subtask.
type LLMType string

const (
	LLMLocal  LLMType = "LOCAL"
	LLMRemote LLMType = "REMOTE"
	LLMHybrid LLMType = "HYBRID"
)

// ValidationStatus is the outcome of a validation pass.
type ValidationStatus string

const (
	ValidationPassed ValidationStatus = "PASSED"
	ValidationFailed ValidationStatus = "FAILED"
)

// Subtask is one unit of work in a task plan.
type Subtask struct {
	ID                    string          `json:"id"`
	Specification         string          `json:"specification"`
	Complexity            ComplexityLevel `json:"complexity"`
	LLMType               LLMType         `json:"llmType"`
	Dependencies          []string        `json:"dependencies,omitempty"`
	FilesToRead           []string        `json:"filesToRead,omitempty"`
	ImplementationDetails string          `json:"implementationDetails,omitempty"`
}

// ValidationResult records the verdict of the validation engine.
type ValidationResult struct {
	Status        ValidationStatus `json:"status"`
	Message       string           `json:"message"`
	FailedTasks   []string         `json:"failedTasks,omitempty"`
	SuggestedFixes []string        `json:"suggestedFixes,omitempty"`
}

// Passed reports whether the result is a passing verdict.
func (r *ValidationResult) Passed() bool {
	return r != nil && r.Status == ValidationPassed
}

// TaskPlan is the full decomposition of a user request.
type TaskPlan struct {
	OriginalRequest        string            `json:"originalRequest"`
	Subtasks               []Subtask         `json:"subtasks"`
	ExecutionOrder         []string          `json:"executionOrder"`
	OverallComplexity      ComplexityLevel   `json:"overallComplexity"`
	ValidationInstructions string            `json:"validationInstructions"`
	ValidationResult       *ValidationResult `json:"validationResult,omitempty"`
	CompletedAt            time.Time         `json:"completedAt,omitempty"`
}

// SubtaskByID returns the subtask with the given id, if present.
func (p *TaskPlan) SubtaskByID(id string) (*Subtask, bool) {
	for i := range p.Subtasks {
		if p.Subtasks[i].ID == id {
			return &p.Subtasks[i], true
		}
	}
	return nil, false
}

// OrderedSubtasks returns subtasks in execution order. IDs in the order that
// name no subtask are skipped.
func (p *TaskPlan) OrderedSubtasks() []*Subtask {
	out := make([]*Subtask, 0, len(p.Subtasks))
	for _, id := range p.ExecutionOrder {
		if st, ok := p.SubtaskByID(id); ok {
			out = append(out, st)
		}
	}
	return out
}
