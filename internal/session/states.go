package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"kodo/internal/complexity"
	"kodo/internal/logging"
	"kodo/internal/plan"
)

// waitingForInput blocks on the prompt until the user types a request or
// quits the session.
type waitingForInput struct{ baseState }

func (waitingForInput) ID() StateID { return StateWaitingForInput }

func (waitingForInput) Process(ctx context.Context, s *Session) (StateID, error) {
	for {
		input, err := s.UI.ReadInput(ctx, "kodo> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return stateTerminated, nil
			}
			return StateWaitingForInput, err
		}

		input = strings.TrimSpace(input)
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit", "q":
			return stateTerminated, nil
		}

		s.ResetRequest(input)
		return StateGatheringContext, nil
	}
}

// gatheringContext builds (or refreshes) the project profile and scores the
// request's complexity.
type gatheringContext struct{ baseState }

func (gatheringContext) ID() StateID { return StateGatheringContext }

func (gatheringContext) Process(ctx context.Context, s *Session) (StateID, error) {
	if s.Profile == nil || s.Watcher.Stale() {
		profile, err := s.Profiles.Build()
		if err != nil {
			return StateGatheringContext, fmt.Errorf("scanning project: %w", err)
		}
		s.Profile = profile
		s.Watcher.Refresh()
	}

	assessment := s.Assessor.Assess(assessmentFactors(s))
	s.Assessment = &assessment
	logging.Info("request assessed",
		"level", assessment.Level,
		"score", fmt.Sprintf("%.1f", assessment.Score),
		"explanation", assessment.Explanation)

	return StateGeneratingPlan, nil
}

// assessmentFactors derives assessor inputs from the request and profile.
func assessmentFactors(s *Session) complexity.Factors {
	f := complexity.Factors{
		TaskType:     classifyRequest(s.Request),
		ScopeSize:    estimateScope(s.Request, len(s.Profile.Files)),
		Dependencies: len(s.Profile.Dependencies),
		Technologies: len(s.Profile.TechnologyStack),
	}
	if rate, ok := s.History.SuccessRate(); ok {
		f.PriorSuccess = &rate
	}
	return f
}

func classifyRequest(request string) complexity.TaskType {
	lower := strings.ToLower(request)
	switch {
	case containsAny(lower, "explain", "what does", "how does", "describe", "why does"):
		return complexity.TaskExplanation
	case containsAny(lower, "refactor", "rename", "restructure", "clean up", "simplify"):
		return complexity.TaskRefactoring
	default:
		return complexity.TaskGeneration
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// estimateScope guesses how many components the request touches: one per
// path-looking token, floored at 1 and capped by the project size.
func estimateScope(request string, projectFiles int) int {
	scope := 1
	for _, tok := range strings.Fields(request) {
		if strings.ContainsAny(tok, "/.") && !strings.HasSuffix(tok, ".") {
			scope++
		}
	}
	if projectFiles > 0 && scope > projectFiles {
		scope = projectFiles
	}
	return scope
}

// generatingPlan produces the task plan. Planning cannot fail: it degrades
// to a fallback plan internally.
type generatingPlan struct{ baseState }

func (generatingPlan) ID() StateID { return StateGeneratingPlan }

func (generatingPlan) Enter(_ context.Context, s *Session) error {
	s.UI.Show("Planning...")
	return nil
}

func (generatingPlan) Process(ctx context.Context, s *Session) (StateID, error) {
	s.Plan = s.Planner.CreateTaskPlan(ctx, s.Request, s.Profile)
	return StateReviewingPlan, nil
}

// reviewingPlan shows the plan and asks the user to approve it.
type reviewingPlan struct{ baseState }

func (reviewingPlan) ID() StateID { return StateReviewingPlan }

func (reviewingPlan) Process(ctx context.Context, s *Session) (StateID, error) {
	s.UI.ShowMarkdown(renderPlan(s.Plan))

	if s.Config.Session.AutoApprove {
		return StateExecutingTasks, nil
	}

	approved, err := s.UI.Confirm(ctx, "Proceed with this plan?")
	if err != nil {
		return StateReviewingPlan, err
	}
	if !approved {
		s.UI.Show("Plan discarded.")
		return StateWaitingForInput, nil
	}
	return StateExecutingTasks, nil
}

func renderPlan(p *plan.TaskPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Task plan (%s)\n\n", p.OverallComplexity)
	for i, st := range p.OrderedSubtasks() {
		fmt.Fprintf(&sb, "%d. **%s** [%s, %s]\n", i+1, st.Specification, st.Complexity, st.LLMType)
		if len(st.Dependencies) > 0 {
			fmt.Fprintf(&sb, "   - after: %s\n", strings.Join(st.Dependencies, ", "))
		}
	}
	if p.ValidationInstructions != "" {
		fmt.Fprintf(&sb, "\n**Validation:** %s\n", p.ValidationInstructions)
	}
	return sb.String()
}

// executingTasks runs the plan's subtasks in order.
type executingTasks struct{ baseState }

func (executingTasks) ID() StateID { return StateExecutingTasks }

func (executingTasks) Process(ctx context.Context, s *Session) (StateID, error) {
	if err := s.Executor.Execute(ctx, s.Plan, s.Profile); err != nil {
		s.UI.ShowError(fmt.Sprintf("Execution failed: %s", err))
		return StateExecutingTasks, err
	}
	return StateValidatingTasks, nil
}

// validatingTasks checks the executed work. Validation errors are absorbed:
// usage is reported best effort and planning is retried.
type validatingTasks struct{ baseState }

func (validatingTasks) ID() StateID { return StateValidatingTasks }

func (validatingTasks) Process(ctx context.Context, s *Session) (StateID, error) {
	result, err := s.Validator.Validate(ctx, s.Plan)
	if err != nil {
		logging.Warn("validation failed to complete", "error", err)
		s.UI.ShowError(fmt.Sprintf("Validation did not complete: %s", err))
		reportUsage(s)
		return StateGeneratingPlan, nil
	}

	if result.Passed() {
		s.UI.ShowSuccess("Validation passed: " + result.Message)
		return StateGeneratingSummary, nil
	}
	return StateFixingValidationErrors, nil
}

// fixingValidationErrors shows the failure and lets the user decide whether
// to regenerate the plan with the failure folded in.
type fixingValidationErrors struct{ baseState }

func (fixingValidationErrors) ID() StateID { return StateFixingValidationErrors }

func (fixingValidationErrors) Process(ctx context.Context, s *Session) (StateID, error) {
	result := s.Plan.ValidationResult
	s.UI.ShowMarkdown(renderValidationFailure(result))

	retry, err := s.UI.Confirm(ctx, "Regenerate the plan with these findings?")
	if err != nil {
		return StateFixingValidationErrors, err
	}
	if !retry {
		s.UI.Show("Leaving the work as is.")
		recordHistory(s)
		return StateWaitingForInput, nil
	}

	s.Request = foldFailureIntoRequest(s.Plan.OriginalRequest, result)
	return StateGeneratingPlan, nil
}

func renderValidationFailure(r *plan.ValidationResult) string {
	var sb strings.Builder
	sb.WriteString("## Validation failed\n\n")
	sb.WriteString(r.Message)
	sb.WriteString("\n")
	if len(r.FailedTasks) > 0 {
		fmt.Fprintf(&sb, "\nFailed subtasks: %s\n", strings.Join(r.FailedTasks, ", "))
	}
	if len(r.SuggestedFixes) > 0 {
		sb.WriteString("\nSuggested fixes:\n")
		for _, fix := range r.SuggestedFixes {
			fmt.Fprintf(&sb, "- %s\n", fix)
		}
	}
	return sb.String()
}

// foldFailureIntoRequest builds the regeneration request from the original
// request plus what validation found.
func foldFailureIntoRequest(original string, r *plan.ValidationResult) string {
	var sb strings.Builder
	sb.WriteString(original)
	sb.WriteString("\n\nA previous attempt failed validation: ")
	sb.WriteString(r.Message)
	if len(r.SuggestedFixes) > 0 {
		sb.WriteString("\nApply these fixes:\n")
		for _, fix := range r.SuggestedFixes {
			sb.WriteString("- ")
			sb.WriteString(fix)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// generatingSummary reports what was done and records the plan in history.
type generatingSummary struct{ baseState }

func (generatingSummary) ID() StateID { return StateGeneratingSummary }

func (generatingSummary) Process(_ context.Context, s *Session) (StateID, error) {
	s.UI.ShowMarkdown(renderSummary(s))
	reportUsage(s)
	recordHistory(s)
	return StateWaitingForInput, nil
}

func renderSummary(s *Session) string {
	var sb strings.Builder
	sb.WriteString("## Done\n\n")
	for _, st := range s.Plan.OrderedSubtasks() {
		fmt.Fprintf(&sb, "- %s", st.Specification)
		if st.ImplementationDetails != "" {
			fmt.Fprintf(&sb, "\n  %s", st.ImplementationDetails)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func reportUsage(s *Session) {
	usage := s.Router.TotalUsage()
	s.UI.Show(fmt.Sprintf("Tokens: %d in / %d out, estimated cost $%.4f",
		usage.InputTokens, usage.OutputTokens, s.Router.TotalCostUSD()))
}

func recordHistory(s *Session) {
	if s.Plan == nil {
		return
	}
	if err := s.History.Append(s.Plan); err != nil {
		logging.Warn("could not record plan history", "error", err)
	}
}
