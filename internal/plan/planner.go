package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kodo/internal/client"
	"kodo/internal/config"
	"kodo/internal/logging"
	"kodo/internal/project"
	"kodo/internal/security"
	"kodo/internal/tools"
)

const planningSystemPrompt = `You are a senior software engineer decomposing a coding request into an executable task plan.

Work through the request step by step:
1. Use list_files and read_files to understand the parts of the project the request touches.
2. Break the request into the smallest set of subtasks that together fulfil it completely.
3. Grade each subtask LOW, MEDIUM, or HIGH complexity and record which subtasks depend on which.
4. Write validation instructions that a reviewer could follow to confirm the work is done.

When the plan is complete, call store_plan exactly once with the full plan. Do not describe the plan in prose; store_plan is the only way to deliver it.`

// Planner turns a user request into a normalized TaskPlan. CreateTaskPlan
// never fails: when planning breaks down for any reason it degrades to a
// single-subtask fallback plan instead of surfacing an error.
type Planner struct {
	router        *client.Router
	pathValidator *security.PathValidator
	prompter      tools.UserPrompter
	history       *History // nil = plan without history context
	cfg           config.PlannerConfig
}

// NewPlanner creates a Planner.
func NewPlanner(router *client.Router, validator *security.PathValidator, prompter tools.UserPrompter, history *History, cfg config.PlannerConfig) *Planner {
	return &Planner{
		router:        router,
		pathValidator: validator,
		prompter:      prompter,
		history:       history,
		cfg:           cfg,
	}
}

// CreateTaskPlan plans the given request against the project profile.
func (pl *Planner) CreateTaskPlan(ctx context.Context, request string, profile *project.ContextProfile) *TaskPlan {
	if pl.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pl.cfg.Timeout)
		defer cancel()
	}

	digest := pl.prePlan(ctx, request, profile)

	store := NewStorePlanTool(request)
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewListFilesTool(pl.pathValidator))
	registry.MustRegister(tools.NewReadFilesTool(pl.pathValidator, 0))
	if pl.prompter != nil {
		registry.MustRegister(tools.NewAskUserTool(pl.prompter))
	}
	registry.MustRegister(store)

	dispatcher := tools.NewDispatcher(registry, pl.router.Remote(), pl.cfg.MaxTurns)

	input := buildPlanningInput(request, profile, digest, pl.recentPlans())
	start := time.Now()
	if _, err := dispatcher.Run(ctx, planningSystemPrompt, input); err != nil {
		logging.Warn("planning session failed, using fallback plan", "error", err)
		return FallbackPlan(request)
	}

	p := store.Plan()
	if p == nil {
		// The model finished talking without ever delivering the plan.
		logging.Warn("model never called store_plan, using fallback plan")
		return FallbackPlan(request)
	}

	logging.Info("task plan created",
		"subtasks", len(p.Subtasks),
		"complexity", p.OverallComplexity,
		"duration", time.Since(start).Round(time.Millisecond))
	return p
}

// prePlan asks the local model for a short analysis of the request to seed
// the remote planning session. It is best effort: any failure just means
// planning starts cold.
func (pl *Planner) prePlan(ctx context.Context, request string, profile *project.ContextProfile) string {
	if !pl.cfg.PrePlanning {
		return ""
	}
	local, ok := pl.router.Local()
	if !ok {
		return ""
	}

	prompt := fmt.Sprintf(
		"Summarize in at most five bullet points what this coding request involves and which parts of the project it likely touches.\n\nRequest: %s\n\nProject technologies: %s",
		request, strings.Join(profile.TechnologyStack, ", "))

	resp, err := local.Generate(ctx, client.TextHistory(prompt))
	if err != nil {
		logging.Debug("pre-planning digest failed", "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Text)
}

// maxHistoryContext caps how many completed plans feed the planning input.
const maxHistoryContext = 3

// recentPlans loads the last few completed plans so the model can build on
// work already done in this project. Best effort: a broken log means
// planning starts without history.
func (pl *Planner) recentPlans() []*TaskPlan {
	if pl.history == nil {
		return nil
	}
	recent, err := pl.history.Recent(maxHistoryContext)
	if err != nil {
		logging.Debug("could not load plan history", "error", err)
		return nil
	}
	return recent
}

func buildPlanningInput(request string, profile *project.ContextProfile, digest string, recent []*TaskPlan) string {
	var sb strings.Builder
	sb.WriteString("Request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\n")
	sb.WriteString(profile.Render())
	if digest != "" {
		sb.WriteString("\n\nPreliminary analysis:\n")
		sb.WriteString(digest)
	}
	if len(recent) > 0 {
		sb.WriteString("\n\nRecently completed work in this project (newest last):\n")
		for _, p := range recent {
			fmt.Fprintf(&sb, "- %s\n", p.OriginalRequest)
			for _, st := range p.Subtasks {
				if st.ImplementationDetails == "" {
					continue
				}
				fmt.Fprintf(&sb, "  - %s: %s\n", st.Specification, st.ImplementationDetails)
			}
		}
	}
	return sb.String()
}

// FallbackPlan wraps the request in a single-subtask plan. The subtask's
// specification is the request verbatim so no intent is lost.
func FallbackPlan(request string) *TaskPlan {
	st := Subtask{
		ID:            "fallback-1",
		Specification: request,
		Complexity:    ComplexityMedium,
		LLMType:       LLMRemote,
	}
	return &TaskPlan{
		OriginalRequest:        request,
		Subtasks:               []Subtask{st},
		ExecutionOrder:         []string{st.ID},
		OverallComplexity:      ComplexityMedium,
		ValidationInstructions: "Confirm the original request has been fulfilled and the project still builds and passes its tests.",
	}
}
