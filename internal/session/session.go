// Package session drives one interactive session through its fixed state
// machine: gather context, plan, review, execute, validate, summarize.
package session

import (
	"context"

	"kodo/internal/client"
	"kodo/internal/complexity"
	"kodo/internal/config"
	"kodo/internal/executor"
	"kodo/internal/plan"
	"kodo/internal/project"
	"kodo/internal/validation"
	"kodo/internal/watcher"
)

// UI is the interactive surface the session talks to the user through.
type UI interface {
	// ReadInput reads one line of user input.
	ReadInput(ctx context.Context, prompt string) (string, error)
	// Show prints plain text.
	Show(text string)
	// ShowSuccess prints text styled as a good outcome.
	ShowSuccess(text string)
	// ShowError prints text styled as a failure.
	ShowError(text string)
	// ShowMarkdown renders and prints markdown.
	ShowMarkdown(md string)
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Session is the shared data the states operate on.
type Session struct {
	Config    *config.Config
	Router    *client.Router
	Planner   *plan.Planner
	Executor  *executor.Executor
	Validator *validation.Engine
	Assessor  *complexity.Assessor
	History   *plan.History
	Profiles  *project.Builder
	Watcher   *watcher.Watcher
	UI        UI

	// Per-request working set, reset each time a new request arrives.
	Request    string
	Profile    *project.ContextProfile
	Assessment *complexity.Assessment
	Plan       *plan.TaskPlan
}

// ResetRequest clears the working set for a fresh user request.
func (s *Session) ResetRequest(request string) {
	s.Request = request
	s.Assessment = nil
	s.Plan = nil
}
