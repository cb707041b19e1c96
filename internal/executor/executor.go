// Package executor runs the subtasks of a task plan in order, driving the
// model and its mutation tools until each subtask is done.
package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"kodo/internal/client"
	"kodo/internal/config"
	"kodo/internal/logging"
	"kodo/internal/plan"
	"kodo/internal/project"
	"kodo/internal/security"
	"kodo/internal/tools"
)

const executionSystemPrompt = `You are a senior software engineer carrying out one subtask of a larger plan.

Use the available tools to inspect and modify the project. Prefer patch_file and edit_file for changes to existing files; use write_new_file only for files that do not exist yet. Run commands only when needed to verify your work.

When the subtask is complete, stop calling tools and reply with a short summary of what you changed: the files touched and any new functions, types, or interfaces introduced.`

// Executor runs plans subtask by subtask.
type Executor struct {
	router        *client.Router
	pathValidator *security.PathValidator
	gate          *security.CommandGate
	approver      tools.Approver
	prompter      tools.UserPrompter
	cfg           *config.Config
	workDir       string
}

// New creates an Executor.
func New(router *client.Router, validator *security.PathValidator, gate *security.CommandGate, approver tools.Approver, prompter tools.UserPrompter, cfg *config.Config, workDir string) *Executor {
	return &Executor{
		router:        router,
		pathValidator: validator,
		gate:          gate,
		approver:      approver,
		prompter:      prompter,
		cfg:           cfg,
		workDir:       workDir,
	}
}

// Execute runs every subtask in the plan's execution order. Completed
// subtasks have their implementation details filled in so later subtasks
// and future planning can build on them.
func (e *Executor) Execute(ctx context.Context, p *plan.TaskPlan, profile *project.ContextProfile) error {
	ordered := p.OrderedSubtasks()
	for i, st := range ordered {
		logging.Info("executing subtask",
			"id", st.ID,
			"position", fmt.Sprintf("%d/%d", i+1, len(ordered)),
			"tier", st.LLMType)

		start := time.Now()
		if err := e.executeSubtask(ctx, p, st, profile, ordered[:i]); err != nil {
			return fmt.Errorf("subtask %s: %w", st.ID, err)
		}
		logging.Debug("subtask finished", "id", st.ID, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func (e *Executor) executeSubtask(ctx context.Context, p *plan.TaskPlan, st *plan.Subtask, profile *project.ContextProfile, done []*plan.Subtask) error {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewListFilesTool(e.pathValidator))
	registry.MustRegister(tools.NewReadFilesTool(e.pathValidator, e.cfg.Tools.MaxReadBytes))
	registry.MustRegister(tools.NewWriteNewFileTool(e.workDir, e.pathValidator, e.approver))
	registry.MustRegister(tools.NewPatchFileTool(e.pathValidator, e.approver))
	registry.MustRegister(tools.NewEditFileTool(e.pathValidator, e.approver))
	registry.MustRegister(tools.NewRunProcessTool(e.workDir, e.gate, e.approver, e.cfg.Tools.ProcessTimeout, e.cfg.Tools.MaxOutputChars))
	if e.prompter != nil {
		registry.MustRegister(tools.NewAskUserTool(e.prompter))
	}

	c := e.router.ForTier(client.Tier(st.LLMType))
	dispatcher := tools.NewDispatcher(registry, c, e.cfg.Planner.MaxTurns)

	input := e.buildInput(p, st, profile, done)
	result, err := dispatcher.Run(ctx, executionSystemPrompt, input)
	if err != nil {
		return err
	}

	st.ImplementationDetails = implementationDetails(result)
	return nil
}

// buildInput assembles the subtask prompt: the specification, the plan it
// belongs to, pre-read file content, and what earlier subtasks already did.
func (e *Executor) buildInput(p *plan.TaskPlan, st *plan.Subtask, profile *project.ContextProfile, done []*plan.Subtask) string {
	var sb strings.Builder
	sb.WriteString("Subtask:\n")
	sb.WriteString(st.Specification)
	sb.WriteString("\n\nThis subtask is part of fulfilling the request:\n")
	sb.WriteString(p.OriginalRequest)
	sb.WriteString("\n\n")
	sb.WriteString(profile.Render())

	if len(done) > 0 {
		sb.WriteString("\nWork already completed by earlier subtasks:\n")
		for _, d := range done {
			if d.ImplementationDetails == "" {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", d.ID, d.ImplementationDetails)
		}
	}

	if rendered := e.renderFilesToRead(st.FilesToRead); rendered != "" {
		sb.WriteString("\nRelevant files:\n")
		sb.WriteString(rendered)
	}
	return sb.String()
}

func (e *Executor) renderFilesToRead(paths []string) string {
	var sb strings.Builder
	for _, path := range paths {
		abs, err := e.pathValidator.ResolveFile(path)
		if err != nil {
			logging.Debug("skipping unreadable plan file", "path", path, "error", err)
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil || int64(len(data)) > e.cfg.Tools.MaxReadBytes {
			continue
		}
		sb.WriteString(tools.RenderFileBlock(path, string(data)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func implementationDetails(r *tools.RunResult) string {
	details := strings.TrimSpace(r.Text)
	if details == "" && len(r.ToolsUsed) > 0 {
		details = "Used tools: " + strings.Join(r.ToolsUsed, ", ")
	}
	return details
}
