// Package validation checks completed plans against their validation
// instructions and produces a structured pass/fail verdict.
package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"kodo/internal/client"
	"kodo/internal/config"
	"kodo/internal/logging"
	"kodo/internal/plan"
	"kodo/internal/security"
	"kodo/internal/tools"
)

const validationSystemPrompt = `You are a meticulous reviewer verifying that completed coding work satisfies its validation instructions.

Inspect the project with the available tools and run checks where the instructions call for them. Judge only what the instructions ask for; do not invent extra requirements.

When your review is complete, call store_validation_result exactly once with the verdict. A FAILED verdict must name the failed subtasks and suggest concrete fixes.`

// ErrNoVerdict is returned when the model finishes without storing a verdict.
var ErrNoVerdict = errors.New("validation session ended without a verdict")

// Engine validates executed plans.
type Engine struct {
	router        *client.Router
	pathValidator *security.PathValidator
	gate          *security.CommandGate
	cfg           config.ValidationConfig
	toolsCfg      config.ToolsConfig
	workDir       string
}

// NewEngine creates a validation Engine.
func NewEngine(router *client.Router, validator *security.PathValidator, gate *security.CommandGate, cfg config.ValidationConfig, toolsCfg config.ToolsConfig, workDir string) *Engine {
	return &Engine{
		router:        router,
		pathValidator: validator,
		gate:          gate,
		cfg:           cfg,
		toolsCfg:      toolsCfg,
		workDir:       workDir,
	}
}

// Validate reviews the executed plan. Plans without validation instructions
// pass trivially; otherwise the model is driven to a stored verdict.
func (e *Engine) Validate(ctx context.Context, p *plan.TaskPlan) (*plan.ValidationResult, error) {
	if strings.TrimSpace(p.ValidationInstructions) == "" {
		return &plan.ValidationResult{
			Status:  plan.ValidationPassed,
			Message: "No validation instructions were provided.",
		}, nil
	}

	transcript := e.runAutoCommands(ctx)

	store := plan.NewStoreValidationTool()
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewListFilesTool(e.pathValidator))
	registry.MustRegister(tools.NewReadFilesTool(e.pathValidator, e.toolsCfg.MaxReadBytes))
	registry.MustRegister(tools.NewRunProcessTool(e.workDir, e.gate, nil, e.cfg.CommandTimeout, e.toolsCfg.MaxOutputChars))
	registry.MustRegister(store)

	dispatcher := tools.NewDispatcher(registry, e.router.Validation(), e.cfg.MaxTurns)

	if _, err := dispatcher.Run(ctx, validationSystemPrompt, buildValidationInput(p, transcript)); err != nil {
		return nil, err
	}

	result := store.Result()
	if result == nil {
		return nil, ErrNoVerdict
	}
	p.ValidationResult = result
	return result, nil
}

// runAutoCommands executes the configured trusted validation commands and
// returns a transcript for the prompt. Command failures are part of the
// evidence, not errors.
func (e *Engine) runAutoCommands(ctx context.Context) string {
	if len(e.cfg.AutoCommands) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, command := range e.cfg.AutoCommands {
		if e.gate.Check(command).Decision != security.DecisionTrusted {
			logging.Warn("skipping untrusted auto-validation command", "command", command)
			continue
		}

		output, exitCode, err := e.runCommand(ctx, command)
		fmt.Fprintf(&sb, "$ %s\n", command)
		if err != nil {
			fmt.Fprintf(&sb, "[failed to run: %s]\n\n", err)
			continue
		}
		fmt.Fprintf(&sb, "%s\n(exit code %d)\n\n", output, exitCode)
	}
	return sb.String()
}

func (e *Engine) runCommand(ctx context.Context, command string) (string, int, error) {
	timeout := e.cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = e.workDir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if max := e.toolsCfg.MaxOutputChars; max > 0 && len(output) > max {
		output = output[:max] + "\n... [output truncated]"
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return output, -1, fmt.Errorf("timed out after %s", timeout)
	case errors.As(err, &exitErr):
		return output, exitErr.ExitCode(), nil
	case err != nil:
		return output, -1, err
	}
	return output, 0, nil
}

func buildValidationInput(p *plan.TaskPlan, transcript string) string {
	var sb strings.Builder
	sb.WriteString("Original request:\n")
	sb.WriteString(p.OriginalRequest)
	sb.WriteString("\n\nValidation instructions:\n")
	sb.WriteString(p.ValidationInstructions)

	sb.WriteString("\n\nCompleted subtasks:\n")
	for _, st := range p.OrderedSubtasks() {
		fmt.Fprintf(&sb, "- %s: %s\n", st.ID, st.Specification)
		if st.ImplementationDetails != "" {
			fmt.Fprintf(&sb, "  Outcome: %s\n", st.ImplementationDetails)
		}
	}

	if transcript != "" {
		sb.WriteString("\nAutomatic check output:\n")
		sb.WriteString(transcript)
	}
	return sb.String()
}
