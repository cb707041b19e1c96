package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/genai"

	"kodo/internal/logging"
	"kodo/internal/security"
)

// RunProcessTool executes shell commands in the project directory. Commands
// are screened by the command gate: blocked commands never run, trusted
// prefixes run immediately, and everything else needs interactive approval.
type RunProcessTool struct {
	workDir        string
	gate           *security.CommandGate
	approver       Approver
	timeout        time.Duration
	maxOutputChars int
}

// NewRunProcessTool creates a RunProcessTool.
func NewRunProcessTool(workDir string, gate *security.CommandGate, approver Approver, timeout time.Duration, maxOutputChars int) *RunProcessTool {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if maxOutputChars <= 0 {
		maxOutputChars = 30000
	}
	return &RunProcessTool{
		workDir:        workDir,
		gate:           gate,
		approver:       approver,
		timeout:        timeout,
		maxOutputChars: maxOutputChars,
	}
}

func (t *RunProcessTool) Name() string {
	return "run_process"
}

func (t *RunProcessTool) Description() string {
	return "Runs a shell command in the project directory and returns its combined output and exit code. Long-running commands are killed when the timeout elapses."
}

func (t *RunProcessTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The shell command to run",
				},
				"timeout": {
					Type:        genai.TypeInteger,
					Description: "Optional timeout in seconds; capped at the configured maximum",
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *RunProcessTool) Validate(args map[string]any) error {
	cmd, ok := GetString(args, "command")
	if !ok || strings.TrimSpace(cmd) == "" {
		return NewValidationError("command", "is required")
	}
	return nil
}

func (t *RunProcessTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := GetString(args, "command")
	command = strings.TrimSpace(command)

	gate := t.gate.Check(command)
	switch gate.Decision {
	case security.DecisionBlocked:
		logging.Warn("blocked command", "command", command, "reason", gate.Reason)
		return Errorf("command blocked: %s", gate.Reason), nil
	case security.DecisionAsk:
		if t.approver == nil {
			return Errorf("command %q is not on the trusted list and no approver is available", command), nil
		}
		approved, err := t.approver.ApproveCommand(ctx, command, gate.Reason)
		if err != nil {
			return Errorf("approval error: %s", err), nil
		}
		if !approved {
			return Canceled("command rejected by user"), nil
		}
	}

	timeout := t.timeout
	if secs, ok := GetInt(args, "timeout"); ok && secs > 0 {
		if requested := time.Duration(secs) * time.Second; requested < timeout {
			timeout = requested
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = t.workDir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	elapsed := time.Since(start)

	output := truncateOutput(buf.String(), t.maxOutputChars)
	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return ErrorWithData(
				fmt.Sprintf("command timed out after %s", timeout),
				map[string]any{"output": output},
			), nil
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return Errorf("failed to run command: %s", runErr), nil
		}
	}

	logging.Debug("ran command", "command", command, "exit_code", exitCode, "duration", elapsed)

	msg := fmt.Sprintf("Command finished with exit code %d in %s.\n%s", exitCode, elapsed.Round(time.Millisecond), output)
	return OKWithData(msg, map[string]any{
		"exit_code": exitCode,
		"output":    output,
	}), nil
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n... [output truncated, %d characters omitted]", len(s)-max)
}
