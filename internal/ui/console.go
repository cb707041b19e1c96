// Package ui is the interactive terminal surface: the input prompt,
// rendered output, and the approval gate for mutations and commands.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"kodo/internal/highlight"
	"kodo/internal/logging"
	"kodo/internal/tools"
)

// Console reads from stdin and writes styled output to stdout.
type Console struct {
	in          *bufio.Reader
	out         io.Writer
	renderer    *glamour.TermRenderer
	highlighter *highlight.Highlighter
	autoApprove bool
}

// NewConsole creates a Console. autoApprove skips every interactive
// approval gate; it is meant for scripted runs.
func NewConsole(autoApprove bool) *Console {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logging.Debug("markdown renderer unavailable", "error", err)
	}
	return &Console{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		renderer:    renderer,
		highlighter: highlight.New(""),
		autoApprove: autoApprove,
	}
}

// ReadInput prompts and reads one line. Returns io.EOF when stdin closes.
func (c *Console) ReadInput(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, promptStyle.Render(prompt))
	line, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(line) != "" {
			return line, nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Show prints plain text.
func (c *Console) Show(text string) {
	fmt.Fprintln(c.out, text)
}

// ShowSuccess prints text styled as a good outcome.
func (c *Console) ShowSuccess(text string) {
	fmt.Fprintln(c.out, successStyle.Render(text))
}

// ShowError prints text styled as a failure.
func (c *Console) ShowError(text string) {
	fmt.Fprintln(c.out, errorStyle.Render(text))
}

// ShowMarkdown renders markdown; when the renderer is unavailable the raw
// markdown is printed instead.
func (c *Console) ShowMarkdown(md string) {
	if c.renderer == nil {
		fmt.Fprintln(c.out, md)
		return
	}
	rendered, err := c.renderer.Render(md)
	if err != nil {
		fmt.Fprintln(c.out, md)
		return
	}
	fmt.Fprint(c.out, rendered)
}

// Confirm asks a yes/no question. Enter defaults to yes.
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	for {
		answer, err := c.ReadInput(ctx, prompt+" [Y/n] ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "", "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			c.Show(mutedStyle.Render("Please answer y or n."))
		}
	}
}

// ApproveMutation shows the proposed change as a diff and asks for consent.
func (c *Console) ApproveMutation(ctx context.Context, req tools.ApprovalRequest) (bool, error) {
	if c.autoApprove {
		return true, nil
	}

	if req.IsNewFile {
		fmt.Fprintln(c.out, warningStyle.Render(fmt.Sprintf("New file: %s", req.Path)))
		fmt.Fprintln(c.out, c.highlighter.HighlightFile(req.NewContent, req.Path))
	} else {
		fmt.Fprintln(c.out, warningStyle.Render(fmt.Sprintf("Proposed change to %s (%s):", req.Path, req.Tool)))
		fmt.Fprintln(c.out, unifiedDiff(req.Path, req.OldContent, req.NewContent))
	}
	return c.Confirm(ctx, "Apply this change?")
}

// ApproveCommand asks whether an untrusted shell command may run.
func (c *Console) ApproveCommand(ctx context.Context, command, reason string) (bool, error) {
	if c.autoApprove {
		return true, nil
	}
	fmt.Fprintln(c.out, warningStyle.Render("The model wants to run:"))
	fmt.Fprintln(c.out, "  "+c.highlighter.Highlight(command, "bash"))
	if reason != "" {
		fmt.Fprintln(c.out, mutedStyle.Render("  ("+reason+")"))
	}
	return c.Confirm(ctx, "Run it?")
}

// Ask relays the model's questions to the user one at a time.
func (c *Console) Ask(ctx context.Context, questions []string, background string) ([]tools.Answer, error) {
	if background != "" {
		c.Show(mutedStyle.Render(background))
	}

	answers := make([]tools.Answer, 0, len(questions))
	for i, q := range questions {
		fmt.Fprintln(c.out, promptStyle.Render(fmt.Sprintf("Question %d/%d:", i+1, len(questions))), q)
		reply, err := c.ReadInput(ctx, "> ")
		if err != nil {
			return nil, err
		}
		answers = append(answers, tools.Answer{Question: q, Answer: reply})
	}
	return answers, nil
}
