package tools

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const maxUserQuestions = 8

// AskUserTool lets the model pose clarifying questions to the user and
// receive their answers within the same turn loop.
type AskUserTool struct {
	prompter UserPrompter
}

// NewAskUserTool creates an AskUserTool.
func NewAskUserTool(prompter UserPrompter) *AskUserTool {
	return &AskUserTool{prompter: prompter}
}

func (t *AskUserTool) Name() string {
	return "ask_user"
}

func (t *AskUserTool) Description() string {
	return "Asks the user up to 8 clarifying questions and returns their answers. Use this when the request is ambiguous and guessing would waste work."
}

func (t *AskUserTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"questions": {
					Type:        genai.TypeArray,
					Description: "Between 1 and 8 questions for the user",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"context": {
					Type:        genai.TypeString,
					Description: "Short background shown to the user before the questions",
				},
			},
			Required: []string{"questions"},
		},
	}
}

func (t *AskUserTool) Validate(args map[string]any) error {
	questions, ok := GetStringSlice(args, "questions")
	if !ok || len(questions) == 0 {
		return NewValidationError("questions", "at least one question is required")
	}
	if len(questions) > maxUserQuestions {
		return NewValidationError("questions", fmt.Sprintf("at most %d questions are allowed", maxUserQuestions))
	}
	for i, q := range questions {
		if q == "" {
			return NewValidationError("questions", fmt.Sprintf("question %d is empty", i+1))
		}
	}
	return nil
}

func (t *AskUserTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	questions, _ := GetStringSlice(args, "questions")
	background := GetStringDefault(args, "context", "")

	if t.prompter == nil {
		return Errorf("no interactive prompter is available"), nil
	}

	answers, err := t.prompter.Ask(ctx, questions, background)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Canceled("user declined to answer"), nil
		}
		return Errorf("error collecting answers: %s", err), nil
	}

	data := make([]any, 0, len(answers))
	for _, a := range answers {
		data = append(data, map[string]any{
			"question": a.Question,
			"answer":   a.Answer,
		})
	}

	return OKWithData(
		fmt.Sprintf("Collected %d answer(s) from the user", len(answers)),
		map[string]any{"answers": data},
	), nil
}
