package tools

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"google.golang.org/genai"

	"kodo/internal/client"
	"kodo/internal/logging"
)

// ErrTurnLimit is returned when the model keeps requesting tools past the
// configured turn budget.
var ErrTurnLimit = fmt.Errorf("turn limit reached without a final response")

// RunResult is the outcome of one dispatcher run.
type RunResult struct {
	// Text is the model's final text, empty when the run ended on a
	// terminal tool call.
	Text string

	// History is the full conversation, tool turns included.
	History []*genai.Content

	// ToolsUsed lists the tool names invoked during the run, in order.
	ToolsUsed []string
}

// Dispatcher drives the tool-calling loop: generate, execute the requested
// batch, feed every result back, repeat. Terminal tools (store_plan,
// store_validation_result) end the loop once they have fired successfully.
type Dispatcher struct {
	registry *Registry
	client   client.Client
	maxTurns int
}

// NewDispatcher creates a dispatcher over the given registry and client.
func NewDispatcher(registry *Registry, c client.Client, maxTurns int) *Dispatcher {
	if maxTurns <= 0 {
		maxTurns = 25
	}
	return &Dispatcher{
		registry: registry,
		client:   c,
		maxTurns: maxTurns,
	}
}

// Run executes the turn loop for one user input and returns when the model
// produces a final text response, a terminal tool fires, or the turn budget
// is exhausted.
func (d *Dispatcher) Run(ctx context.Context, systemPrompt, userInput string) (*RunResult, error) {
	d.client.SetSystemInstruction(systemPrompt)
	d.client.SetTools(d.registry.GenaiTools())

	history := []*genai.Content{
		genai.NewContentFromText(userInput, genai.RoleUser),
	}
	result := &RunResult{}

	for turn := 0; turn < d.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := d.client.Generate(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("model response error: %w", err)
		}

		history = append(history, &genai.Content{
			Role:  genai.RoleModel,
			Parts: responseParts(resp),
		})

		if len(resp.FunctionCalls) == 0 {
			result.Text = resp.Text
			result.History = history
			return result, nil
		}

		for _, fc := range resp.FunctionCalls {
			result.ToolsUsed = append(result.ToolsUsed, fc.Name)
		}

		responses, terminal := d.executeBatch(ctx, resp.FunctionCalls)

		// All results go back into history before the next generation step;
		// the model never receives partial feedback.
		parts := make([]*genai.Part, len(responses))
		for i, fr := range responses {
			parts[i] = genai.NewPartFromFunctionResponse(fr.Name, fr.Response)
			parts[i].FunctionResponse.ID = fr.ID
		}
		history = append(history, &genai.Content{
			Role:  genai.RoleUser,
			Parts: parts,
		})

		if terminal {
			result.History = history
			return result, nil
		}
	}

	return nil, ErrTurnLimit
}

// executeBatch runs one turn's batch of tool calls in parallel and reports
// whether a terminal tool fired successfully.
func (d *Dispatcher) executeBatch(ctx context.Context, calls []*genai.FunctionCall) ([]*genai.FunctionResponse, bool) {
	results := make([]*genai.FunctionResponse, len(calls))
	outcomes := make([]ToolResult, len(calls))

	if len(calls) == 1 {
		outcomes[0] = d.executeOne(ctx, calls[0])
		results[0] = toFunctionResponse(calls[0], outcomes[0])
	} else {
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func(idx int, fc *genai.FunctionCall) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						stack := make([]byte, 4096)
						n := runtime.Stack(stack, false)
						logging.Error("tool execution panic",
							"tool", fc.Name, "panic", r, "stack", string(stack[:n]))
						outcomes[idx] = Errorf("internal error: %v", r)
						results[idx] = toFunctionResponse(fc, outcomes[idx])
					}
				}()
				outcomes[idx] = d.executeOne(ctx, fc)
				results[idx] = toFunctionResponse(fc, outcomes[idx])
			}(i, call)
		}
		wg.Wait()
	}

	terminal := false
	for i, call := range calls {
		if tool, ok := d.registry.Get(call.Name); ok {
			if tt, ok := tool.(TerminalTool); ok && tt.Terminal() && outcomes[i].IsOK() {
				terminal = true
			}
		}
	}
	return results, terminal
}

// executeOne validates and executes a single tool call, mapping every
// failure into an in-band result payload.
func (d *Dispatcher) executeOne(ctx context.Context, call *genai.FunctionCall) ToolResult {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return Errorf("unknown tool: %s", call.Name)
	}

	if err := tool.Validate(call.Args); err != nil {
		return Errorf("invalid arguments: %s", err)
	}

	logging.Debug("executing tool", "tool", call.Name)
	result, err := tool.Execute(ctx, call.Args)
	if err != nil {
		return Errorf("tool %s failed: %s", call.Name, err)
	}
	return result
}

func toFunctionResponse(call *genai.FunctionCall, result ToolResult) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: result.ToMap(),
	}
}

func responseParts(resp *client.Response) []*genai.Part {
	if len(resp.Parts) > 0 {
		return resp.Parts
	}
	text := resp.Text
	if text == "" {
		text = " "
	}
	return []*genai.Part{genai.NewPartFromText(text)}
}
