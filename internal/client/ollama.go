package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"kodo/internal/config"
	"kodo/internal/logging"
)

// OllamaClient implements Client for a local Ollama server, serving the
// LOCAL tier and the best-effort pre-planning pass.
type OllamaClient struct {
	usageCounter

	client            *api.Client
	model             string
	temperature       float32
	maxTokens         int32
	maxRetries        int
	retryDelay        time.Duration
	tools             []*genai.Tool
	systemInstruction string
	mu                sync.RWMutex
}

// authTransport adds an Authorization header for remote Ollama servers.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(clone)
}

// NewOllamaClient creates a client for the given local model.
func NewOllamaClient(cfg *config.Config, model string) (*OllamaClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	base := cfg.API.OllamaBaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}

	timeout := cfg.API.Retry.HTTPTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.API.OllamaKey != "" {
		httpClient.Transport = &authTransport{base: http.DefaultTransport, apiKey: cfg.API.OllamaKey}
	}

	maxRetries := cfg.API.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.API.Retry.RetryDelay
	if retryDelay == 0 {
		retryDelay = 1 * time.Second
	}

	maxTokens := cfg.Model.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	return &OllamaClient{
		client:      api.NewClient(baseURL, httpClient),
		model:       model,
		temperature: cfg.Model.Temperature,
		maxTokens:   maxTokens,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
	}, nil
}

// SetTools sets the tools available for the model to call.
func (c *OllamaClient) SetTools(tools []*genai.Tool) {
	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
}

// SetSystemInstruction sets the system-level instruction.
func (c *OllamaClient) SetSystemInstruction(instruction string) {
	c.mu.Lock()
	c.systemInstruction = instruction
	c.mu.Unlock()
}

// Model returns the model name.
func (c *OllamaClient) Model() string {
	return c.model
}

// CostUSD always reports zero: local inference has no per-token price.
func (c *OllamaClient) CostUSD() float64 {
	return 0
}

// Close closes the client. The HTTP client holds no persistent connection.
func (c *OllamaClient) Close() error {
	return nil
}

// Ping checks whether the Ollama server is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	// The SDK has no explicit ping; List serves as a healthcheck.
	_, err := c.client.List(ctx)
	return err
}

// Generate sends the conversation and returns the model's next turn.
func (c *OllamaClient) Generate(ctx context.Context, history []*genai.Content) (*Response, error) {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: c.convertHistory(history),
		Stream:   Ptr(false),
		Options: map[string]any{
			"num_predict": c.maxTokens,
		},
	}
	if c.temperature > 0 {
		req.Options["temperature"] = c.temperature
	}

	c.mu.RLock()
	if len(c.tools) > 0 {
		req.Tools = c.convertTools()
	}
	c.mu.RUnlock()

	return c.chatWithRetry(ctx, req)
}

// GenerateStructured asks the model for JSON output. Ollama enforces JSON
// via the format parameter; the schema is folded into the prompt.
func (c *OllamaClient) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (map[string]any, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	full := fmt.Sprintf("%s\n\nRespond with a single JSON object matching this schema:\n%s", prompt, schemaJSON)
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: []api.Message{{Role: "user", Content: full}},
		Stream:   Ptr(false),
		Format:   json.RawMessage(`"json"`),
		Options: map[string]any{
			"num_predict": c.maxTokens,
		},
	}

	resp, err := c.chatWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(resp.Text), &decoded); err != nil {
		return nil, fmt.Errorf("structured response is not valid JSON: %w", err)
	}
	return decoded, nil
}

func (c *OllamaClient) chatWithRetry(ctx context.Context, req *api.ChatRequest) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			logging.Info("retrying Ollama request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return nil, wrapOllamaError(err)
		}
		logging.Warn("Ollama request failed, will retry", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, wrapOllamaError(lastErr))
}

func (c *OllamaClient) chat(ctx context.Context, req *api.ChatRequest) (*Response, error) {
	out := &Response{}

	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.Text += resp.Message.Content
		for i, tc := range resp.Message.ToolCalls {
			out.FunctionCalls = append(out.FunctionCalls, convertToolCall(tc, i))
		}
		if resp.Done {
			out.InputTokens = resp.PromptEvalCount
			out.OutputTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Text != "" {
		out.Parts = append(out.Parts, genai.NewPartFromText(out.Text))
	}
	for _, fc := range out.FunctionCalls {
		out.Parts = append(out.Parts, &genai.Part{FunctionCall: fc})
	}

	c.record(out.InputTokens, out.OutputTokens)
	return out, nil
}

// convertHistory converts genai conversation history to Ollama messages.
func (c *OllamaClient) convertHistory(history []*genai.Content) []api.Message {
	messages := make([]api.Message, 0, len(history)+1)

	c.mu.RLock()
	sys := c.systemInstruction
	c.mu.RUnlock()
	if sys != "" {
		messages = append(messages, api.Message{Role: "system", Content: sys})
	}

	for _, content := range history {
		if content == nil {
			continue
		}

		role := "user"
		if content.Role == genai.RoleModel {
			role = "assistant"
		}

		var textParts []string
		var toolCalls []api.ToolCall
		var toolResults []api.Message

		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
			if part.FunctionCall != nil {
				args := api.NewToolCallFunctionArguments()
				for k, v := range part.FunctionCall.Args {
					args.Set(k, v)
				}
				toolCalls = append(toolCalls, api.ToolCall{
					ID: part.FunctionCall.ID,
					Function: api.ToolCallFunction{
						Name:      part.FunctionCall.Name,
						Arguments: args,
					},
				})
			}
			if part.FunctionResponse != nil {
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				toolResults = append(toolResults, api.Message{
					Role:       "tool",
					Content:    string(payload),
					ToolName:   part.FunctionResponse.Name,
					ToolCallID: part.FunctionResponse.ID,
				})
			}
		}

		if len(textParts) > 0 || len(toolCalls) > 0 {
			messages = append(messages, api.Message{
				Role:      role,
				Content:   strings.Join(textParts, "\n"),
				ToolCalls: toolCalls,
			})
		}
		messages = append(messages, toolResults...)
	}

	return messages
}

// convertTools converts genai tool declarations to the Ollama format.
func (c *OllamaClient) convertTools() []api.Tool {
	var tools []api.Tool
	for _, tool := range c.tools {
		for _, decl := range tool.FunctionDeclarations {
			params := api.ToolFunctionParameters{
				Type:       "object",
				Properties: api.NewToolPropertiesMap(),
			}
			if decl.Parameters != nil {
				params.Required = decl.Parameters.Required
				for name, propSchema := range decl.Parameters.Properties {
					prop := api.ToolProperty{
						Description: propSchema.Description,
					}
					if propSchema.Type != "" {
						prop.Type = api.PropertyType{strings.ToLower(string(propSchema.Type))}
					}
					if len(propSchema.Enum) > 0 {
						enumVals := make([]any, len(propSchema.Enum))
						for i, v := range propSchema.Enum {
							enumVals[i] = v
						}
						prop.Enum = enumVals
					}
					params.Properties.Set(name, prop)
				}
			}

			tools = append(tools, api.Tool{
				Type: "function",
				Function: api.ToolFunction{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return tools
}

func convertToolCall(tc api.ToolCall, index int) *genai.FunctionCall {
	id := tc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", index)
	}
	return &genai.FunctionCall{
		ID:   id,
		Name: tc.Function.Name,
		Args: tc.Function.Arguments.ToMap(),
	}
}

func wrapOllamaError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("cannot reach Ollama server (is it running?): %w", err)
	}
	return err
}
