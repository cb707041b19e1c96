package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"kodo/internal/config"
	"kodo/internal/logging"
	"kodo/internal/ratelimit"
)

// GeminiClient wraps the Google Gemini API for the REMOTE tier.
type GeminiClient struct {
	usageCounter

	client            *genai.Client
	model             string
	temperature       float32
	maxOutputTokens   int32
	maxRetries        int
	retryDelay        time.Duration
	limiter           *ratelimit.Limiter
	tools             []*genai.Tool
	systemInstruction string
	mu                sync.RWMutex
}

// NewGeminiClient creates a new Gemini API client for the given model.
func NewGeminiClient(ctx context.Context, cfg *config.Config, model string) (*GeminiClient, error) {
	if cfg.API.GeminiKey == "" {
		return nil, fmt.Errorf("Gemini API key required: set KODO_API_KEY or api.gemini_key in config")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.API.GeminiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	maxRetries := cfg.API.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.API.Retry.RetryDelay
	if retryDelay == 0 {
		retryDelay = 1 * time.Second
	}

	return &GeminiClient{
		client:          gc,
		model:           model,
		temperature:     cfg.Model.Temperature,
		maxOutputTokens: cfg.Model.MaxOutputTokens,
		maxRetries:      maxRetries,
		retryDelay:      retryDelay,
		limiter:         ratelimit.New(cfg.API.RequestsPerMinute, 5),
	}, nil
}

// SetTools sets the tools available for function calling.
func (c *GeminiClient) SetTools(tools []*genai.Tool) {
	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
}

// SetSystemInstruction sets the system-level instruction.
func (c *GeminiClient) SetSystemInstruction(instruction string) {
	c.mu.Lock()
	c.systemInstruction = instruction
	c.mu.Unlock()
}

// Model returns the model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// CostUSD returns the running cost estimate.
func (c *GeminiClient) CostUSD() float64 {
	return costUSD(c.model, c.Usage())
}

// Close closes the client. The genai client holds no persistent connection.
func (c *GeminiClient) Close() error {
	return nil
}

// Generate sends the conversation and returns the model's next turn.
func (c *GeminiClient) Generate(ctx context.Context, history []*genai.Content) (*Response, error) {
	c.mu.RLock()
	cfg := &genai.GenerateContentConfig{
		Temperature:     Ptr(c.temperature),
		MaxOutputTokens: c.maxOutputTokens,
		Tools:           c.tools,
	}
	if c.systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.systemInstruction, genai.RoleUser)
	}
	c.mu.RUnlock()

	resp, err := c.generateWithRetry(ctx, sanitizeContents(history), cfg)
	if err != nil {
		return nil, err
	}
	return c.extractResponse(resp), nil
}

// GenerateStructured asks the model for JSON conforming to schema.
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (map[string]any, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      Ptr(c.temperature),
		MaxOutputTokens:  c.maxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.generateWithRetry(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}

	out := c.extractResponse(resp)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out.Text), &decoded); err != nil {
		return nil, fmt.Errorf("structured response is not valid JSON: %w", err)
	}
	return decoded, nil
}

func (c *GeminiClient) generateWithRetry(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			logging.Info("retrying Gemini request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}
		logging.Warn("Gemini request failed, will retry", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func (c *GeminiClient) extractResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil {
				continue
			}
			out.Parts = append(out.Parts, part)
			if part.Text != "" {
				out.Text += part.Text
			}
			if part.FunctionCall != nil {
				out.FunctionCalls = append(out.FunctionCalls, part.FunctionCall)
			}
		}
	}

	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		c.record(out.InputTokens, out.OutputTokens)
	}

	return out
}

// sanitizeContents drops empty parts and guarantees every content has at
// least one valid part, which the API rejects otherwise.
func sanitizeContents(contents []*genai.Content) []*genai.Content {
	result := make([]*genai.Content, 0, len(contents))
	for _, content := range contents {
		if content == nil {
			continue
		}
		var parts []*genai.Part
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil || part.FunctionResponse != nil || part.Text != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			parts = []*genai.Part{genai.NewPartFromText(" ")}
		}
		result = append(result, &genai.Content{Role: content.Role, Parts: parts})
	}
	if len(result) == 0 {
		result = []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(" ")},
		}}
	}
	return result
}

// isRetryableError reports whether the error should trigger a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(errStr, code) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"UNAVAILABLE",
		"RESOURCE_EXHAUSTED",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
