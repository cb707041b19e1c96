package client

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// Client defines the interface for AI model interactions.
// One Client wraps one concrete model; routing between tiers is the
// Router's job.
type Client interface {
	// Generate sends the conversation and returns the model's next turn.
	// The model may request tool invocations via FunctionCalls; the caller
	// delivers all results back before calling Generate again.
	Generate(ctx context.Context, history []*genai.Content) (*Response, error)

	// GenerateStructured asks the model for output conforming to schema
	// and returns the decoded object.
	GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (map[string]any, error)

	// SetTools sets the tools available for the model to call.
	SetTools(tools []*genai.Tool)

	// SetSystemInstruction sets the system-level instruction, passed via the
	// API's native system parameter rather than injected into history.
	SetSystemInstruction(instruction string)

	// Model returns the model name.
	Model() string

	// Usage returns running token totals for this client.
	Usage() Usage

	// CostUSD returns the running cost estimate for this client.
	CostUSD() float64

	// Close closes the client connection.
	Close() error
}

// Response represents a complete response from the model.
type Response struct {
	// Text is the accumulated text content.
	Text string

	// FunctionCalls contains all tool invocations the model requested.
	FunctionCalls []*genai.FunctionCall

	// Parts are the original response parts, preserved for history.
	Parts []*genai.Part

	// InputTokens and OutputTokens come from API usage metadata.
	InputTokens  int
	OutputTokens int
}

// Usage holds running token totals.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// usageCounter accumulates token usage across requests. Embedded by the
// concrete clients.
type usageCounter struct {
	mu    sync.Mutex
	usage Usage
}

func (c *usageCounter) record(in, out int) {
	c.mu.Lock()
	c.usage.InputTokens += in
	c.usage.OutputTokens += out
	c.mu.Unlock()
}

// Usage returns the accumulated token totals.
func (c *usageCounter) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// TextHistory wraps a single user message as a conversation history.
func TextHistory(text string) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
}
