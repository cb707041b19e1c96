package tools

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"kodo/internal/client"
)

// scriptedClient replays a fixed sequence of responses and records the
// history passed to each Generate call.
type scriptedClient struct {
	responses []*client.Response
	histories [][]*genai.Content
	calls     int
}

func (c *scriptedClient) Generate(_ context.Context, history []*genai.Content) (*client.Response, error) {
	snapshot := make([]*genai.Content, len(history))
	copy(snapshot, history)
	c.histories = append(c.histories, snapshot)

	if c.calls >= len(c.responses) {
		return &client.Response{Text: "done"}, nil
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func (c *scriptedClient) GenerateStructured(context.Context, string, *genai.Schema) (map[string]any, error) {
	return nil, nil
}

func (c *scriptedClient) SetTools([]*genai.Tool)      {}
func (c *scriptedClient) SetSystemInstruction(string) {}
func (c *scriptedClient) Model() string               { return "scripted" }
func (c *scriptedClient) Usage() client.Usage         { return client.Usage{} }
func (c *scriptedClient) CostUSD() float64            { return 0 }
func (c *scriptedClient) Close() error                { return nil }

// countingTool records how many times it ran and returns a canned result.
type countingTool struct {
	name     string
	terminal bool
	result   ToolResult
	runs     atomic.Int64
}

func (t *countingTool) Name() string        { return t.name }
func (t *countingTool) Description() string { return t.name }
func (t *countingTool) Terminal() bool      { return t.terminal }

func (t *countingTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:       t.name,
		Parameters: &genai.Schema{Type: genai.TypeObject},
	}
}

func (t *countingTool) Validate(map[string]any) error { return nil }

func (t *countingTool) Execute(context.Context, map[string]any) (ToolResult, error) {
	t.runs.Add(1)
	return t.result, nil
}

func toolCallResponse(calls ...*genai.FunctionCall) *client.Response {
	return &client.Response{FunctionCalls: calls}
}

func TestDispatcherEndsOnFinalText(t *testing.T) {
	c := &scriptedClient{responses: []*client.Response{
		{Text: "all set"},
	}}
	d := NewDispatcher(NewRegistry(), c, 5)

	res, err := d.Run(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "all set", res.Text)
	assert.Empty(t, res.ToolsUsed)
	assert.Len(t, res.History, 2)
}

func TestDispatcherDeliversWholeBatchBeforeNextTurn(t *testing.T) {
	reg := NewRegistry()
	echo := &countingTool{name: "echo", result: OK("echoed")}
	require.NoError(t, reg.Register(echo))

	c := &scriptedClient{responses: []*client.Response{
		toolCallResponse(
			&genai.FunctionCall{ID: "1", Name: "echo"},
			&genai.FunctionCall{ID: "2", Name: "echo"},
			&genai.FunctionCall{ID: "3", Name: "echo"},
		),
		{Text: "finished"},
	}}
	d := NewDispatcher(reg, c, 5)

	res, err := d.Run(context.Background(), "sys", "go")
	require.NoError(t, err)
	assert.Equal(t, int64(3), echo.runs.Load())
	assert.Equal(t, []string{"echo", "echo", "echo"}, res.ToolsUsed)

	// The second generation sees exactly one user turn carrying all three
	// results, in call order.
	require.Len(t, c.histories, 2)
	second := c.histories[1]
	feedback := second[len(second)-1]
	assert.Equal(t, genai.RoleUser, feedback.Role)
	require.Len(t, feedback.Parts, 3)
	for i, id := range []string{"1", "2", "3"} {
		fr := feedback.Parts[i].FunctionResponse
		require.NotNil(t, fr)
		assert.Equal(t, id, fr.ID)
	}
}

func TestDispatcherStopsAfterTerminalToolSucceeds(t *testing.T) {
	reg := NewRegistry()
	store := &countingTool{name: "store", terminal: true, result: OK("stored")}
	require.NoError(t, reg.Register(store))

	c := &scriptedClient{responses: []*client.Response{
		toolCallResponse(&genai.FunctionCall{ID: "1", Name: "store"}),
		{Text: "should never be requested"},
	}}
	d := NewDispatcher(reg, c, 5)

	res, err := d.Run(context.Background(), "sys", "go")
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, int64(1), store.runs.Load())
}

func TestDispatcherKeepsGoingWhenTerminalToolFails(t *testing.T) {
	reg := NewRegistry()
	store := &countingTool{name: "store", terminal: true, result: Errorf("bad args")}
	require.NoError(t, reg.Register(store))

	c := &scriptedClient{responses: []*client.Response{
		toolCallResponse(&genai.FunctionCall{ID: "1", Name: "store"}),
		{Text: "retrying over text"},
	}}
	d := NewDispatcher(reg, c, 5)

	res, err := d.Run(context.Background(), "sys", "go")
	require.NoError(t, err)
	assert.Equal(t, "retrying over text", res.Text)
	assert.Equal(t, 2, c.calls)
}

func TestDispatcherReportsUnknownToolInBand(t *testing.T) {
	c := &scriptedClient{responses: []*client.Response{
		toolCallResponse(&genai.FunctionCall{ID: "1", Name: "no_such_tool"}),
		{Text: "ok"},
	}}
	d := NewDispatcher(NewRegistry(), c, 5)

	_, err := d.Run(context.Background(), "sys", "go")
	require.NoError(t, err)

	feedback := c.histories[1][len(c.histories[1])-1]
	fr := feedback.Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "error", fr.Response["status"])
	assert.Contains(t, fr.Response["message"], "unknown tool")
}

func TestDispatcherTurnLimit(t *testing.T) {
	reg := NewRegistry()
	echo := &countingTool{name: "echo", result: OK("echoed")}
	require.NoError(t, reg.Register(echo))

	loop := toolCallResponse(&genai.FunctionCall{ID: "1", Name: "echo"})
	c := &scriptedClient{responses: []*client.Response{loop, loop, loop}}
	d := NewDispatcher(reg, c, 3)

	_, err := d.Run(context.Background(), "sys", "go")
	assert.ErrorIs(t, err, ErrTurnLimit)
}
