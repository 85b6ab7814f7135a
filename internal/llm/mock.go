package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Mock is a scripted Provider for tests and keyless local runs. Responses
// are returned in order; once the script is exhausted it ends the turn.
type Mock struct {
	mu        sync.Mutex
	Responses []*Response
	Err       error

	// Calls records every Chat invocation for assertions.
	Calls []MockCall
}

// MockCall captures the arguments of one Chat invocation.
type MockCall struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
}

var _ Provider = (*Mock)(nil)

// NewMock creates an empty Mock.
func NewMock() *Mock { return &Mock{} }

// Script appends a response to the script.
func (m *Mock) Script(resp *Response) *Mock {
	m.Responses = append(m.Responses, resp)
	return m
}

// ScriptToolCall appends a response requesting a single probe run.
func (m *Mock) ScriptToolCall(probe string, input interface{}) *Mock {
	raw, _ := json.Marshal(input)
	return m.Script(&Response{
		StopReason: StopReasonToolUse,
		ToolCalls: []ToolUseBlock{
			{ID: fmt.Sprintf("toolu_%d", len(m.Responses)+1), Name: probe, Input: raw},
		},
	})
}

// ScriptText appends a plain end-of-turn text response.
func (m *Mock) ScriptText(content string) *Mock {
	return m.Script(&Response{StopReason: StopReasonEndTurn, Content: content})
}

// Chat implements Provider.
func (m *Mock) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{SystemPrompt: systemPrompt, Messages: messages, Tools: tools})
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{StopReason: StopReasonEndTurn}, nil
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Model implements Provider.
func (m *Mock) Model() string { return "scripted" }
