// Package llm abstracts the language model used to drive probe selection
// during root cause analysis. The model only ever chooses which probe to run
// next and summarizes evidence; diagnosis tags are resolved deterministically
// outside this package.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the orchestration conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolUse is set on assistant turns that request a probe run.
	ToolUse []ToolUseBlock `json:"tool_use,omitempty"`

	// ToolResult is set on user turns carrying probe evidence back.
	ToolResult []ToolResultBlock `json:"tool_result,omitempty"`
}

// ToolUseBlock is a probe invocation requested by the model.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultBlock carries one probe's evidence back to the model.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes one probe to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonError     StopReason = "error"
)

// Usage contains token accounting for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the model's reply to one Chat call.
type Response struct {
	Content    string
	ToolCalls  []ToolUseBlock
	StopReason StopReason
	Usage      Usage
}

// Provider is the model interface. Implementations must be safe for
// concurrent use; the orchestrator fans out across anomalies.
type Provider interface {
	// Chat sends the conversation and returns the complete response.
	Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error)

	// Name returns the provider name for logging and metrics.
	Name() string

	// Model returns the model identifier in use.
	Model() string
}

// Config carries common provider settings.
type Config struct {
	Model     string
	MaxTokens int
	// Temperature of 0 keeps probe selection reproducible.
	Temperature float64
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Model:       "claude-sonnet-4-5-20250929",
		MaxTokens:   4096,
		Temperature: 0.0,
	}
}
