// Package llm defines the chat-completion contract the session uses to
// drive the conversation, including function-tool calls.
package llm

import (
	"context"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is a single entry in the conversation history.
type Message struct {
	Role    MessageRole
	Content string
	Name    string // tool name for RoleTool messages
}

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded arguments
}

// FunctionDefinition describes one callable tool to the model.
type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ChatRequest is a single completion request. Tools lists the functions
// the model may call this turn; the session presents them in a stable
// order so behavior is reproducible across runs.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	Tools       []FunctionDefinition
}

// ChatResponse is the model's reply. ToolCall is non-nil when the model
// chose to invoke a tool instead of (or before) answering in text.
type ChatResponse struct {
	Message      Message
	ToolCall     *ToolCall
	TokensUsed   int
	FinishReason string
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	SupportsTools      bool
	SupportsStreaming  bool
	MaxContextTokens   int
	SupportsSystemRole bool
}

// LLM is the language-model capability consumed by the pipeline.
type LLM interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Capabilities() Capabilities
}
