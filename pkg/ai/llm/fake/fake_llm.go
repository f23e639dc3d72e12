// Package fake provides a scripted LLM for tests.
package fake

import (
	"context"
	"sync"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/llm"
)

// FakeLLM replays scripted responses in order. A scripted tool call is
// returned once before the text responses, mimicking the model deciding
// to invoke a tool and then answering with its result in hand.
type FakeLLM struct {
	mu        sync.Mutex
	responses []string
	toolCall  *llm.ToolCall
	calls     int

	// Requests records every request for assertions.
	Requests []llm.ChatRequest
}

// NewFakeLLM creates a fake that cycles through the given responses.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{"Happy to help with that."}
	}
	return &FakeLLM{responses: responses}
}

// WithToolCall scripts a tool call to be returned on the first request.
func (f *FakeLLM) WithToolCall(name, arguments string) *FakeLLM {
	f.toolCall = &llm.ToolCall{ID: "call_1", Name: name, Arguments: arguments}
	return f
}

func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)

	if f.toolCall != nil && f.calls == 0 {
		f.calls++
		return llm.ChatResponse{
			Message:      llm.Message{Role: llm.RoleAssistant},
			ToolCall:     f.toolCall,
			FinishReason: "tool_calls",
		}, nil
	}

	text := f.responses[f.calls%len(f.responses)]
	f.calls++
	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		TokensUsed:   len(text),
		FinishReason: "stop",
	}, nil
}

func (f *FakeLLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsTools:      true,
		MaxContextTokens:   4096,
		SupportsSystemRole: true,
	}
}
