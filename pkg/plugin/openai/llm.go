// Package openai provides the GPT-4o-mini language model used to drive
// the conversation.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/llm"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel balances latency and cost for voice turns.
const DefaultModel = openai.GPT4oMini

// LLM implements llm.LLM over the OpenAI chat completions API.
type LLM struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewLLM creates an OpenAI-backed LLM.
func NewLLM(apiKey, model string, logger *slog.Logger) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{client: openai.NewClient(apiKey), model: model, logger: logger}, nil
}

// Chat performs one completion, surfacing the first tool call when the
// model makes one.
func (l *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == llm.RoleTool {
			msg.Name = m.Name
		}
		messages[i] = msg
	}

	var tools []openai.Tool
	for _, fn := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
		})
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Tools:       tools,
	})
	if err != nil {
		return llm.ChatResponse{}, ai.NewRecoverableError(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, ai.NewRecoverableError(nil, "no completion choices returned")
	}

	choice := resp.Choices[0]
	out := llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}

	if len(choice.Message.ToolCalls) > 0 {
		// Tool calls are serialized per turn; the model gets one call,
		// its result, then continues.
		call := choice.Message.ToolCalls[0]
		out.ToolCall = &llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}

	l.logger.Debug("chat completion",
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.String("finish_reason", out.FinishReason),
		slog.Bool("tool_call", out.ToolCall != nil))

	return out, nil
}

func (l *LLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsTools:      true,
		SupportsStreaming:  false,
		MaxContextTokens:   128000,
		SupportsSystemRole: true,
	}
}
