package openai

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
)

// Register adds the OpenAI providers to the given registry.
func Register(r *plugin.Registry) {
	r.Register(plugin.KindLLM, "openai", func(cfg map[string]any) (any, error) {
		apiKey, _ := cfg["api_key"].(string)
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or api_key)")
		}
		model, _ := cfg["model"].(string)
		logger, _ := cfg["logger"].(*slog.Logger)
		return NewLLM(apiKey, model, logger)
	})
}
