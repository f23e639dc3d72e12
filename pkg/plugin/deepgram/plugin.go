package deepgram

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
)

// Register adds the Deepgram STT provider to the given registry.
func Register(r *plugin.Registry) {
	r.Register(plugin.KindSTT, "deepgram", func(cfg map[string]any) (any, error) {
		apiKey, _ := cfg["api_key"].(string)
		if apiKey == "" {
			apiKey = os.Getenv("DEEPGRAM_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("Deepgram API key is required (set DEEPGRAM_API_KEY or api_key)")
		}
		model, _ := cfg["model"].(string)
		logger, _ := cfg["logger"].(*slog.Logger)
		return NewSTT(apiKey, model, logger)
	})
}
