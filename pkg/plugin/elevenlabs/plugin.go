package elevenlabs

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
)

// Register adds the ElevenLabs TTS provider to the given registry.
func Register(r *plugin.Registry) {
	r.Register(plugin.KindTTS, "elevenlabs", func(cfg map[string]any) (any, error) {
		apiKey, _ := cfg["api_key"].(string)
		if apiKey == "" {
			apiKey = os.Getenv("ELEVEN_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ElevenLabs API key is required (set ELEVEN_API_KEY or api_key)")
		}
		model, _ := cfg["model"].(string)
		logger, _ := cfg["logger"].(*slog.Logger)
		return NewTTS(apiKey, model, logger)
	})
}
