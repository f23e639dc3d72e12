// Package fake registers the test doubles as ordinary providers so the
// pipeline can be assembled without network credentials, e.g. for dry
// runs and integration tests.
package fake

import (
	"github.com/truvo-ai/voice-agent-go/pkg/plugin"

	llmfake "github.com/truvo-ai/voice-agent-go/pkg/ai/llm/fake"
	sttfake "github.com/truvo-ai/voice-agent-go/pkg/ai/stt/fake"
	ttsfake "github.com/truvo-ai/voice-agent-go/pkg/ai/tts/fake"
	vadfake "github.com/truvo-ai/voice-agent-go/pkg/ai/vad/fake"
)

// Register adds fake providers under the name "fake" for every kind.
func Register(r *plugin.Registry) {
	r.Register(plugin.KindSTT, "fake", func(cfg map[string]any) (any, error) {
		if texts, ok := cfg["transcripts"].([]string); ok {
			return sttfake.NewFakeSTT(texts...), nil
		}
		return sttfake.NewFakeSTT(), nil
	})
	r.Register(plugin.KindTTS, "fake", func(cfg map[string]any) (any, error) {
		return ttsfake.NewFakeTTS(), nil
	})
	r.Register(plugin.KindLLM, "fake", func(cfg map[string]any) (any, error) {
		if texts, ok := cfg["responses"].([]string); ok {
			return llmfake.NewFakeLLM(texts...), nil
		}
		return llmfake.NewFakeLLM(), nil
	})
	r.Register(plugin.KindVAD, "fake", func(cfg map[string]any) (any, error) {
		return vadfake.NewFakeVAD(), nil
	})
}
