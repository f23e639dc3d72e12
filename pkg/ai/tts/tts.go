// Package tts defines the speech-synthesis contract.
package tts

import (
	"context"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// SynthesizeRequest is one utterance to render.
type SynthesizeRequest struct {
	Text     string
	Voice    string // provider voice identifier
	Language string
	Speed    float32
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	Streaming          bool
	SupportedLanguages []string
	SampleRates        []int
	SupportsSpeed      bool
}

// TTS renders text to audio frames.
type TTS interface {
	// Synthesize converts text to audio. The returned channel closes
	// when synthesis completes; cancelling ctx stops synthesis promptly,
	// which is how barge-in cuts the agent off mid-sentence.
	Synthesize(ctx context.Context, req SynthesizeRequest) (<-chan rtc.AudioFrame, error)

	Capabilities() Capabilities
}
