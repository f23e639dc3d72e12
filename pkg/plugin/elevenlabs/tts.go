// Package elevenlabs provides speech synthesis over the ElevenLabs
// streaming API, parameterized by the session's voice identity.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/tts"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

// DefaultModel is tuned for low-latency voice turns.
const DefaultModel = "eleven_turbo_v2_5"

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	sampleRate     = 16000
	frameBytes     = sampleRate / 100 * 2 // 10 ms mono 16-bit
)

// TTS implements tts.TTS over the ElevenLabs streaming endpoint.
type TTS struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Option customizes the provider.
type Option func(*TTS)

// WithBaseURL overrides the API base, mainly for tests.
func WithBaseURL(base string) Option {
	return func(t *TTS) { t.baseURL = base }
}

// NewTTS creates an ElevenLabs TTS provider.
func NewTTS(apiKey, model string, logger *slog.Logger, opts ...Option) (*TTS, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &TTS{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type synthesizePayload struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize streams PCM from the API, chunked into 10 ms frames.
// Cancelling ctx aborts the HTTP stream, which is how barge-in stops
// the agent mid-sentence.
func (t *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	if req.Voice == "" {
		return nil, ai.NewFatalError(nil, "voice id is required")
	}

	body, err := json.Marshal(synthesizePayload{Text: req.Text, ModelID: t.model})
	if err != nil {
		return nil, ai.NewFatalError(err, "marshal synthesis request")
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=pcm_16000", t.baseURL, req.Voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ai.NewFatalError(err, "create synthesis request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, ai.NewRecoverableError(err, "synthesis request failed")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, ai.NewRecoverableError(fmt.Errorf("status %d", resp.StatusCode), "synthesis rejected")
	}

	out := make(chan rtc.AudioFrame, 16)
	go t.streamFrames(ctx, resp.Body, out)
	return out, nil
}

func (t *TTS) streamFrames(ctx context.Context, body io.ReadCloser, out chan<- rtc.AudioFrame) {
	defer close(out)
	defer body.Close()

	buf := make([]byte, frameBytes)
	for {
		_, err := io.ReadFull(body, buf)
		if err != nil {
			// EOF and short final chunks both end the stream; partial
			// frames are dropped rather than padded.
			if err != io.EOF && err != io.ErrUnexpectedEOF && ctx.Err() == nil {
				t.logger.Warn("synthesis stream ended early", slog.String("error", err.Error()))
			}
			return
		}

		data := make([]byte, frameBytes)
		copy(data, buf)
		frame := rtc.AudioFrame{
			Data:              data,
			SampleRate:        sampleRate,
			SamplesPerChannel: sampleRate / 100,
			NumChannels:       1,
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (t *TTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Streaming:          true,
		SupportedLanguages: []string{"en", "es", "fr", "de"},
		SampleRates:        []int{sampleRate},
	}
}
