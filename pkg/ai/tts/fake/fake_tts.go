// Package fake provides a silence-emitting TTS for tests.
package fake

import (
	"context"
	"sync"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/tts"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

// FakeTTS renders every request as a fixed number of silent frames and
// records what it was asked to say.
type FakeTTS struct {
	mu       sync.Mutex
	frames   int
	requests []tts.SynthesizeRequest
}

// NewFakeTTS creates a fake that emits 10 silent frames per request.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{frames: 10}
}

// WithFrameCount overrides the number of frames emitted per request.
func (f *FakeTTS) WithFrameCount(n int) *FakeTTS {
	f.frames = n
	return f
}

// Requests returns a copy of every synthesize request seen so far.
func (f *FakeTTS) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tts.SynthesizeRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := f.frames
	f.mu.Unlock()

	out := make(chan rtc.AudioFrame)
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			frame := rtc.AudioFrame{
				Data:              make([]byte, 48000/100*2),
				SampleRate:        48000,
				SamplesPerChannel: 48000 / 100,
				NumChannels:       1,
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *FakeTTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Streaming:   true,
		SampleRates: []int{48000},
	}
}
