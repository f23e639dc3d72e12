// Package fake provides a scripted STT for tests.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/stt"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

// FakeSTT emits one scripted final transcript per stream when the
// stream is closed, regardless of the audio pushed into it.
type FakeSTT struct {
	mu          sync.Mutex
	transcripts []string
	streams     int
}

// NewFakeSTT creates a fake that yields the given transcripts, one per
// stream in order, repeating the last one when exhausted.
func NewFakeSTT(transcripts ...string) *FakeSTT {
	if len(transcripts) == 0 {
		transcripts = []string{"hello"}
	}
	return &FakeSTT{transcripts: transcripts}
}

func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	f.mu.Lock()
	i := f.streams
	if i >= len(f.transcripts) {
		i = len(f.transcripts) - 1
	}
	f.streams++
	text := f.transcripts[i]
	f.mu.Unlock()

	return &fakeStream{
		text:   text,
		lang:   cfg.Language,
		events: make(chan stt.Event, 4),
	}, nil
}

func (f *FakeSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en"},
		SampleRates:        []int{16000, 48000},
	}
}

type fakeStream struct {
	text      string
	lang      string
	events    chan stt.Event
	closeOnce sync.Once
	frames    int
}

func (s *fakeStream) Push(frame rtc.AudioFrame) error {
	s.frames++
	// Emit an interim once some audio has arrived so interruption
	// word-count logic has something to look at.
	if s.frames == 5 {
		select {
		case s.events <- stt.Event{
			Type:      stt.EventInterim,
			Text:      s.text,
			Language:  s.lang,
			Timestamp: time.Now().UnixMilli(),
		}:
		default:
		}
	}
	return nil
}

func (s *fakeStream) Events() <-chan stt.Event {
	return s.events
}

func (s *fakeStream) CloseSend() error {
	s.closeOnce.Do(func() {
		s.events <- stt.Event{
			Type:      stt.EventFinal,
			Text:      s.text,
			Language:  s.lang,
			Timestamp: time.Now().UnixMilli(),
		}
		close(s.events)
	})
	return nil
}
