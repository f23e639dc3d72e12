// Package fake provides a scriptable VAD for tests.
package fake

import (
	"context"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/vad"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

// FakeVAD treats every run of consecutive frames as one speech segment:
// speech starts on the first frame after silence and ends after
// silenceAfter frames with no audio, reporting the accumulated duration.
// Tests that need exact event sequences can instead use Script.
type FakeVAD struct {
	silenceAfter time.Duration
	script       []vad.Event
}

// NewFakeVAD creates a fake that ends a segment after 200 ms without
// frames.
func NewFakeVAD() *FakeVAD {
	return &FakeVAD{silenceAfter: 200 * time.Millisecond}
}

// Script makes Detect ignore the audio entirely and replay the given
// events in order.
func (f *FakeVAD) Script(events ...vad.Event) *FakeVAD {
	f.script = events
	return f
}

func (f *FakeVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	out := make(chan vad.Event, 8)

	if f.script != nil {
		go func() {
			defer close(out)
			for _, ev := range f.script {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			// Drain frames so producers don't block.
			for {
				select {
				case _, ok := <-frames:
					if !ok {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}

	go func() {
		defer close(out)
		var speaking bool
		var speechStart time.Time
		timer := time.NewTimer(f.silenceAfter)
		defer timer.Stop()

		for {
			select {
			case _, ok := <-frames:
				if !ok {
					if speaking {
						out <- vad.Event{
							Type:           vad.EventSpeechEnd,
							Timestamp:      time.Now(),
							SpeechDuration: time.Since(speechStart),
						}
					}
					return
				}
				if !speaking {
					speaking = true
					speechStart = time.Now()
					select {
					case out <- vad.Event{Type: vad.EventSpeechStart, Timestamp: speechStart}:
					case <-ctx.Done():
						return
					}
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(f.silenceAfter)
			case <-timer.C:
				if speaking {
					speaking = false
					select {
					case out <- vad.Event{
						Type:           vad.EventSpeechEnd,
						Timestamp:      time.Now(),
						SpeechDuration: time.Since(speechStart),
					}:
					case <-ctx.Done():
						return
					}
				}
				timer.Reset(f.silenceAfter)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *FakeVAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{16000, 48000},
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: f.silenceAfter,
	}
}
