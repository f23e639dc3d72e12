// Package energy provides a lightweight voice activity detector based
// on short-term signal energy. It has no model weights to download, so
// Prewarm is effectively free, but it is kept so the provider satisfies
// the same warm-up contract as heavier detectors.
package energy

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/vad"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

// Defaults tuned for 16-bit PCM telephony-style input.
const (
	// DefaultThreshold is the RMS level above which a frame counts as
	// speech, normalized to [0, 1].
	DefaultThreshold = 0.015

	// DefaultHangover is how long speech must stay below the threshold
	// before a SpeechEnd event fires.
	DefaultHangover = 300 * time.Millisecond

	// DefaultMinSpeech filters out clicks and breaths shorter than a
	// plausible utterance onset.
	DefaultMinSpeech = 100 * time.Millisecond
)

// VAD implements vad.VAD with an RMS energy gate.
type VAD struct {
	threshold float64
	hangover  time.Duration
	minSpeech time.Duration
	logger    *slog.Logger
	warmed    bool
}

// Option customizes the detector.
type Option func(*VAD)

// WithThreshold overrides the RMS speech threshold.
func WithThreshold(t float64) Option {
	return func(v *VAD) { v.threshold = t }
}

// WithHangover overrides the trailing-silence window.
func WithHangover(d time.Duration) Option {
	return func(v *VAD) { v.hangover = d }
}

// NewVAD creates an energy-based detector.
func NewVAD(logger *slog.Logger, opts ...Option) *VAD {
	if logger == nil {
		logger = slog.Default()
	}
	v := &VAD{
		threshold: DefaultThreshold,
		hangover:  DefaultHangover,
		minSpeech: DefaultMinSpeech,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Prewarm marks the detector ready. There is nothing to load, but the
// pipeline calls Prewarm on every provider that offers it before the
// first participant joins.
func (v *VAD) Prewarm(ctx context.Context) error {
	v.warmed = true
	v.logger.Debug("energy VAD prewarmed")
	return nil
}

// Detect consumes audio frames and emits speech boundary events.
func (v *VAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	out := make(chan vad.Event, 16)
	go v.run(ctx, frames, out)
	return out, nil
}

func (v *VAD) run(ctx context.Context, frames <-chan rtc.AudioFrame, out chan<- vad.Event) {
	defer close(out)

	var (
		inSpeech    bool
		reported    bool
		speechStart time.Time
		lastVoiced  time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if reported {
					v.emit(ctx, out, vad.Event{
						Type:           vad.EventSpeechEnd,
						Timestamp:      time.Now(),
						SpeechDuration: time.Since(speechStart),
					})
				}
				return
			}

			now := time.Now()
			voiced := rms(frame.Data) >= v.threshold

			switch {
			case voiced && !inSpeech:
				inSpeech = true
				reported = false
				speechStart = now
				lastVoiced = now
			case voiced && inSpeech:
				lastVoiced = now
				if !reported && now.Sub(speechStart) >= v.minSpeech {
					reported = true
					v.emit(ctx, out, vad.Event{
						Type:      vad.EventSpeechStart,
						Timestamp: speechStart,
					})
				}
			case !voiced && inSpeech:
				if now.Sub(lastVoiced) >= v.hangover {
					inSpeech = false
					if reported {
						reported = false
						v.emit(ctx, out, vad.Event{
							Type:           vad.EventSpeechEnd,
							Timestamp:      now,
							SpeechDuration: lastVoiced.Sub(speechStart),
						})
					}
				}
			}
		}
	}
}

func (v *VAD) emit(ctx context.Context, out chan<- vad.Event, ev vad.Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

func (v *VAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{8000, 16000, 48000},
		MinSpeechDuration:  v.minSpeech,
		MinSilenceDuration: v.hangover,
	}
}

// rms computes the root-mean-square level of little-endian 16-bit PCM,
// normalized to [0, 1].
func rms(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
