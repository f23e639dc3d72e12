package energy

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/vad"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

func pcmFrame(amplitude int16) rtc.AudioFrame {
	const samples = 160 // 10 ms at 16 kHz
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(amplitude))
	}
	return rtc.AudioFrame{
		Data:              data,
		SampleRate:        16000,
		SamplesPerChannel: samples,
		NumChannels:       1,
	}
}

func TestDetectSpeechSegment(t *testing.T) {
	v := NewVAD(nil, WithHangover(10*time.Millisecond))
	v.minSpeech = 0

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := make(chan rtc.AudioFrame, 64)
	events, err := v.Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	// Loud audio, then close the stream mid-speech.
	for i := 0; i < 20; i++ {
		frames <- pcmFrame(8000)
	}
	close(frames)

	var got []vad.EventType
	for ev := range events {
		got = append(got, ev.Type)
	}

	if len(got) != 2 || got[0] != vad.EventSpeechStart || got[1] != vad.EventSpeechEnd {
		t.Fatalf("events = %v, want [SpeechStart SpeechEnd]", got)
	}
}

func TestSilenceEmitsNothing(t *testing.T) {
	v := NewVAD(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := make(chan rtc.AudioFrame, 64)
	events, err := v.Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	for i := 0; i < 20; i++ {
		frames <- pcmFrame(0)
	}
	close(frames)

	for ev := range events {
		t.Errorf("unexpected event %v for silent input", ev.Type)
	}
}

func TestRMS(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms(nil) = %f, want 0", got)
	}

	loud := pcmFrame(16384)
	quiet := pcmFrame(100)
	if rms(loud.Data) <= rms(quiet.Data) {
		t.Error("louder signal should have higher RMS")
	}
	if r := rms(loud.Data); r < 0.4 || r > 0.6 {
		t.Errorf("rms of half-scale DC = %f, want about 0.5", r)
	}
}

func TestPrewarm(t *testing.T) {
	v := NewVAD(nil)
	if err := v.Prewarm(context.Background()); err != nil {
		t.Fatalf("Prewarm: %v", err)
	}
	if !v.warmed {
		t.Error("Prewarm should mark the detector ready")
	}
}
