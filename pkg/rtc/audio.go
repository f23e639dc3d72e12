// Package rtc holds the media primitives shared by capability providers
// and the room transport.
package rtc

import (
	"fmt"
	"time"
)

// FrameDuration is the fixed wall-clock span of one AudioFrame.
const FrameDuration = 10 * time.Millisecond

// AudioFrame is 10 ms of 16-bit little-endian PCM.
// len(Data) == SamplesPerChannel * NumChannels * 2.
type AudioFrame struct {
	Data              []byte
	SampleRate        int // 48000 or 16000
	SamplesPerChannel int // SampleRate / 100
	NumChannels       int // 1 or 2
	Timestamp         time.Duration
}

// NewAudioFrame validates that data holds exactly 10 ms of audio for the
// given format and wraps it in a frame.
func NewAudioFrame(data []byte, sampleRate, numChannels int, ts time.Duration) (*AudioFrame, error) {
	samples := sampleRate / 100
	if want := samples * numChannels * 2; len(data) != want {
		return nil, fmt.Errorf("audio frame: got %d bytes, want %d for %dHz/%dch", len(data), want, sampleRate, numChannels)
	}
	return &AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: samples,
		NumChannels:       numChannels,
		Timestamp:         ts,
	}, nil
}

// Clone returns a deep copy of the frame.
func (f *AudioFrame) Clone() *AudioFrame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	c := *f
	c.Data = data
	return &c
}

// Duration returns the span of audio the frame carries.
func (f *AudioFrame) Duration() time.Duration {
	return FrameDuration
}
