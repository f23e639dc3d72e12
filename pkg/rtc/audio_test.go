package rtc

import (
	"testing"
	"time"
)

func TestNewAudioFrame(t *testing.T) {
	tests := []struct {
		name        string
		dataLen     int
		sampleRate  int
		numChannels int
		wantErr     bool
	}{
		{"48k mono", 960, 48000, 1, false},
		{"16k mono", 320, 16000, 1, false},
		{"48k stereo", 1920, 48000, 2, false},
		{"short buffer", 100, 48000, 1, true},
		{"long buffer", 2000, 48000, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewAudioFrame(make([]byte, tt.dataLen), tt.sampleRate, tt.numChannels, 0)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAudioFrame: %v", err)
			}
			if frame.SamplesPerChannel != tt.sampleRate/100 {
				t.Errorf("SamplesPerChannel = %d, want %d", frame.SamplesPerChannel, tt.sampleRate/100)
			}
			if frame.Duration() != 10*time.Millisecond {
				t.Errorf("Duration = %v, want 10ms", frame.Duration())
			}
		})
	}
}

func TestAudioFrameClone(t *testing.T) {
	frame, err := NewAudioFrame(make([]byte, 960), 48000, 1, 0)
	if err != nil {
		t.Fatalf("NewAudioFrame: %v", err)
	}
	frame.Data[0] = 0x7f

	clone := frame.Clone()
	clone.Data[0] = 0x01

	if frame.Data[0] != 0x7f {
		t.Error("mutating the clone changed the original")
	}
}
