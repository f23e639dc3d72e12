// Package stt defines the streaming speech-to-text contract. Providers
// convert pushed audio frames into interim and final transcript events.
package stt

import (
	"context"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// StreamConfig configures one recognition stream.
type StreamConfig struct {
	SampleRate     int
	NumChannels    int
	Language       string
	InterimResults bool
}

// EventType distinguishes interim, final and error events.
type EventType int

const (
	// EventInterim is a partial transcript that may still change.
	EventInterim EventType = iota
	// EventFinal is a committed transcript for the utterance so far.
	EventFinal
	// EventError reports a recognition failure.
	EventError
)

// Event is one speech-recognition result.
type Event struct {
	Type      EventType
	Text      string
	Language  string
	Timestamp int64 // milliseconds since epoch
	Err       error // set only for EventError
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	Streaming          bool
	InterimResults     bool
	SupportedLanguages []string
	SampleRates        []int
}

// STT creates recognition streams.
type STT interface {
	NewStream(ctx context.Context, cfg StreamConfig) (Stream, error)
	Capabilities() Capabilities
}

// Stream is one active recognition session.
type Stream interface {
	// Push sends an audio frame for recognition.
	Push(frame rtc.AudioFrame) error

	// Events returns recognition results. The channel closes after
	// CloseSend once all pending results have been delivered.
	Events() <-chan Event

	// CloseSend signals that no more audio will arrive and flushes
	// any pending transcript.
	CloseSend() error
}
