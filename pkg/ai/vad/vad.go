// Package vad defines the voice-activity-detection contract. Events
// carry the detected speech duration so the turn controller can apply
// its barge-in thresholds without tracking provider internals.
package vad

import (
	"context"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// EventType distinguishes speech boundaries and failures.
type EventType int

const (
	EventSpeechStart EventType = iota
	EventSpeechEnd
	EventError
)

// Event is one voice-activity observation. SpeechDuration is how long
// the current speech segment has run; it is zero for EventSpeechStart
// and final for EventSpeechEnd.
type Event struct {
	Type           EventType
	Timestamp      time.Time
	SpeechDuration time.Duration
	Err            error
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	SampleRates        []int
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
	Sensitivity        float32
}

// VAD detects speech activity in an audio stream.
type VAD interface {
	// Detect consumes frames and emits activity events. The returned
	// channel closes when frames closes or ctx is cancelled.
	Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan Event, error)

	Capabilities() Capabilities
}
