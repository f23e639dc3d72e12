// Package voice holds small pieces of audio-path plumbing shared by the
// session pipeline.
package voice

import "sync/atomic"

// AudioGate decides whether microphone frames should be discarded while
// the agent is speaking. When interruptions are disabled the user's
// audio during playback must not reach recognition at all, otherwise a
// stale transcript would commit the moment the agent finishes.
type AudioGate interface {
	// SetAgentSpeaking marks whether agent playback is in progress.
	SetAgentSpeaking(speaking bool)

	// ShouldDiscardAudio reports whether microphone frames should be
	// dropped right now.
	ShouldDiscardAudio() bool
}

// NewAudioGate creates a gate for the given interruption policy. With
// interruptions allowed the gate never discards audio; barge-in needs
// the user's speech to flow through during playback.
func NewAudioGate(allowInterruptions bool) AudioGate {
	if allowInterruptions {
		return passthroughGate{}
	}
	return &muteGate{}
}

type passthroughGate struct{}

func (passthroughGate) SetAgentSpeaking(bool)    {}
func (passthroughGate) ShouldDiscardAudio() bool { return false }

// muteGate drops microphone frames for as long as playback runs.
type muteGate struct {
	speaking atomic.Bool
}

func (g *muteGate) SetAgentSpeaking(speaking bool) {
	g.speaking.Store(speaking)
}

func (g *muteGate) ShouldDiscardAudio() bool {
	return g.speaking.Load()
}
