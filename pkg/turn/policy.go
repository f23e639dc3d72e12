// Package turn governs turn-taking for one live session: when user
// speech counts as a deliberate interruption of the agent, and how much
// silence commits the end of the user's turn.
package turn

import (
	"context"
	"expvar"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/stt"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/vad"
)

// State is the conversational state of one session.
type State int32

const (
	StateIdle State = iota
	StateAgentSpeaking
	StateUserSpeaking
	StateInterrupted
	StateProcessing
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAgentSpeaking:
		return "AgentSpeaking"
	case StateUserSpeaking:
		return "UserSpeaking"
	case StateInterrupted:
		return "Interrupted"
	case StateProcessing:
		return "Processing"
	case StateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Policy holds the timing thresholds that drive transitions.
type Policy struct {
	// AllowInterruptions enables barge-in while the agent speaks.
	AllowInterruptions bool

	// InterruptSpeechDuration is how long the user must have been
	// speaking before speech over the agent counts as barge-in.
	InterruptSpeechDuration time.Duration

	// InterruptMinWords is the minimum transcribed word count before
	// speech over the agent counts as barge-in.
	InterruptMinWords int

	// MinEndpointingDelay is the silence required after user speech
	// before the turn is committed.
	MinEndpointingDelay time.Duration

	// MaxEndpointingDelay bounds how long an ambiguous pause can hold
	// the turn open waiting for a transcript.
	MaxEndpointingDelay time.Duration

	// PreemptiveGeneration starts response generation before the turn
	// commits; the speculative work is discarded if the commit
	// decision reverses.
	PreemptiveGeneration bool
}

// DefaultPolicy mirrors the production interruption settings.
func DefaultPolicy() Policy {
	return Policy{
		AllowInterruptions:      true,
		InterruptSpeechDuration: 500 * time.Millisecond,
		InterruptMinWords:       2,
		MinEndpointingDelay:     500 * time.Millisecond,
		MaxEndpointingDelay:     6 * time.Second,
		PreemptiveGeneration:    true,
	}
}

// Hooks are the controller's outputs into the session.
type Hooks struct {
	// OnBargeIn fires when user speech interrupts the agent; the
	// session must cancel in-flight synthesis promptly.
	OnBargeIn func()

	// OnTurnCommitted fires when the user's turn is final, with the
	// transcript to answer.
	OnTurnCommitted func(transcript string)

	// OnPreemptive may start speculative generation for a not yet
	// committed turn. The returned cancel is called if the commit
	// decision reverses.
	OnPreemptive func(transcript string) (cancel func())
}

// Controller owns the turn state for exactly one session. It is driven
// by VAD and STT events on Run's channels and by the session's
// BeginSpeaking/FinishSpeaking calls.
type Controller struct {
	policy   Policy
	detector Detector // optional end-of-utterance model

	state       atomic.Int32
	transitions *expvar.Map

	synthMu     sync.Mutex
	synthCancel context.CancelFunc
}

// NewController creates a controller in StateIdle.
func NewController(policy Policy, detector Detector) *Controller {
	m := &expvar.Map{}
	m.Init()
	c := &Controller{policy: policy, detector: detector, transitions: m}
	c.state.Store(int32(StateIdle))
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Transitions exposes the per-transition counters for diagnostics.
func (c *Controller) Transitions() *expvar.Map {
	return c.transitions
}

func (c *Controller) setState(next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev == next {
		return
	}
	key := prev.String() + "_to_" + next.String()
	c.transitions.Add(key, 1)
}

// BeginSpeaking records that agent synthesis is starting. cancel stops
// the synthesis stream and is invoked on barge-in.
func (c *Controller) BeginSpeaking(cancel context.CancelFunc) {
	c.synthMu.Lock()
	c.synthCancel = cancel
	c.synthMu.Unlock()
	c.setState(StateAgentSpeaking)
}

// FinishSpeaking records that agent synthesis ran to completion. A
// barge-in that already moved the state wins.
func (c *Controller) FinishSpeaking() {
	c.synthMu.Lock()
	c.synthCancel = nil
	c.synthMu.Unlock()
	if c.State() == StateAgentSpeaking {
		c.setState(StateIdle)
	}
}

// FinishProcessing returns the controller to StateIdle when a committed
// turn produced nothing to speak. Without it the state would stay
// Processing and every later turn would be dropped.
func (c *Controller) FinishProcessing() {
	if c.State() == StateProcessing {
		c.setState(StateIdle)
	}
}

func (c *Controller) cancelSynthesis() {
	c.synthMu.Lock()
	cancel := c.synthCancel
	c.synthCancel = nil
	c.synthMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// turnTracker accumulates one user turn. seq advances whenever the
// commit decision changes hands, invalidating in-flight detector
// verdicts for an earlier pause.
type turnTracker struct {
	seq           uint64
	speechActive  bool
	speechStart   time.Time
	interimWords  int
	lastInterim   string
	finals        []string
	maxDeadline   time.Time
	preemptCancel func()
}

func (t *turnTracker) transcript() string {
	if len(t.finals) > 0 {
		return strings.Join(t.finals, " ")
	}
	return t.lastInterim
}

func (t *turnTracker) reset() {
	*t = turnTracker{seq: t.seq + 1}
}

// detection is an asynchronous end-of-utterance verdict. Only "user is
// mid-thought, hold the turn open" verdicts are delivered; everything
// else lets the commit timer run.
type detection struct {
	seq uint64
}

// Run drives the state machine until ctx is cancelled (participant
// disconnect), entering StateEnded on the way out. It is the session
// task's event loop; nothing here blocks without suspension.
func (c *Controller) Run(ctx context.Context, vadEvents <-chan vad.Event, sttEvents <-chan stt.Event, h Hooks) error {
	commit := time.NewTimer(time.Hour)
	stopTimer(commit)
	defer commit.Stop()

	detections := make(chan detection, 4)
	var turn turnTracker

	for {
		select {
		case <-ctx.Done():
			c.setState(StateEnded)
			return ctx.Err()

		case ev, ok := <-vadEvents:
			if !ok {
				vadEvents = nil
				continue
			}
			c.handleVAD(ev, &turn, commit, detections, h)

		case ev, ok := <-sttEvents:
			if !ok {
				sttEvents = nil
				continue
			}
			c.handleSTT(ev, &turn, h)

		case d := <-detections:
			c.handleDetection(d, &turn, commit)

		case <-commit.C:
			c.handleCommitTimer(&turn, commit, h)
		}
	}
}

func (c *Controller) handleVAD(ev vad.Event, turn *turnTracker, commit *time.Timer, detections chan<- detection, h Hooks) {
	switch ev.Type {
	case vad.EventSpeechStart:
		turn.seq++
		turn.speechActive = true
		turn.speechStart = ev.Timestamp
		if turn.speechStart.IsZero() {
			turn.speechStart = time.Now()
		}
		turn.interimWords = 0
		stopTimer(commit)

		// More speech before the endpointing window closed: the
		// commit decision reverses and speculative work is discarded.
		if turn.preemptCancel != nil {
			turn.preemptCancel()
			turn.preemptCancel = nil
		}

		if c.State() == StateIdle {
			c.setState(StateUserSpeaking)
		}
		// While AgentSpeaking this is only a barge-in candidate; the
		// thresholds are checked as transcript words arrive.

	case vad.EventSpeechEnd:
		turn.speechActive = false
		if c.State() != StateUserSpeaking {
			return
		}
		turn.maxDeadline = time.Now().Add(c.policy.MaxEndpointingDelay)
		commit.Reset(c.policy.MinEndpointingDelay)
		c.probeEndOfUtterance(turn, detections)

		if c.policy.PreemptiveGeneration && h.OnPreemptive != nil && turn.preemptCancel == nil {
			if text := turn.transcript(); text != "" {
				turn.preemptCancel = h.OnPreemptive(text)
			}
		}

	case vad.EventError:
		// Provider hiccup; turn timing falls back to STT events alone.
	}
}

// probeEndOfUtterance consults the optional end-of-utterance detector
// off the event loop, so a slow model never stalls VAD/STT handling or
// barge-in. Detector errors and late responses mean the commit timer
// stands; only a timely "mid-thought" verdict holds the turn open.
func (c *Controller) probeEndOfUtterance(turn *turnTracker, detections chan<- detection) {
	if c.detector == nil {
		return
	}
	text := turn.transcript()
	if text == "" {
		return
	}
	seq := turn.seq
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), detectorTimeout)
		defer cancel()
		prob, err := c.detector.PredictEndOfUtterance(ctx, text)
		if err != nil || prob >= endOfUtteranceLikely {
			return
		}
		select {
		case detections <- detection{seq: seq}:
		default:
		}
	}()
}

// handleDetection holds the commit timer open for a mid-thought
// verdict, still bounded by the max endpointing deadline. Verdicts for
// an earlier pause are stale and ignored.
func (c *Controller) handleDetection(d detection, turn *turnTracker, commit *time.Timer) {
	if d.seq != turn.seq || turn.speechActive || c.State() != StateUserSpeaking {
		return
	}
	if wait := time.Until(turn.maxDeadline); wait > 0 {
		commit.Reset(wait)
	}
}

func (c *Controller) handleSTT(ev stt.Event, turn *turnTracker, h Hooks) {
	switch ev.Type {
	case stt.EventInterim:
		turn.lastInterim = ev.Text
		turn.interimWords = len(strings.Fields(ev.Text))
		c.maybeBargeIn(turn, h)
	case stt.EventFinal:
		if ev.Text != "" {
			turn.finals = append(turn.finals, ev.Text)
		}
	case stt.EventError:
		// Logged by the provider; the turn commits on whatever text
		// arrived before the failure.
	}
}

// maybeBargeIn applies the interruption thresholds while the agent is
// speaking. Speech below either threshold leaves the state unchanged.
func (c *Controller) maybeBargeIn(turn *turnTracker, h Hooks) {
	if c.State() != StateAgentSpeaking || !c.policy.AllowInterruptions || !turn.speechActive {
		return
	}
	if time.Since(turn.speechStart) < c.policy.InterruptSpeechDuration {
		return
	}
	if turn.interimWords < c.policy.InterruptMinWords {
		return
	}

	c.setState(StateInterrupted)
	c.cancelSynthesis()
	if h.OnBargeIn != nil {
		h.OnBargeIn()
	}
	c.setState(StateUserSpeaking)
}

func (c *Controller) handleCommitTimer(turn *turnTracker, commit *time.Timer, h Hooks) {
	if c.State() != StateUserSpeaking || turn.speechActive {
		return
	}

	text := turn.transcript()
	if text == "" {
		// Nothing transcribed yet. Re-arm within the max window; past
		// it, the pause was noise and the turn is abandoned.
		if time.Now().Before(turn.maxDeadline) {
			commit.Reset(c.policy.MinEndpointingDelay)
			return
		}
		turn.reset()
		c.setState(StateIdle)
		return
	}

	c.setState(StateProcessing)
	if h.OnTurnCommitted != nil {
		h.OnTurnCommitted(text)
	}
	turn.reset()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
