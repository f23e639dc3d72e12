package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/llm"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/stt"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/tts"
	"github.com/truvo-ai/voice-agent-go/pkg/config"
	"github.com/truvo-ai/voice-agent-go/pkg/job"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
	"github.com/truvo-ai/voice-agent-go/pkg/tool"
	"github.com/truvo-ai/voice-agent-go/pkg/turn"
	"github.com/truvo-ai/voice-agent-go/pkg/voice"
)

// maxToolRounds bounds tool-call back-and-forth within one user turn.
// One call per turn is the norm; the bound only guards against a model
// stuck requesting tools forever.
const maxToolRounds = 4

// Output plays synthesized audio to the caller. It returns whether the
// stream ran to completion (false when cut off by barge-in).
type Output interface {
	Play(ctx context.Context, frames <-chan rtc.AudioFrame) (bool, error)
}

// IO is the session's audio path. The worker wires it from the room;
// tests wire it directly.
type IO struct {
	// Frames is the caller's microphone audio.
	Frames <-chan rtc.AudioFrame

	// Output carries the agent's voice back to the caller.
	Output Output
}

// Options tune one session.
type Options struct {
	Policy   turn.Policy
	Detector turn.Detector
	Logger   *slog.Logger
}

// Session orchestrates one conversation: configuration resolution,
// pipeline assembly, turn-taking, and the response loop.
type Session struct {
	job      *job.Job
	resolver *config.Resolver
	builder  *Builder
	tools    *tool.Registry
	policy   turn.Policy
	detector turn.Detector
	logger   *slog.Logger

	mu       sync.Mutex
	history  []llm.Message
	preempts map[string]*preemptResult
}

type preemptResult struct {
	cancel context.CancelFunc
	done   chan struct{}
	reply  string
	err    error
}

// New creates a session for the given job.
func New(j *job.Job, resolver *config.Resolver, builder *Builder, tools *tool.Registry, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job_id", j.ID), slog.String("room", j.RoomName))
	return &Session{
		job:      j,
		resolver: resolver,
		builder:  builder,
		tools:    tools,
		policy:   opts.Policy,
		detector: opts.Detector,
		logger:   logger,
		preempts: make(map[string]*preemptResult),
	}
}

// Run drives the conversation until the caller leaves or ctx ends.
//
// Resolution cannot fail and assembly failures are fatal for the
// session only; the worker survives and serves the next dispatch.
func (s *Session) Run(ctx context.Context, io IO) error {
	cfg := s.resolver.Resolve(ctx, s.job.RoomName)

	pipe, err := s.builder.Build(cfg)
	if err != nil {
		return fmt.Errorf("assemble pipeline: %w", err)
	}

	controller := turn.NewController(s.policy, s.detector)
	gate := voice.NewAudioGate(s.policy.AllowInterruptions)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sttStream, err := pipe.STT.NewStream(runCtx, stt.StreamConfig{
		SampleRate:     48000,
		NumChannels:    1,
		Language:       "en",
		InterimResults: true,
	})
	if err != nil {
		return fmt.Errorf("open recognition stream: %w", err)
	}

	vadFrames := make(chan rtc.AudioFrame, 32)
	vadEvents, err := pipe.VAD.Detect(runCtx, vadFrames)
	if err != nil {
		return fmt.Errorf("start voice activity detection: %w", err)
	}

	// Fan microphone audio out to recognition and activity detection.
	// Gated frames are dropped before either consumer sees them.
	go func() {
		defer close(vadFrames)
		defer sttStream.CloseSend()
		for {
			select {
			case <-runCtx.Done():
				return
			case frame, ok := <-io.Frames:
				if !ok {
					return
				}
				if gate.ShouldDiscardAudio() {
					continue
				}
				select {
				case vadFrames <- frame:
				case <-runCtx.Done():
					return
				}
				if err := sttStream.Push(frame); err != nil {
					s.logger.Warn("recognition push failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	turns := make(chan string, 1)
	hooks := turn.Hooks{
		OnBargeIn: func() {
			s.logger.Info("user interrupted agent")
		},
		OnTurnCommitted: func(transcript string) {
			select {
			case turns <- transcript:
			case <-runCtx.Done():
			}
		},
		OnPreemptive: func(transcript string) func() {
			return s.startPreemptive(runCtx, pipe, transcript)
		},
	}

	controllerDone := make(chan error, 1)
	go func() {
		controllerDone <- controller.Run(runCtx, vadEvents, sttStream.Events(), hooks)
	}()

	s.mu.Lock()
	s.history = []llm.Message{{Role: llm.RoleSystem, Content: cfg.SystemPrompt}}
	s.mu.Unlock()

	// The greeting is spoken through the same interruptible path as
	// every later reply; callers can talk over it from the first word.
	s.speak(runCtx, pipe, controller, gate, io.Output, cfg.Greeting)
	s.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: cfg.Greeting})

	for {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case err := <-controllerDone:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case transcript := <-turns:
			s.logger.Info("turn committed", slog.Int("chars", len(transcript)))
			reply := s.respond(runCtx, pipe, transcript)
			if reply != "" {
				s.speak(runCtx, pipe, controller, gate, io.Output, reply)
			} else {
				// The model said nothing; release the turn so the next
				// utterance is heard.
				controller.FinishProcessing()
			}
		}
	}
}

// speak synthesizes and plays one utterance under the turn controller.
// Every exit path leaves the controller able to accept the next turn.
func (s *Session) speak(ctx context.Context, pipe *Pipeline, controller *turn.Controller, gate voice.AudioGate, out Output, text string) {
	if text == "" || out == nil {
		controller.FinishProcessing()
		return
	}

	synthCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames, err := pipe.TTS.Synthesize(synthCtx, tts.SynthesizeRequest{
		Text:  text,
		Voice: pipe.Config.VoiceID,
	})
	if err != nil {
		s.logger.Error("synthesis failed", slog.String("error", err.Error()))
		controller.FinishProcessing()
		return
	}

	controller.BeginSpeaking(cancel)
	gate.SetAgentSpeaking(true)

	completed, err := out.Play(synthCtx, frames)
	gate.SetAgentSpeaking(false)
	if err != nil {
		s.logger.Error("playback failed", slog.String("error", err.Error()))
		// Nothing more will play on this turn.
		completed = true
	}
	if completed {
		controller.FinishSpeaking()
	}
}

// respond produces the reply for a committed transcript, consuming a
// matching preemptive result when one finished in time.
func (s *Session) respond(ctx context.Context, pipe *Pipeline, transcript string) string {
	if pre := s.takePreempt(transcript); pre != nil {
		<-pre.done
		if pre.err == nil && pre.reply != "" {
			s.logger.Debug("using preemptive reply")
			s.appendHistory(
				llm.Message{Role: llm.RoleUser, Content: transcript},
				llm.Message{Role: llm.RoleAssistant, Content: pre.reply},
			)
			return pre.reply
		}
	}

	s.appendHistory(llm.Message{Role: llm.RoleUser, Content: transcript})
	reply, err := s.complete(ctx, pipe, s.snapshotHistory())
	if err != nil {
		s.logger.Error("completion failed", slog.String("error", err.Error()))
		return "I'm sorry, I'm having trouble responding right now. Could you say that again?"
	}
	s.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply
}

// complete runs the chat loop, dispatching tool calls serially until
// the model answers in text.
func (s *Session) complete(ctx context.Context, pipe *Pipeline, messages []llm.Message) (string, error) {
	defs := tool.Definitions(pipe.Tools)

	for round := 0; round < maxToolRounds; round++ {
		resp, err := pipe.LLM.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			return "", err
		}

		if resp.ToolCall == nil {
			return strings.TrimSpace(resp.Message.Content), nil
		}

		result := s.invokeTool(ctx, resp.ToolCall)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Message.Content},
			llm.Message{Role: llm.RoleTool, Name: resp.ToolCall.Name, Content: result},
		)
	}
	return "", fmt.Errorf("model requested tools for %d rounds without answering", maxToolRounds)
}

// invokeTool runs one tool call. Handler errors surface to the model as
// text so the conversation can continue; the spoken apology, when one
// is warranted, was already produced inside the gateway.
func (s *Session) invokeTool(ctx context.Context, call *llm.ToolCall) string {
	args := make(map[string]any)
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			s.logger.Warn("malformed tool arguments",
				slog.String("tool", call.Name),
				slog.String("error", err.Error()))
			return "The tool arguments could not be parsed."
		}
	}

	s.logger.Info("invoking tool", slog.String("tool", call.Name))
	result, err := s.tools.Invoke(ctx, call.Name, args)
	if err != nil {
		s.logger.Error("tool invocation failed",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()))
		return "The tool could not be executed."
	}
	return result
}

// startPreemptive begins speculative generation for a transcript whose
// turn has not committed yet. The returned cancel discards the work if
// the user keeps talking.
func (s *Session) startPreemptive(ctx context.Context, pipe *Pipeline, transcript string) func() {
	preCtx, cancel := context.WithCancel(ctx)
	pre := &preemptResult{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.preempts[transcript] = pre
	s.mu.Unlock()

	messages := append(s.snapshotHistory(), llm.Message{Role: llm.RoleUser, Content: transcript})
	go func() {
		defer close(pre.done)
		pre.reply, pre.err = s.complete(preCtx, pipe, messages)
	}()

	return func() {
		cancel()
		s.mu.Lock()
		delete(s.preempts, transcript)
		s.mu.Unlock()
	}
}

// takePreempt claims the speculative result for the committed
// transcript, if any. Entries keyed by any other transcript were
// guesses the commit superseded; they are cancelled and dropped so
// they cannot accumulate over the session's life.
func (s *Session) takePreempt(transcript string) *preemptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	pre := s.preempts[transcript]
	for key, stale := range s.preempts {
		if key != transcript {
			stale.cancel()
		}
		delete(s.preempts, key)
	}
	return pre
}

func (s *Session) appendHistory(msgs ...llm.Message) {
	s.mu.Lock()
	s.history = append(s.history, msgs...)
	s.mu.Unlock()
}

func (s *Session) snapshotHistory() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}
