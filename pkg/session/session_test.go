package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/tts"
	"github.com/truvo-ai/voice-agent-go/pkg/config"
	"github.com/truvo-ai/voice-agent-go/pkg/job"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
	"github.com/truvo-ai/voice-agent-go/pkg/schedule"
	"github.com/truvo-ai/voice-agent-go/pkg/tool"
	"github.com/truvo-ai/voice-agent-go/pkg/turn"

	llmfake "github.com/truvo-ai/voice-agent-go/pkg/ai/llm/fake"
	sttfake "github.com/truvo-ai/voice-agent-go/pkg/ai/stt/fake"
	ttsfake "github.com/truvo-ai/voice-agent-go/pkg/ai/tts/fake"
	vadfake "github.com/truvo-ai/voice-agent-go/pkg/ai/vad/fake"
)

// discardOutput drains playback without a real room.
type discardOutput struct{}

func (discardOutput) Play(ctx context.Context, frames <-chan rtc.AudioFrame) (bool, error) {
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return true, nil
			}
		case <-ctx.Done():
			return false, nil
		}
	}
}

type harness struct {
	builder *Builder
	tools   *tool.Registry
	llm     *llmfake.FakeLLM
	tts     *ttsfake.FakeTTS
}

func newHarness(t *testing.T, fakeLLM *llmfake.FakeLLM, transcripts ...string) *harness {
	t.Helper()

	fakeTTS := ttsfake.NewFakeTTS().WithFrameCount(2)
	plugins := plugin.NewRegistry()
	plugins.Register(plugin.KindSTT, "fake", func(map[string]any) (any, error) {
		return sttfake.NewFakeSTT(transcripts...), nil
	})
	plugins.Register(plugin.KindTTS, "fake", func(map[string]any) (any, error) {
		return fakeTTS, nil
	})
	plugins.Register(plugin.KindLLM, "fake", func(map[string]any) (any, error) {
		return fakeLLM, nil
	})
	plugins.Register(plugin.KindVAD, "fake", func(map[string]any) (any, error) {
		return vadfake.NewFakeVAD(), nil
	})

	tools := tool.NewRegistry()
	cal := schedule.NewCalClient("", "", nil)
	calendar := schedule.NewCalendarClient("", "primary", nil)
	tool.RegisterBuiltins(tools, cal, calendar)

	names := ProviderNames{STT: "fake", TTS: "fake", LLM: "fake", VAD: "fake"}
	return &harness{
		builder: NewBuilder(plugins, tools, names, nil),
		tools:   tools,
		llm:     fakeLLM,
		tts:     fakeTTS,
	}
}

func testPolicy() turn.Policy {
	p := turn.DefaultPolicy()
	p.MinEndpointingDelay = 20 * time.Millisecond
	p.MaxEndpointingDelay = 500 * time.Millisecond
	return p
}

// runSession starts a session over a fed microphone channel and returns
// a stop function.
func runSession(t *testing.T, h *harness, frames <-chan rtc.AudioFrame) (stop func()) {
	t.Helper()

	j, err := job.New(context.Background(), job.Config{RoomName: "agent-lobby"})
	if err != nil {
		t.Fatalf("job.New: %v", err)
	}

	// A room name without a valid agent id resolves straight to the
	// injected defaults without touching the network.
	resolver := config.NewResolver("http://127.0.0.1:1", config.NewDefaults(), nil)
	sess := New(j, resolver, h.builder, h.tools, Options{Policy: testPolicy()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Run(ctx, IO{Frames: frames, Output: discardOutput{}})
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("session did not stop")
		}
	}
}

func waitForSpeech(t *testing.T, f *ttsfake.FakeTTS, n int) []tts.SynthesizeRequest {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reqs := f.Requests()
		if len(reqs) >= n {
			return reqs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d synthesized utterances, got %d", n, len(f.Requests()))
	return nil
}

// speakAfterGreeting waits for the greeting to start, lets playback
// finish, then feeds one burst of microphone audio and hangs up.
func speakAfterGreeting(t *testing.T, h *harness, frames chan rtc.AudioFrame) {
	t.Helper()
	waitForSpeech(t, h.tts, 1)
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 10; i++ {
		frames <- rtc.AudioFrame{
			Data:              make([]byte, 48000/100*2),
			SampleRate:        48000,
			SamplesPerChannel: 48000 / 100,
			NumChannels:       1,
		}
	}
	close(frames)
}

func TestSessionSpeaksDefaultGreetingFirst(t *testing.T) {
	h := newHarness(t, llmfake.NewFakeLLM("Sure, happy to help."))
	frames := make(chan rtc.AudioFrame)
	stop := runSession(t, h, frames)
	defer stop()
	defer close(frames)

	reqs := waitForSpeech(t, h.tts, 1)
	if reqs[0].Text != config.DefaultGreeting {
		t.Errorf("first utterance = %q, want the default greeting", reqs[0].Text)
	}
	if reqs[0].Voice != config.DefaultVoiceID {
		t.Errorf("greeting voice = %q, want default voice id", reqs[0].Voice)
	}
}

func TestSessionAnswersCommittedTurn(t *testing.T) {
	h := newHarness(t, llmfake.NewFakeLLM("We have two-bedroom units available."))

	frames := make(chan rtc.AudioFrame, 10)
	stop := runSession(t, h, frames)
	defer stop()
	speakAfterGreeting(t, h, frames)

	reqs := waitForSpeech(t, h.tts, 2)
	if reqs[1].Text != "We have two-bedroom units available." {
		t.Errorf("reply = %q, want the model answer", reqs[1].Text)
	}
}

func TestSessionDispatchesToolCall(t *testing.T) {
	fakeLLM := llmfake.NewFakeLLM("Tomorrow has openings at 10 AM.").
		WithToolCall("check_availability", `{"date":"tomorrow"}`)
	h := newHarness(t, fakeLLM, "do you have tours tomorrow")

	frames := make(chan rtc.AudioFrame, 10)
	stop := runSession(t, h, frames)
	defer stop()
	speakAfterGreeting(t, h, frames)

	reqs := waitForSpeech(t, h.tts, 2)
	if reqs[1].Text != "Tomorrow has openings at 10 AM." {
		t.Errorf("reply = %q, want the post-tool answer", reqs[1].Text)
	}

	// The tool result must have re-entered the conversation as a tool
	// message before the final answer.
	var sawToolResult bool
	for _, req := range fakeLLM.Requests {
		for _, msg := range req.Messages {
			if msg.Role == "tool" && msg.Name == "check_availability" &&
				strings.Contains(msg.Content, "Available times") {
				sawToolResult = true
			}
		}
	}
	if !sawToolResult {
		t.Error("tool result never re-entered the model conversation")
	}
}

func TestCommitDropsStalePreemptiveWork(t *testing.T) {
	h := newHarness(t, llmfake.NewFakeLLM("speculative answer"))

	pipe, err := h.builder.Build(config.NewDefaults().Config())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	j, err := job.New(context.Background(), job.Config{RoomName: "agent-lobby"})
	if err != nil {
		t.Fatalf("job.New: %v", err)
	}
	resolver := config.NewResolver("http://127.0.0.1:1", config.NewDefaults(), nil)
	sess := New(j, resolver, h.builder, h.tools, Options{Policy: testPolicy()})

	// Speculation started for one transcript, but another final arrived
	// before the commit, so the turn commits with different text.
	sess.startPreemptive(context.Background(), pipe, "do you have")

	if pre := sess.takePreempt("do you have tours tomorrow"); pre != nil {
		t.Error("claimed a speculative result for a transcript that never ran")
	}

	sess.mu.Lock()
	remaining := len(sess.preempts)
	sess.mu.Unlock()
	if remaining != 0 {
		t.Errorf("stale speculative entries retained = %d, want 0", remaining)
	}
}

func TestBuildDropsUnknownTools(t *testing.T) {
	h := newHarness(t, llmfake.NewFakeLLM())

	cfg := config.NewDefaults().Config()
	cfg.ToolsEnabled = []string{"book_tour", "time_travel"}

	pipe, err := h.builder.Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(pipe.Tools) != 1 || pipe.Tools[0].Name != "book_tour" {
		t.Errorf("resolved tools = %v, want just book_tour", pipe.Tools)
	}
}

func TestBuildFailsOnMissingProvider(t *testing.T) {
	plugins := plugin.NewRegistry()
	b := NewBuilder(plugins, tool.NewRegistry(), ProviderNames{STT: "ghost"}, nil)
	if _, err := b.Build(config.NewDefaults().Config()); err == nil {
		t.Fatal("expected error when no providers are registered")
	}
}
