package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/truvo-ai/voice-agent-go/pkg/job"
)

func TestWorkerNew(t *testing.T) {
	is := is.New(t)

	config := Config{URL: "wss://example.com", Token: "test-token"}
	w := New(config, slog.Default())

	is.Equal(w.url, config.URL)     // worker URL should match config
	is.Equal(w.token, config.Token) // worker token should match config
	is.True(w.in != nil)            // in channel should be initialized
	is.True(w.out != nil)           // out channel should be initialized
}

func TestWorkerIsConnected(t *testing.T) {
	is := is.New(t)

	w := New(Config{URL: "wss://example.com", Token: "test"}, slog.Default())

	is.True(!w.IsConnected()) // worker should start disconnected

	w.setConnected(true)
	is.True(w.IsConnected())

	w.setConnected(false)
	is.True(!w.IsConnected())
}

func TestHandleSignalPing(t *testing.T) {
	w := New(Config{URL: "wss://example.com", Token: "test"}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w.handleSignal(ctx, &Signal{
		Type: SignalTypePing,
		Data: map[string]any{"id": "test-ping"},
	})

	select {
	case cmd := <-w.out:
		if cmd.Type != SignalTypePong {
			t.Errorf("expected pong response, got %s", cmd.Type)
		}
		if cmd.Data["id"] != "test-ping" {
			t.Errorf("expected pong to echo ping data, got %v", cmd.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected pong response within 100ms")
	}
}

func TestStartJobDispatches(t *testing.T) {
	gotRoom := make(chan string, 1)

	cfg := Config{
		URL:   "wss://example.com",
		Token: "test",
		Dispatch: func(ctx context.Context, j *job.Job, roomToken string) error {
			gotRoom <- j.RoomName
			return nil
		},
	}
	w := New(cfg, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w.handleSignal(ctx, &Signal{
		Type: SignalTypeStartJob,
		Data: map[string]any{"room": "agent-lobby", "token": "room-jwt"},
	})

	select {
	case room := <-gotRoom:
		if room != "agent-lobby" {
			t.Errorf("dispatched room = %q, want agent-lobby", room)
		}
	case <-time.After(time.Second):
		t.Fatal("job never dispatched")
	}

	// Both lifecycle commands should appear on the wire.
	types := map[string]bool{}
	deadline := time.After(time.Second)
	for len(types) < 2 {
		select {
		case cmd := <-w.out:
			types[cmd.Type] = true
		case <-deadline:
			t.Fatalf("missing lifecycle commands, got %v", types)
		}
	}
	if !types[CommandTypeJobStarted] || !types[CommandTypeJobFinished] {
		t.Errorf("lifecycle commands = %v", types)
	}
}

func TestStartJobSurvivesDispatchPanic(t *testing.T) {
	cfg := Config{
		URL:   "wss://example.com",
		Token: "test",
		Dispatch: func(ctx context.Context, j *job.Job, roomToken string) error {
			panic("session blew up")
		},
	}
	w := New(cfg, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w.handleSignal(ctx, &Signal{
		Type: SignalTypeStartJob,
		Data: map[string]any{"room": "agent-lobby"},
	})

	deadline := time.Now().Add(time.Second)
	for w.ActiveJobs() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("panicked job never cleaned up")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartJobWithoutRoomIsDropped(t *testing.T) {
	w := New(Config{URL: "wss://example.com", Token: "test"}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w.handleSignal(ctx, &Signal{Type: SignalTypeStartJob, Data: map[string]any{}})

	if w.ActiveJobs() != 0 {
		t.Error("malformed startJob should not create a job")
	}
}

func TestHandleSignalUnknown(t *testing.T) {
	w := New(Config{URL: "wss://example.com", Token: "test"}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w.handleSignal(ctx, &Signal{Type: "unknownType", Data: map[string]any{"foo": "bar"}})

	select {
	case <-w.out:
		t.Error("no response expected for unknown signal type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBackoffCalculation(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			w := New(Config{URL: "wss://example.com", Token: "test"}, slog.Default())

			w.mu.Lock()
			w.backoffAttempt = tt.attempt - 1
			w.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := w.backoffDelay(ctx)
			duration := time.Since(start)

			if err != context.DeadlineExceeded {
				t.Errorf("expected context deadline exceeded, got %v", err)
			}
			if duration < 40*time.Millisecond {
				t.Errorf("backoff should have waited at least 40ms, waited %v", duration)
			}
		})
	}
}
