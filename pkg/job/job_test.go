package job

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewJobRequiresRoom(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing room name")
	}
}

func TestNewJobGeneratesID(t *testing.T) {
	j, err := New(context.Background(), Config{RoomName: "agent-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.HasPrefix(j.ID, "job_") {
		t.Errorf("generated ID %q should have job_ prefix", j.ID)
	}
	if !j.IsActive() {
		t.Error("new job should be active")
	}
	j.Shutdown("test done")
}

func TestShutdownRunsHooksOnce(t *testing.T) {
	jc := NewContext(context.Background())

	var calls atomic.Int32
	var gotReason atomic.Value
	jc.OnShutdown(func(reason string) {
		calls.Add(1)
		gotReason.Store(reason)
	})

	jc.Shutdown("caller hung up")
	jc.Shutdown("caller hung up")

	if got := calls.Load(); got != 1 {
		t.Errorf("hook ran %d times, want 1", got)
	}
	if got := gotReason.Load(); got != "caller hung up" {
		t.Errorf("hook got reason %v, want caller hung up", got)
	}
	if !jc.IsShutdown() {
		t.Error("context should be shut down")
	}
}

func TestOnShutdownAfterShutdownRunsImmediately(t *testing.T) {
	jc := NewContext(context.Background())
	jc.Shutdown("done")

	ran := make(chan struct{})
	jc.OnShutdown(func(string) { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("late hook never ran")
	}
}

func TestShutdownSurvivesPanickingHook(t *testing.T) {
	jc := NewContext(context.Background())

	var ran atomic.Bool
	jc.OnShutdown(func(string) { panic("boom") })
	jc.OnShutdown(func(string) { ran.Store(true) })

	jc.Shutdown("cleanup")

	if !ran.Load() {
		t.Error("healthy hook should run even when a sibling panics")
	}
	if !jc.IsShutdown() {
		t.Error("shutdown should complete despite panicking hook")
	}
}

func TestWaitReturnsOnShutdown(t *testing.T) {
	j, err := New(context.Background(), Config{RoomName: "agent-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		j.Shutdown("scripted")
	}()

	done := make(chan error, 1)
	go func() { done <- j.Wait() }()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Wait returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait never returned")
	}
}

func TestJobTimeout(t *testing.T) {
	j, err := New(context.Background(), Config{
		RoomName: "agent-test",
		Timeout:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	select {
	case <-j.Context.Done():
	case <-time.After(time.Second):
		t.Fatal("job never timed out")
	}
	if j.IsActive() {
		t.Error("timed-out job should not be active")
	}
}
