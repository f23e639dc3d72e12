package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// NewContext creates a job context on top of the given parent. The
// embedded Ctx is cancelled when Shutdown runs or the parent ends.
func NewContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{Ctx: ctx, cancel: cancel}
}

// Shutdown runs all registered hooks, waits for them (bounded by
// ShutdownHookTimeout) and cancels the context. Safe to call more than
// once; only the first call does anything.
func (jc *Context) Shutdown(reason string) {
	jc.mu.Lock()
	if jc.done {
		jc.mu.Unlock()
		return
	}
	jc.done = true
	hooks := jc.hooks
	jc.mu.Unlock()

	slog.Info("job shutdown initiated", slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("shutdown hook panicked", slog.Any("panic", r))
				}
			}()
			h(reason)
		}(hook)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(ShutdownHookTimeout):
		slog.Warn("shutdown hooks timed out",
			slog.Duration("timeout", ShutdownHookTimeout))
	}

	jc.cancel()
}

// OnShutdown registers a hook to run when Shutdown is called. Hooks run
// concurrently. If the job has already shut down the hook runs
// immediately.
func (jc *Context) OnShutdown(hook func(reason string)) {
	jc.mu.Lock()
	if jc.done {
		jc.mu.Unlock()
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("shutdown hook panicked", slog.Any("panic", r))
				}
			}()
			hook("job already shut down")
		}()
		return
	}
	jc.hooks = append(jc.hooks, hook)
	jc.mu.Unlock()
}

// IsShutdown reports whether the job context has ended.
func (jc *Context) IsShutdown() bool {
	select {
	case <-jc.Ctx.Done():
		return true
	default:
		return false
	}
}

// Done mirrors jc.Ctx.Done.
func (jc *Context) Done() <-chan struct{} {
	return jc.Ctx.Done()
}

// Err mirrors jc.Ctx.Err.
func (jc *Context) Err() error {
	return jc.Ctx.Err()
}
