// Package worker holds the long-lived dispatch loop: it registers with
// the dispatch server, answers pings, and spawns one session per
// assigned room.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/truvo-ai/voice-agent-go/pkg/job"
)

// Signal and command types on the dispatch socket.
const (
	SignalTypePing     = "ping"
	SignalTypePong     = "pong"
	SignalTypeStartJob = "startJob"
	SignalTypeShutdown = "shutdown"

	CommandTypeJobStarted  = "jobStarted"
	CommandTypeJobFinished = "jobFinished"
)

// DispatchFunc runs one assigned job to completion. The worker survives
// any error it returns; a broken session must never take down its
// siblings.
type DispatchFunc func(ctx context.Context, j *job.Job, roomToken string) error

type Worker struct {
	url            string
	token          string
	wsClient       *WebSocketClient
	logger         *slog.Logger
	dispatch       DispatchFunc
	prewarm        func(context.Context)
	in             chan *Signal
	out            chan *Command
	mu             sync.RWMutex
	connected      bool
	backoffAttempt int
	active         map[string]*job.Job
}

type Config struct {
	URL   string
	Token string

	// Dispatch runs each assigned job. Required for real operation;
	// nil makes startJob signals log-and-drop.
	Dispatch DispatchFunc

	// Prewarm runs once before the first connection attempt, warming
	// capability providers so the first session starts fast.
	Prewarm func(context.Context)
}

func New(config Config, logger *slog.Logger) *Worker {
	return &Worker{
		url:      config.URL,
		token:    config.Token,
		logger:   logger,
		dispatch: config.Dispatch,
		prewarm:  config.Prewarm,
		in:       make(chan *Signal, 100),
		out:      make(chan *Command, 100),
		wsClient: NewWebSocketClient(config.URL, config.Token, logger),
		active:   make(map[string]*job.Job),
	}
}

// Run connects and serves until ctx ends, reconnecting with backoff.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("starting worker", slog.String("url", w.url))

	if w.prewarm != nil {
		w.prewarm(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			return w.shutdown()
		default:
			if err := w.connectAndRun(ctx); err != nil {
				w.logger.Error("worker connection failed", slog.String("error", err.Error()))
				if err := w.backoffDelay(ctx); err != nil {
					return err
				}
				continue
			}
		}
	}
}

func (w *Worker) connectAndRun(ctx context.Context) error {
	w.logger.Info("connecting to dispatch server")

	if err := w.wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := w.wsClient.Close(); err != nil {
			w.logger.Error("error closing dispatch connection", slog.String("error", err.Error()))
		}
	}()

	w.setConnected(true)
	defer w.setConnected(false)

	readCtx, readCancel := context.WithCancel(ctx)
	defer readCancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.readSignals(readCtx); err != nil {
			errCh <- fmt.Errorf("read signals: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.writeCommands(readCtx); err != nil {
			errCh <- fmt.Errorf("write commands: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processSignals(readCtx)
	}()

	select {
	case err := <-errCh:
		readCancel()
		wg.Wait()
		return err
	case <-ctx.Done():
		readCancel()
		wg.Wait()
		return nil
	}
}

func (w *Worker) readSignals(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			signal, err := w.wsClient.ReadSignal(ctx)
			if err != nil {
				return err
			}
			select {
			case w.in <- signal:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (w *Worker) writeCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-w.out:
			if err := w.wsClient.WriteCommand(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) processSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case signal := <-w.in:
			w.handleSignal(ctx, signal)
		}
	}
}

func (w *Worker) handleSignal(ctx context.Context, signal *Signal) {
	w.logger.Debug("processing signal", slog.String("type", signal.Type))

	switch signal.Type {
	case SignalTypePing:
		w.send(ctx, &Command{Type: SignalTypePong, Data: signal.Data})

	case SignalTypeStartJob:
		w.startJob(ctx, signal)

	case SignalTypeShutdown:
		w.logger.Info("shutdown signal received")
		w.mu.RLock()
		jobs := make([]*job.Job, 0, len(w.active))
		for _, j := range w.active {
			jobs = append(jobs, j)
		}
		w.mu.RUnlock()
		for _, j := range jobs {
			j.Shutdown("dispatch server requested shutdown")
		}

	default:
		w.logger.Warn("unknown signal type", slog.String("type", signal.Type))
	}
}

// startJob spawns a session for an assigned room. The session runs in
// its own goroutine; its failure is reported, never propagated.
func (w *Worker) startJob(ctx context.Context, signal *Signal) {
	roomName, _ := signal.Data["room"].(string)
	roomToken, _ := signal.Data["token"].(string)
	if roomName == "" {
		w.logger.Warn("startJob signal without room name")
		return
	}
	if w.dispatch == nil {
		w.logger.Warn("no dispatcher configured, dropping job",
			slog.String("room", roomName))
		return
	}

	j, err := job.New(ctx, job.Config{
		RoomName: roomName,
		Timeout:  job.DefaultJobTimeout,
	})
	if err != nil {
		w.logger.Error("job creation failed",
			slog.String("room", roomName),
			slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	w.active[j.ID] = j
	w.mu.Unlock()

	w.send(ctx, &Command{Type: CommandTypeJobStarted, Data: map[string]any{
		"job_id": j.ID,
		"room":   roomName,
	}})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("session panicked",
					slog.String("job_id", j.ID),
					slog.Any("panic", r))
			}
			j.Shutdown("session finished")
			w.mu.Lock()
			delete(w.active, j.ID)
			w.mu.Unlock()
			w.send(ctx, &Command{Type: CommandTypeJobFinished, Data: map[string]any{
				"job_id": j.ID,
			}})
		}()

		if err := w.dispatch(j.Context.Ctx, j, roomToken); err != nil {
			w.logger.Error("session ended with error",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()))
		}
	}()
}

// ActiveJobs reports how many sessions are running.
func (w *Worker) ActiveJobs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.active)
}

func (w *Worker) send(ctx context.Context, cmd *Command) {
	select {
	case w.out <- cmd:
	case <-ctx.Done():
	default:
		w.logger.Warn("command channel full, dropping",
			slog.String("type", cmd.Type))
	}
}

func (w *Worker) backoffDelay(ctx context.Context) error {
	w.mu.Lock()
	w.backoffAttempt++
	attempt := w.backoffAttempt
	w.mu.Unlock()

	// 1s, 2s, 4s, 8s, capped at 10s.
	delay := time.Duration(math.Min(math.Pow(2, float64(attempt-1)), 10)) * time.Second

	w.logger.Info("reconnecting with backoff",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) setConnected(connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if connected && !w.connected {
		w.backoffAttempt = 0
		w.logger.Info("worker connected")
	}
	w.connected = connected
}

func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) shutdown() error {
	w.logger.Info("shutting down worker")

	w.mu.RLock()
	jobs := make([]*job.Job, 0, len(w.active))
	for _, j := range w.active {
		jobs = append(jobs, j)
	}
	w.mu.RUnlock()
	for _, j := range jobs {
		j.Shutdown("worker shutting down")
	}

	close(w.out)
	if err := w.wsClient.Close(); err != nil {
		w.logger.Error("error closing dispatch connection", slog.String("error", err.Error()))
		return err
	}

	w.logger.Info("worker shutdown complete")
	return nil
}
