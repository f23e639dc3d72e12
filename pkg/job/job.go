package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// New creates a job bound to the given room.
func New(parent context.Context, cfg Config) (*Job, error) {
	if cfg.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	id := cfg.ID
	if id == "" {
		id = "job_" + uuid.NewString()
	}

	ctx := parent
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, cfg.Timeout)
	}

	jc := NewContext(ctx)
	if cancel != nil {
		// Release the timeout timer when the job ends.
		jc.OnShutdown(func(string) { cancel() })
	}

	j := &Job{
		ID:       id,
		RoomName: cfg.RoomName,
		Context:  jc,
	}

	slog.Info("job created",
		slog.String("job_id", id),
		slog.String("room", cfg.RoomName),
		slog.Duration("timeout", cfg.Timeout))

	return j, nil
}

// Shutdown ends the job, running shutdown hooks first.
func (j *Job) Shutdown(reason string) {
	slog.Info("job shutting down",
		slog.String("job_id", j.ID),
		slog.String("reason", reason))
	j.Context.Shutdown(reason)
}

// Wait blocks until the job ends and returns the context error.
func (j *Job) Wait() error {
	<-j.Context.Done()
	return j.Context.Err()
}

// IsActive reports whether the job is still running.
func (j *Job) IsActive() bool {
	return !j.Context.IsShutdown()
}

func (j *Job) String() string {
	status := "active"
	if j.Context.IsShutdown() {
		status = "shutdown"
	}
	return fmt.Sprintf("Job{ID: %s, Room: %s, Status: %s}", j.ID, j.RoomName, status)
}
