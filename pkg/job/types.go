// Package job manages the lifecycle of one dispatched agent session:
// the room connection, shutdown coordination, and room events.
package job

import (
	"context"
	"sync"
	"time"
)

// Job is one agent assignment to a room.
type Job struct {
	// ID uniquely identifies this job.
	ID string

	// RoomName is the room this job serves.
	RoomName string

	// Context coordinates shutdown for everything the job spawned.
	Context *Context
}

// Config configures a new job.
type Config struct {
	// ID for the job; generated when empty.
	ID string

	// RoomName is the room to serve.
	RoomName string

	// Timeout bounds the whole job. Zero means no limit.
	Timeout time.Duration
}

// Context coordinates shutdown of a job. Hooks registered with
// OnShutdown run once, concurrently, when Shutdown is called.
type Context struct {
	// Ctx is cancelled when the job ends.
	Ctx context.Context

	cancel context.CancelFunc

	mu    sync.Mutex
	done  bool
	hooks []func(reason string)
}

// ShutdownHookTimeout bounds how long shutdown hooks may run.
const ShutdownHookTimeout = 5 * time.Second

// DefaultJobTimeout caps a session that never ends on its own.
const DefaultJobTimeout = 30 * time.Minute
