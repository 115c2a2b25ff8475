// Package queue adapts the scheduler, worker fleet, and watcher to a
// shared ordered-list + key-value store (spec §4.A). Redis is the only
// backing implementation shipped for production use; a second in-memory
// implementation satisfies the same interfaces for tests.
package queue

import (
	"context"
	"time"

	"github.com/priceguard/sentinel/internal/job"
)

// Store is the per-platform job queue contract (spec §4.A).
type Store interface {
	// Enqueue pushes job onto platform's priority-ordered list.
	Enqueue(ctx context.Context, platform string, j *job.Job) error

	// Dequeue blocks up to timeout for a job on platform's queue and moves
	// it into the running set keyed by job id. RedisStore does this with
	// separate commands (pop, payload read, running-key write), so the move
	// is not atomic: between them the job is in neither place. Returns
	// (nil, nil) if timeout elapses with nothing to dequeue.
	Dequeue(ctx context.Context, platform string, timeout time.Duration) (*job.Job, error)

	// Get reads a job by id from wherever it currently lives (running set
	// or, for implementations that track it, completed storage). Returns
	// (nil, nil) if absent.
	Get(ctx context.Context, jobID string) (*job.Job, error)

	// Update rewrites the full job record at its key. Emits no events.
	Update(ctx context.Context, j *job.Job) error

	// ListRunning returns every job currently leased by a worker.
	ListRunning(ctx context.Context) ([]*job.Job, error)

	// QueueDepth reports the number of pending jobs for platform.
	QueueDepth(ctx context.Context, platform string) (int64, error)

	// Clear removes all pending (not running) jobs for platform and
	// returns how many were removed.
	Clear(ctx context.Context, platform string) (int64, error)

	// Health reports whether the store is reachable.
	Health(ctx context.Context) error
}

// StateStore is the shared-state keyspace enumerated in spec §6: the
// global scheduler enable flag, inter-platform spacing clock, per-platform
// counters/cooldowns, and liveness heartbeats. The same Redis connection
// backs both Store and StateStore; they are separate interfaces because
// callers (scheduler vs. worker vs. watcher) need different slices of it.
type StateStore interface {
	GetEnabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error

	GlobalLastEnqueueAt(ctx context.Context) (time.Time, bool, error)
	SetGlobalLastEnqueueAt(ctx context.Context, at time.Time) error

	PlatformState(ctx context.Context, platform string) (PlatformState, error)
	SetPlatformState(ctx context.Context, platform string, st PlatformState) error

	Heartbeat(ctx context.Context, key string, at time.Time) error
	LastHeartbeat(ctx context.Context, key string) (time.Time, bool, error)
}

// WatcherKey namespaces a watcher task's control-flag/state keys under
// watcher:{name}, mirroring the scheduler's own keyspace (spec §6
// "watcher:* — analogous").
func WatcherKey(name string) string { return watcherKey(name) }
