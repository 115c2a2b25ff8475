// Package job defines the unit of work that flows through the platform
// queues, the DAG engine, and the worker fleet.
package job

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// Status is the lifecycle state of a Job. Transitions are monotonic except
// that a worker-owned job may move running->failed on any node throw.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Error captures where and why a job failed.
type Error struct {
	Message   string    `json:"message"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is the unit of work leased by exactly one worker at a time off a
// per-platform queue. Fields mirror spec §3 verbatim; Result accumulates
// node outputs as the DAG engine walks the workflow.
type Job struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"`
	Platform     string         `json:"platform"`
	Priority     int            `json:"priority"`
	Status       Status         `json:"status"`
	Params       map[string]any `json:"params"`
	CurrentNode  string         `json:"current_node"`
	Progress     float64        `json:"progress"`
	Result       map[string]any `json:"result,omitempty"`
	Error        *Error         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewID returns a time-ordered, lexicographically sortable job id. The
// millisecond timestamp component makes id-ascending order equivalent to
// creation order, which is what the queue's priority-descending/id-ascending
// ordering guarantee (spec §5) relies on.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}

// idEntropy is shared by every NewID call so ids minted within the same
// millisecond still increase monotonically; idMu guards it because the
// monotonic reader is not safe for concurrent use.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// New constructs a pending job ready to enqueue. Params is copied into a
// fresh map so the caller's map can be reused or mutated without aliasing
// the queued job; Metadata starts as a new empty map.
func New(workflowID, platform string, priority int, params map[string]any) *Job {
	j := &Job{
		ID:         NewID(),
		WorkflowID: workflowID,
		Platform:   platform,
		Priority:   priority,
		Status:     StatusPending,
		Params:     cloneMap(params),
		Progress:   0,
		CreatedAt:  time.Now(),
		Metadata:   map[string]any{},
	}
	return j
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks the invariants spec §3 lists: started implies created,
// completed implies started, and timestamps are non-decreasing.
func (j *Job) Validate() error {
	if j.StartedAt != nil && j.StartedAt.Before(j.CreatedAt) {
		return ErrStartedBeforeCreated
	}
	if j.CompletedAt != nil {
		if j.StartedAt == nil {
			return ErrCompletedWithoutStart
		}
		if j.CompletedAt.Before(*j.StartedAt) {
			return ErrCompletedBeforeStarted
		}
	}
	return nil
}
