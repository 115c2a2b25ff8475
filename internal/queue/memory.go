package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/priceguard/sentinel/internal/job"
)

// MemStore is an in-memory Store+StateStore used by unit tests and by any
// caller that wants the queue semantics without a Redis dependency. It is
// safe for concurrent use.
type MemStore struct {
	mu sync.Mutex

	pending map[string]map[string]*job.Job // platform -> jobID -> job
	running map[string]*job.Job

	enabled         bool
	lastEnqueueAt   *time.Time
	platformState   map[string]PlatformState
	heartbeats      map[string]time.Time

	dequeueSignal chan struct{}
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		pending:       make(map[string]map[string]*job.Job),
		running:       make(map[string]*job.Job),
		platformState: make(map[string]PlatformState),
		heartbeats:    make(map[string]time.Time),
		dequeueSignal: make(chan struct{}, 1),
	}
}

func (s *MemStore) notify() {
	select {
	case s.dequeueSignal <- struct{}{}:
	default:
	}
}

func (s *MemStore) Enqueue(_ context.Context, platform string, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[platform] == nil {
		s.pending[platform] = make(map[string]*job.Job)
	}
	cp := *j
	s.pending[platform][j.ID] = &cp
	s.notify()
	return nil
}

// popHighestPriority returns the pending job for platform with the highest
// priority, breaking ties by ascending (i.e. earliest-created) id, matching
// the Redis sorted-set ordering.
func (s *MemStore) popHighestPriority(platform string) *job.Job {
	bucket := s.pending[platform]
	if len(bucket) == 0 {
		return nil
	}
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool {
		a, b := bucket[ids[i]], bucket[ids[k]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return ids[i] < ids[k]
	})
	best := bucket[ids[0]]
	delete(bucket, ids[0])
	return best
}

func (s *MemStore) Dequeue(ctx context.Context, platform string, timeout time.Duration) (*job.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		j := s.popHighestPriority(platform)
		if j != nil {
			now := time.Now()
			j.Status = job.StatusRunning
			j.StartedAt = &now
			s.running[j.ID] = j
			s.mu.Unlock()
			return j, nil
		}
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		wait := remaining
		if wait > 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.dequeueSignal:
		case <-time.After(wait):
		}
	}
}

func (s *MemStore) Get(_ context.Context, jobID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.running[jobID]; ok {
		cp := *j
		return &cp, nil
	}
	for _, bucket := range s.pending {
		if j, ok := bucket[jobID]; ok {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) Update(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.running[j.ID] = &cp
	return nil
}

func (s *MemStore) ListRunning(_ context.Context) ([]*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*job.Job, 0, len(s.running))
	for _, j := range s.running {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) QueueDepth(_ context.Context, platform string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pending[platform])), nil
}

func (s *MemStore) Clear(_ context.Context, platform string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending[platform])
	delete(s.pending, platform)
	return int64(n), nil
}

func (s *MemStore) Health(_ context.Context) error { return nil }

func (s *MemStore) GetEnabled(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, nil
}

func (s *MemStore) SetEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

func (s *MemStore) GlobalLastEnqueueAt(_ context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEnqueueAt == nil {
		return time.Time{}, false, nil
	}
	return *s.lastEnqueueAt, true, nil
}

func (s *MemStore) SetGlobalLastEnqueueAt(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at
	s.lastEnqueueAt = &t
	return nil
}

func (s *MemStore) PlatformState(_ context.Context, platform string) (PlatformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platformState[platform], nil
}

func (s *MemStore) SetPlatformState(_ context.Context, platform string, st PlatformState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platformState[platform] = st
	return nil
}

func (s *MemStore) Heartbeat(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats[key] = at
	return nil
}

func (s *MemStore) LastHeartbeat(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.heartbeats[key]
	return t, ok, nil
}

var (
	_ Store      = (*MemStore)(nil)
	_ StateStore = (*MemStore)(nil)
)
