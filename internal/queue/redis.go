package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/priceguard/sentinel/internal/job"
)

// RedisStore implements both Store and StateStore over a single Redis
// connection. Ordering within a platform queue is achieved with a sorted
// set scored by -priority: ZPOPMIN yields the highest-priority member
// first, and Redis breaks score ties by member byte order, which for
// ULID job ids is exactly creation order (spec §5 ordering guarantee).
type RedisStore struct {
	rdb      *redis.Client
	pollStep time.Duration
}

// NewRedisStore wraps an existing go-redis client. pollStep controls how
// often a blocking Dequeue retries ZPOPMIN while waiting for work; go-redis
// has no native blocking pop for sorted sets, so the adapter layers a
// short-poll loop bounded by the caller's timeout, the same shape used by
// other Redis-backed work queues in the wild.
func NewRedisStore(rdb *redis.Client, pollStep time.Duration) *RedisStore {
	if pollStep <= 0 {
		pollStep = 100 * time.Millisecond
	}
	return &RedisStore{rdb: rdb, pollStep: pollStep}
}

func payloadKey(id string) string { return "queue:payload:" + id }

func wrapRedisErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
}

func (s *RedisStore) Enqueue(ctx context.Context, platform string, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, payloadKey(j.ID), data, 0)
		pipe.ZAdd(ctx, queueKey(platform), redis.Z{Score: float64(-j.Priority), Member: j.ID})
		return nil
	})
	return wrapRedisErr(err)
}

func (s *RedisStore) Dequeue(ctx context.Context, platform string, timeout time.Duration) (*job.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		res, err := s.rdb.ZPopMin(ctx, queueKey(platform), 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, wrapRedisErr(err)
		}
		if len(res) > 0 {
			id, _ := res[0].Member.(string)
			raw, err := s.rdb.GetDel(ctx, payloadKey(id)).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					// Payload vanished (e.g. clear raced the pop); skip it.
					continue
				}
				return nil, wrapRedisErr(err)
			}
			var j job.Job
			if err := json.Unmarshal(raw, &j); err != nil {
				return nil, err
			}
			now := time.Now()
			j.Status = job.StatusRunning
			j.StartedAt = &now
			if err := s.Update(ctx, &j); err != nil {
				return nil, err
			}
			return &j, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		remaining := time.Until(deadline)
		step := s.pollStep
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(step):
		}
	}
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*job.Job, error) {
	raw, err := s.rdb.Get(ctx, runningKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		raw, err = s.rdb.Get(ctx, payloadKey(jobID)).Bytes()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapRedisErr(err)
	}
	var j job.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *RedisStore) Update(ctx context.Context, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return wrapRedisErr(s.rdb.Set(ctx, runningKey(j.ID), data, 0).Err())
}

func (s *RedisStore) ListRunning(ctx context.Context) ([]*job.Job, error) {
	var out []*job.Job
	iter := s.rdb.Scan(ctx, 0, keyRunningPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var j job.Job
		if err := json.Unmarshal(raw, &j); err == nil {
			out = append(out, &j)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, wrapRedisErr(err)
	}
	return out, nil
}

func (s *RedisStore) QueueDepth(ctx context.Context, platform string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, queueKey(platform)).Result()
	return n, wrapRedisErr(err)
}

func (s *RedisStore) Clear(ctx context.Context, platform string) (int64, error) {
	ids, err := s.rdb.ZRange(ctx, queueKey(platform), 0, -1).Result()
	if err != nil {
		return 0, wrapRedisErr(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, queueKey(platform))
		for _, id := range ids {
			pipe.Del(ctx, payloadKey(id))
		}
		return nil
	})
	return int64(len(ids)), wrapRedisErr(err)
}

func (s *RedisStore) Health(ctx context.Context) error {
	return wrapRedisErr(s.rdb.Ping(ctx).Err())
}

// --- StateStore ---

func (s *RedisStore) GetEnabled(ctx context.Context) (bool, error) {
	v, err := s.rdb.Get(ctx, keyEnabled).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrapRedisErr(err)
	}
	return v == "1", nil
}

func (s *RedisStore) SetEnabled(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return wrapRedisErr(s.rdb.Set(ctx, keyEnabled, v, 0).Err())
}

func (s *RedisStore) GlobalLastEnqueueAt(ctx context.Context) (time.Time, bool, error) {
	v, err := s.rdb.Get(ctx, keyLastEnqueueAt).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrapRedisErr(err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisStore) SetGlobalLastEnqueueAt(ctx context.Context, at time.Time) error {
	return wrapRedisErr(s.rdb.Set(ctx, keyLastEnqueueAt, at.UnixMilli(), GlobalLastEnqueueTTL).Err())
}

func (s *RedisStore) PlatformState(ctx context.Context, platform string) (PlatformState, error) {
	raw, err := s.rdb.Get(ctx, platformStateKey(platform)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PlatformState{}, nil
	}
	if err != nil {
		return PlatformState{}, wrapRedisErr(err)
	}
	var st PlatformState
	if err := json.Unmarshal(raw, &st); err != nil {
		return PlatformState{}, err
	}
	return st, nil
}

func (s *RedisStore) SetPlatformState(ctx context.Context, platform string, st PlatformState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return wrapRedisErr(s.rdb.Set(ctx, platformStateKey(platform), data, PlatformStateTTL).Err())
}

func (s *RedisStore) Heartbeat(ctx context.Context, key string, at time.Time) error {
	return wrapRedisErr(s.rdb.Set(ctx, key, at.UnixMilli(), 0).Err())
}

func (s *RedisStore) LastHeartbeat(ctx context.Context, key string) (time.Time, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrapRedisErr(err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// HeartbeatKey is the default scheduler liveness key; watchers use
// queue.WatcherKey(name)+":heartbeat_at" for their own.
const HeartbeatKey = keyHeartbeatAt

var (
	_ Store      = (*RedisStore)(nil)
	_ StateStore = (*RedisStore)(nil)
)
