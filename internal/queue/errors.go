package queue

import "errors"

// ErrQueueUnavailable wraps any connection-level failure talking to the
// backing store. Callers retry idempotent reads per spec §4.A. Workers
// back off exponentially (capped) on a failed dequeue; the scheduler skips
// the tick and tries again on the next one, with no growing backoff.
// Neither treats it as fatal to the process.
var ErrQueueUnavailable = errors.New("queue: store unavailable")

// ErrNotFound names a missing key, distinct from ErrQueueUnavailable. The
// shipped stores do not return it: Get reports absence as (nil, nil),
// PlatformState as a zero value, and LastHeartbeat as ok == false.
var ErrNotFound = errors.New("queue: not found")
