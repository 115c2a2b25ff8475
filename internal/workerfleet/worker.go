// Package workerfleet runs one long-lived consumer goroutine per platform
// (plus a default one), each dequeuing jobs from its platform queue and
// handing them to the DAG engine (spec §4.F).
package workerfleet

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/job"
	"github.com/priceguard/sentinel/internal/platformconfig"
	"github.com/priceguard/sentinel/internal/queue"
	"github.com/priceguard/sentinel/internal/workflow"
)

// Engine is the narrow slice of internal/engine.Engine a worker needs.
type Engine interface {
	Run(ctx context.Context, def *workflow.Definition, j *job.Job, platformConfig any) error
}

// CompletionNotifier is the scheduler hook invoked after every job run,
// whether it succeeded or failed (spec §4.E step 6).
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, platform string, at time.Time) error
}

// Worker consumes jobs for exactly one platform tag.
type Worker struct {
	Platform    string
	Queue       queue.Store
	Loader      *workflow.Loader
	Engine      Engine
	Platforms   *platformconfig.Store
	Notifier    CompletionNotifier
	DequeueWait time.Duration
	Log         zerolog.Logger
}

func (w *Worker) dequeueWait() time.Duration {
	if w.DequeueWait <= 0 {
		return 2 * time.Second
	}
	return w.DequeueWait
}

// Run blocks, consuming jobs from w.Platform's queue until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := w.Log.With().Str("component", "worker").Str("platform", w.Platform).Logger()
	var backoff time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		j, err := w.Queue.Dequeue(ctx, w.Platform, w.dequeueWait())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if backoff == 0 {
				backoff = 100 * time.Millisecond
			} else if backoff < 10*time.Second {
				backoff *= 2
			}
			log.Warn().Err(err).Dur("backoff", backoff).Msg("dequeue failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		if j == nil {
			continue
		}

		w.process(ctx, j, log)
	}
}

func (w *Worker) process(ctx context.Context, j *job.Job, log zerolog.Logger) {
	def, err := w.Loader.Load(j.WorkflowID)
	if err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Str("workflow_id", j.WorkflowID).Msg("failed to load workflow definition")
		now := time.Now()
		j.Status = job.StatusFailed
		j.Error = &job.Error{Message: err.Error(), NodeID: "", Timestamp: now}
		j.CompletedAt = &now
		_ = w.Queue.Update(ctx, j)
		return
	}

	var platformCfg any
	if w.Platforms != nil {
		if cfg, err := w.Platforms.Get(j.Platform); err == nil {
			platformCfg = cfg
		}
	}

	runErr := w.Engine.Run(ctx, def, j, platformCfg)
	if runErr != nil {
		log.Warn().Err(runErr).Str("job_id", j.ID).Msg("job run failed")
	}

	// Notify on DAG completion regardless of outcome: a failed run still
	// consumed the platform's turn, so the scheduler's cooldown clock must
	// advance either way (spec §4.F step 3).
	if w.Notifier != nil {
		if err := w.Notifier.NotifyCompletion(ctx, w.Platform, time.Now()); err != nil {
			log.Warn().Err(err).Msg("failed to notify scheduler of completion")
		}
	}
}
