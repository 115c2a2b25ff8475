// Package watcher runs lightweight, single-purpose periodic check
// workflows (spec §4.J) independently of the platform scheduler, sharing
// the same queue substrate via a dedicated "alert" platform queue.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/job"
	"github.com/priceguard/sentinel/internal/queue"
)

// AlertPlatform is the fixed platform tag every watcher task's jobs are
// enqueued under (spec §4.J "emitting jobs onto an `alert` platform queue").
const AlertPlatform = "alert"

// Task is one watcher's static configuration: an `@every` interval spec and
// the validation workflow it triggers.
type Task struct {
	Name       string
	Interval   string // cron "@every 30s"-style spec
	WorkflowID string
	Priority   int
	Params     map[string]any
}

// Watcher runs a set of Tasks, each on its own interval, sharing one
// queue.Store/StateStore pair with the platform scheduler.
type Watcher struct {
	tasks []Task
	queue queue.Store
	state queue.StateStore
	log   zerolog.Logger
}

// New builds a Watcher over tasks.
func New(tasks []Task, q queue.Store, state queue.StateStore, log zerolog.Logger) *Watcher {
	return &Watcher{
		tasks: tasks,
		queue: q,
		state: state,
		log:   log.With().Str("component", "watcher").Logger(),
	}
}

// Run starts one goroutine per task and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	done := make(chan struct{}, len(w.tasks))
	for _, task := range w.tasks {
		schedule, err := parser.Parse(task.Interval)
		if err != nil {
			return fmt.Errorf("watcher: task %s: invalid interval %q: %w", task.Name, task.Interval, err)
		}
		go func(t Task, sched cron.Schedule) {
			w.runTask(ctx, t, sched)
			done <- struct{}{}
		}(task, schedule)
	}

	<-ctx.Done()
	for range w.tasks {
		<-done
	}
	return nil
}

func (w *Watcher) runTask(ctx context.Context, t Task, schedule cron.Schedule) {
	key := queue.WatcherKey(t.Name) + ":heartbeat_at"
	log := w.log.With().Str("task", t.Name).Logger()

	for {
		next := schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		j := job.New(t.WorkflowID, AlertPlatform, t.Priority, t.Params)
		j.Metadata["watcher_task"] = t.Name
		if err := w.queue.Enqueue(ctx, AlertPlatform, j); err != nil {
			log.Warn().Err(err).Msg("failed to enqueue watcher job")
			continue
		}
		if err := w.state.Heartbeat(ctx, key, time.Now()); err != nil {
			log.Warn().Err(err).Msg("failed to record watcher heartbeat")
		}
	}
}
