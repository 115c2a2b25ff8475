// Command watcher runs the periodic check-workflow tasks (spec §4.J): a
// lightweight analogue of the platform scheduler that emits jobs onto the
// shared "alert" platform queue on a per-task cron interval.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/priceguard/sentinel/internal/config"
	"github.com/priceguard/sentinel/internal/obslog"
	"github.com/priceguard/sentinel/internal/queue"
	"github.com/priceguard/sentinel/internal/watcher"
)

// taskFile is the on-disk shape of the watcher tasks file: a flat list of
// periodic check workflows, each with its own cron-style interval.
type taskFile struct {
	Tasks []struct {
		Name       string         `mapstructure:"name"`
		Interval   string         `mapstructure:"interval"`
		WorkflowID string         `mapstructure:"workflow_id"`
		Priority   int            `mapstructure:"priority"`
		Params     map[string]any `mapstructure:"params"`
	} `mapstructure:"tasks"`
}

func loadTasks(path string) ([]watcher.Task, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var tf taskFile
	if err := v.Unmarshal(&tf); err != nil {
		return nil, err
	}

	tasks := make([]watcher.Task, 0, len(tf.Tasks))
	for _, t := range tf.Tasks {
		tasks = append(tasks, watcher.Task{
			Name:       t.Name,
			Interval:   t.Interval,
			WorkflowID: t.WorkflowID,
			Priority:   t.Priority,
			Params:     t.Params,
		})
	}
	return tasks, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("SENTINEL_CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	log := obslog.New(obslog.Options{Service: "sentinel-watcher", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	tasks, err := loadTasks(cfg.WatcherTasksFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.WatcherTasksFile).Msg("load watcher tasks")
	}
	if len(tasks) == 0 {
		log.Warn().Str("file", cfg.WatcherTasksFile).Msg("no watcher tasks configured, process is idle")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := queue.NewRedisStore(rdb, 100*time.Millisecond)

	w := watcher.New(tasks, store, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("watcher exited")
		}
		return
	}
}
