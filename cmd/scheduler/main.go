// Command scheduler runs the platform admission loop (spec §4.E): one
// process, ticking on a configurable interval, deciding which platform
// queue gets the next validation job and with what sale-state target.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/config"
	"github.com/priceguard/sentinel/internal/metrics"
	"github.com/priceguard/sentinel/internal/obslog"
	"github.com/priceguard/sentinel/internal/platformconfig"
	"github.com/priceguard/sentinel/internal/platformscheduler"
	"github.com/priceguard/sentinel/internal/queue"
)

func main() {
	cfg, err := config.Load(os.Getenv("SENTINEL_CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	log := obslog.New(obslog.Options{Service: "sentinel-scheduler", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	platforms, err := platformconfig.Load(cfg.PlatformConfigDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.PlatformConfigDir).Msg("load platform config")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := queue.NewRedisStore(rdb, 100*time.Millisecond)

	reg := metrics.New(nil)
	go serveMetrics(cfg.MetricsAddr, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pollQueueDepth(ctx, store, platforms.Platforms(), reg, log)

	sched := platformscheduler.New(platformscheduler.Config{
		TickInterval:       cfg.SchedulerTickInterval,
		InterPlatformDelay: cfg.SchedulerInterPlatformDelay,
		HeartbeatInterval:  cfg.SchedulerHeartbeatInterval,
	}, platforms.SchedulerPlatforms(), store, store, log)

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}
	go sched.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	if err := sched.Stop(context.Background(), false); err != nil {
		log.Warn().Err(err).Msg("stop scheduler")
	}
}

// serveMetrics blocks forever, exposing the Prometheus registry on addr.
// A listener failure is logged, not fatal: the scheduler's admission loop
// does not depend on metrics being reachable.
func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

// pollQueueDepth periodically samples every configured platform's pending
// queue length into the queue_depth gauge (spec §6 `queue:{platform}`).
func pollQueueDepth(ctx context.Context, store queue.Store, platformTags []string, m *metrics.Metrics, log zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tag := range platformTags {
				depth, err := store.QueueDepth(ctx, tag)
				if err != nil {
					log.Warn().Err(err).Str("platform", tag).Msg("queue depth poll failed")
					continue
				}
				m.SetQueueDepth(tag, depth)
			}
		}
	}
}
