// Command reconcile watches the audit log output tree for finalized
// workflow runs and feeds each one through the reconciliation stage (spec
// §4.I), writing sparse updates back to the source of record and then
// notifying the scheduler's per-platform completion clock (spec §4.E
// step 6).
package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/audit"
	"github.com/priceguard/sentinel/internal/config"
	"github.com/priceguard/sentinel/internal/metrics"
	"github.com/priceguard/sentinel/internal/obslog"
	"github.com/priceguard/sentinel/internal/platformconfig"
	"github.com/priceguard/sentinel/internal/platformscheduler"
	"github.com/priceguard/sentinel/internal/queue"
	"github.com/priceguard/sentinel/internal/reconcile"
	"github.com/priceguard/sentinel/internal/sor"
)

// doneSuffix marks an audit log this process has already reconciled, so a
// restart's startup sweep does not reapply the same batch twice.
const doneSuffix = ".done"

func main() {
	cfg, err := config.Load(os.Getenv("SENTINEL_CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	log := obslog.New(obslog.Options{Service: "sentinel-reconcile", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	platforms, err := platformconfig.Load(cfg.PlatformConfigDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.PlatformConfigDir).Msg("load platform config")
	}

	db, err := sor.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open source of record")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := queue.NewRedisStore(rdb, 100*time.Millisecond)
	notifier := platformscheduler.New(platformscheduler.Config{}, nil, store, store, log)

	reg := metrics.New(nil)
	go serveMetrics(cfg.MetricsAddr, log)

	r := &reconciler{
		platforms: platforms,
		store:     db,
		notifier:  notifier,
		cfg: reconcile.Config{
			BatchSize:          cfg.ReconcileBatchSize,
			BatchDelay:         cfg.ReconcileBatchDelay,
			VerificationSample: 0.1,
		},
		metrics: reg,
		log:     log,
	}

	if err := os.MkdirAll(cfg.AuditOutputRoot, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.AuditOutputRoot).Msg("create audit output root")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.sweep(ctx, cfg.AuditOutputRoot)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal().Err(err).Msg("create filesystem watcher")
	}
	defer fw.Close()

	if err := watchTree(fw, cfg.AuditOutputRoot); err != nil {
		log.Fatal().Err(err).Msg("watch audit output root")
	}

	go r.watchLoop(ctx, fw, cfg.AuditOutputRoot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

// watchTree adds fsnotify watches for root and every existing subdirectory,
// since fsnotify watches are not recursive and audit.PathFor nests logs
// under a per-day directory.
func watchTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

type reconciler struct {
	platforms *platformconfig.Store
	store     sor.Store
	notifier  *platformscheduler.Scheduler
	cfg       reconcile.Config
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// sweep reconciles every already-finalized, not-yet-processed log found
// under root at startup, covering logs finalized while this process was
// down.
func (r *reconciler) sweep(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		r.tryReconcile(ctx, path)
		return nil
	})
}

func (r *reconciler) watchLoop(ctx context.Context, fw *fsnotify.Watcher, root string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err == nil && info.IsDir() {
				if err := fw.Add(event.Name); err != nil {
					r.log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
				}
				continue
			}
			if strings.HasSuffix(event.Name, ".jsonl") {
				r.tryReconcile(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("filesystem watcher error")
		}
	}
}

// tryReconcile reconciles path if it is a complete, not-yet-processed
// audit log, then marks it done so a later event (or startup sweep) never
// reapplies the same batch.
func (r *reconciler) tryReconcile(ctx context.Context, path string) {
	if _, err := os.Stat(path + doneSuffix); err == nil {
		return
	}

	log, err := audit.ReadFile(path)
	if err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("failed to read audit log")
		return
	}
	if !log.Complete || log.Header == nil {
		return
	}

	platform := log.Header.Platform
	var policy *platformconfig.Config
	if cfg, err := r.platforms.Get(platform); err == nil {
		policy = cfg
	}

	res, err := reconcile.Run(ctx, path, platform, policy, r.store, r.cfg, r.metrics)
	if err != nil {
		r.log.Error().Err(err).Str("path", path).Str("platform", platform).Msg("reconciliation failed")
		return
	}
	r.log.Info().Str("platform", platform).Int("updated", res.Updated).Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).Msg("reconciled audit log")

	if err := r.notifier.NotifyCompletion(ctx, platform, time.Now()); err != nil {
		r.log.Warn().Err(err).Str("platform", platform).Msg("failed to notify scheduler of completion")
	}

	if err := os.WriteFile(path+doneSuffix, nil, 0o644); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("failed to mark audit log processed")
	}
}
